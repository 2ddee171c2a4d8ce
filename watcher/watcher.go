// Package watcher implements the event-driven payment watcher (spec
// §4.13 / component C13): block-range polling for Transfer logs, topic
// filter construction, per-handler predicate matching, and
// waitForPayment's timeout/cancellation semantics.
//
// Grounded on the teacher's core/autonomous_agent_node.go: a stop channel
// plus sync.WaitGroup driving a ticker loop over a mutex-guarded,
// snapshot-then-execute handler list. That shape is kept; the rule
// trigger/action pair is replaced with a registered handler matched
// against a decoded IncomingPayment.
package watcher

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/synnergy-labs/agentwallet/bridge"
	"github.com/synnergy-labs/agentwallet/codec/abi"
	"github.com/synnergy-labs/agentwallet/core"
)

var watcherLog = zap.NewNop().Sugar()

// SetWatcherLogger redirects the watcher package's logger, following the
// same package-level-variable convention as core.SetLogger/
// bridge.SetBridgeLogger.
func SetWatcherLogger(l *zap.SugaredLogger) {
	if l != nil {
		watcherLog = l
	}
}

var transferTopic = mustEventTopic("Transfer(address,address,uint256)")

func mustEventTopic(sig string) [32]byte {
	t, err := abi.EventTopic(sig)
	if err != nil {
		panic(err)
	}
	return t
}

// Handler receives every IncomingPayment matching the watched address,
// across all watched tokens, with no further filtering.
type Handler func(bridge.IncomingPayment)

type registeredHandler struct {
	id        string
	token     *core.Address // nil = any token
	from      *core.Address // nil = any sender
	minAmount *big.Int      // nil = no minimum
	handler   Handler
}

func (h *registeredHandler) matches(p bridge.IncomingPayment) bool {
	if h.token != nil && *h.token != p.Token {
		return false
	}
	if h.from != nil && *h.from != p.From {
		return false
	}
	if h.minAmount != nil && p.Amount.Cmp(h.minAmount) < 0 {
		return false
	}
	return true
}

// Watcher polls getLogs for ERC-20 Transfer events addressed to one
// watched address, across a fixed set of token contracts, and dispatches
// decoded IncomingPayments to every registered handler (spec §4.13).
type Watcher struct {
	rpc             *core.RPC
	watchedAddress  core.Address
	tokens          []core.Address
	pollingInterval time.Duration

	mu                 sync.Mutex
	lastProcessedBlock uint64
	chainID            uint64
	handlers           map[string]*registeredHandler
	nextHandlerID      uint64
	running            bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher constructs a watcher. pollingInterval defaults to 12s (~1
// block) if zero or negative, matching spec §4.13's default.
func NewWatcher(rpc *core.RPC, watchedAddress core.Address, tokens []core.Address, pollingInterval time.Duration) *Watcher {
	if pollingInterval <= 0 {
		pollingInterval = 12 * time.Second
	}
	return &Watcher{
		rpc:             rpc,
		watchedAddress:  watchedAddress,
		tokens:          tokens,
		pollingInterval: pollingInterval,
		handlers:        map[string]*registeredHandler{},
	}
}

// Start learns chainId and currentBlock, sets lastProcessedBlock =
// currentBlock with no back-scan, and launches the poll loop (spec
// §4.13). Calling Start on an already-running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	chainID, err := w.rpc.GetChainID(ctx)
	if err != nil {
		return err
	}
	current, err := w.rpc.GetBlockNumber(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.chainID = chainID
	w.lastProcessedBlock = current
	w.running = true
	w.stop = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop terminates the poll loop and clears the handler set (spec §4.13
// "a cancelled watcher stops its timer and clears its handler set").
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.handlers = map[string]*registeredHandler{}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				watcherLog.Warnw("poll failed", "error", err)
			}
		}
	}
}

// poll fetches [lastProcessedBlock+1, currentBlock], decodes every
// Transfer log into an IncomingPayment, dispatches to all handlers, and
// advances lastProcessedBlock (spec §4.13).
func (w *Watcher) poll(ctx context.Context) error {
	current, err := w.rpc.GetBlockNumber(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	from := w.lastProcessedBlock + 1
	tokens := append([]core.Address(nil), w.tokens...)
	watched := w.watchedAddress
	w.mu.Unlock()

	if from > current {
		return nil
	}

	padded := addressToTopic(watched)
	logs, err := w.rpc.GetLogs(ctx, core.LogFilter{
		FromBlock: from,
		ToBlock:   current,
		Addresses: tokens,
		Topics:    []*[32]byte{&transferTopic, nil, &padded},
	})
	if err != nil {
		return err
	}

	for _, l := range logs {
		payment, err := decodeTransferLog(l)
		if err != nil {
			watcherLog.Warnw("skipping undecodable transfer log", "error", err)
			continue
		}
		w.dispatch(*payment)
	}

	w.mu.Lock()
	w.lastProcessedBlock = current
	w.mu.Unlock()
	return nil
}

func (w *Watcher) dispatch(payment bridge.IncomingPayment) {
	w.mu.Lock()
	handlers := make([]*registeredHandler, 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()

	for _, h := range handlers {
		if h.matches(payment) {
			h.handler(payment)
		}
	}
}

// decodeTransferLog reads from (topic 1), to (topic 2), and amount (data)
// off one ERC-20 Transfer log (spec §4.13).
func decodeTransferLog(l core.Log) (*bridge.IncomingPayment, error) {
	if len(l.Topics) < 3 {
		return nil, core.RPCError("eth_getLogs", fmt.Errorf("transfer log missing indexed topics"))
	}
	values, err := abi.Decode([]string{"uint256"}, l.Data)
	if err != nil || len(values) != 1 {
		return nil, core.RPCError("eth_getLogs", fmt.Errorf("transfer log amount decode failed: %w", err))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, core.RPCError("eth_getLogs", fmt.Errorf("transfer log amount has unexpected type"))
	}
	return &bridge.IncomingPayment{
		Token:           l.Address,
		From:            topicToAddress(l.Topics[1]),
		To:              topicToAddress(l.Topics[2]),
		Amount:          amount,
		TransactionHash: l.TxHash,
		BlockNumber:     l.BlockNumber,
		LogIndex:        l.LogIndex,
	}, nil
}

func addressToTopic(addr core.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr[:])
	return out
}

func topicToAddress(topic [32]byte) core.Address {
	var out core.Address
	copy(out[:], topic[12:])
	return out
}

// OnPayment registers a handler for every matching IncomingPayment and
// returns an ID usable with RemoveHandler.
func (w *Watcher) OnPayment(h Handler) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextHandlerID++
	id := formatHandlerID(w.nextHandlerID)
	w.handlers[id] = &registeredHandler{id: id, handler: h}
	return id
}

// RemoveHandler unregisters a handler by ID; a no-op if it is already
// gone.
func (w *Watcher) RemoveHandler(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.handlers, id)
}

func formatHandlerID(n uint64) string {
	return strconv.FormatUint(n, 16)
}

// WaitForPaymentOptions parameterizes waitForPayment (spec §4.13).
type WaitForPaymentOptions struct {
	Token     *core.Address
	From      *core.Address
	MinAmount *big.Int
	Timeout   time.Duration
}

// WaitForPayment registers an internal handler matching Token/From/
// MinAmount, resolves on first match or returns a TIMEOUT error after
// Timeout, and always removes its handler on either outcome; if no
// handlers remain afterward, the watcher is stopped (spec §4.13).
func (w *Watcher) WaitForPayment(ctx context.Context, opts WaitForPaymentOptions) (*bridge.IncomingPayment, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	result := make(chan bridge.IncomingPayment, 1)

	w.mu.Lock()
	w.nextHandlerID++
	id := formatHandlerID(w.nextHandlerID)
	w.handlers[id] = &registeredHandler{
		id:        id,
		token:     opts.Token,
		from:      opts.From,
		minAmount: opts.MinAmount,
		handler: func(p bridge.IncomingPayment) {
			select {
			case result <- p:
			default:
			}
		},
	}
	w.mu.Unlock()

	defer w.removeHandlerAndStopIfEmpty(id)

	select {
	case p := <-result:
		return &p, nil
	case <-ctx.Done():
		return nil, core.Timeout("waitForPayment")
	case <-time.After(timeout):
		return nil, core.Timeout("waitForPayment")
	}
}

func (w *Watcher) removeHandlerAndStopIfEmpty(id string) {
	w.mu.Lock()
	delete(w.handlers, id)
	empty := len(w.handlers) == 0
	running := w.running
	w.mu.Unlock()
	if empty && running {
		w.Stop()
	}
}
