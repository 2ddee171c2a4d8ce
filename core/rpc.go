package core

// RPC contract (spec §4.3 / component C3): a method-typed facade over
// JSON-RPC 2.0, with a cached chain ID and backoff-driven receipt waiting.
//
// Grounded on the teacher's core/storage.go (logrus-logged, config-struct
// constructor idiom) and core/common_structs.go (this spec's equivalent of
// a transport dependency injected at construction, there a grpc.ClientConn,
// here a Transport interface so the HTTP default can be swapped in tests).

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transport sends one JSON-RPC 2.0 request and returns its raw result.
// Spec §1/§6 scope RPC transport details out; only this narrow seam is
// part of the component contract.
type Transport interface {
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Log is a decoded Ethereum event log entry.
type Log struct {
	Address     Address
	Topics      [][32]byte
	Data        []byte
	BlockNumber uint64
	TxHash      Hash
	LogIndex    uint64
	Removed     bool
}

// LogFilter mirrors eth_getLogs' filter object.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []Address
	Topics    []*[32]byte // nil entry means wildcard at that position
}

// CallMsg mirrors the eth_call / eth_estimateGas transaction object.
type CallMsg struct {
	From     Address
	To       *Address // nil for contract creation
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

// Receipt mirrors eth_getTransactionReceipt's canonical shape.
type Receipt struct {
	TxHash            Hash
	BlockNumber       uint64
	Status            ReceiptStatus
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Logs              []Log
	ContractAddress   *Address
}

// ReceiptStatus is the two-valued on-chain execution outcome.
type ReceiptStatus int

const (
	ReceiptStatusFailure ReceiptStatus = iota
	ReceiptStatusSuccess
)

// Block is the subset of eth_getBlockByNumber fields this runtime consumes.
type Block struct {
	Number    uint64
	Hash      Hash
	Timestamp uint64
	BaseFee   *big.Int // nil pre-EIP-1559
}

// FeeHistory mirrors eth_feeHistory's reply shape.
type FeeHistory struct {
	BaseFeePerGas []*big.Int
	Reward        [][]*big.Int
}

// RPCConfig governs waitForTransaction's polling cadence.
type RPCConfig struct {
	PollInterval time.Duration
	MaxBackoff   time.Duration
}

func defaultRPCConfig() RPCConfig {
	return RPCConfig{PollInterval: 2 * time.Second, MaxBackoff: 16 * time.Second}
}

// RPC is the typed JSON-RPC facade (C3). ChainID is cached after first
// successful getChainId call, matching spec §4.3.
type RPC struct {
	transport Transport
	cfg       RPCConfig

	chainIDMu sync.Mutex
	chainID   uint64
	haveChain bool

	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewRPC constructs an RPC facade over the given transport. A call
// counter and latency histogram, labeled by JSON-RPC method (spec
// SPEC_FULL.md §10.5), are created per instance so tests never share
// global prometheus state.
func NewRPC(transport Transport, cfg RPCConfig) *RPC {
	if cfg.PollInterval <= 0 {
		cfg = defaultRPCConfig()
	}
	return &RPC{
		transport: transport,
		cfg:       cfg,
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentwallet_rpc_calls_total",
			Help: "Count of JSON-RPC calls issued, by method and outcome.",
		}, []string{"method", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentwallet_rpc_call_duration_seconds",
			Help:    "JSON-RPC call latency in seconds, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Collectors returns this RPC instance's metrics for registration with
// whatever prometheus.Registerer an embedding application uses.
func (r *RPC) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.callsTotal, r.callDuration}
}

func (r *RPC) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	start := time.Now()
	raw, err := r.transport.Call(ctx, method, params...)
	r.callDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		r.callsTotal.WithLabelValues(method, "error").Inc()
		return nil, RPCError(method, err)
	}
	r.callsTotal.WithLabelValues(method, "ok").Inc()
	return raw, nil
}

// GetBalance returns the native-asset balance of addr in wei, at the
// "latest" block tag.
func (r *RPC) GetBalance(ctx context.Context, addr Address) (*big.Int, error) {
	raw, err := r.call(ctx, "eth_getBalance", addr.Hex(), "latest")
	if err != nil {
		return nil, err
	}
	return decodeQuantity(raw)
}

// GetTransactionCount returns addr's pending-tag nonce, the node's view of
// the next nonce including not-yet-mined transactions.
func (r *RPC) GetTransactionCount(ctx context.Context, addr Address) (uint64, error) {
	raw, err := r.call(ctx, "eth_getTransactionCount", addr.Hex(), "pending")
	if err != nil {
		return 0, err
	}
	n, err := decodeQuantity(raw)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GetChainID returns the network's chain ID, caching it after the first
// successful call per spec §4.3. A failed attempt caches nothing, so a
// transient error does not poison later calls.
func (r *RPC) GetChainID(ctx context.Context) (uint64, error) {
	r.chainIDMu.Lock()
	if r.haveChain {
		id := r.chainID
		r.chainIDMu.Unlock()
		return id, nil
	}
	r.chainIDMu.Unlock()

	raw, err := r.call(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	n, err := decodeQuantity(raw)
	if err != nil {
		return 0, err
	}

	r.chainIDMu.Lock()
	r.chainID = n.Uint64()
	r.haveChain = true
	id := r.chainID
	r.chainIDMu.Unlock()
	return id, nil
}

// GetBlockNumber returns the node's current block height.
func (r *RPC) GetBlockNumber(ctx context.Context) (uint64, error) {
	raw, err := r.call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	n, err := decodeQuantity(raw)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GetBlock fetches a block by number (header fields only, no full bodies).
func (r *RPC) GetBlock(ctx context.Context, number uint64) (*Block, error) {
	raw, err := r.call(ctx, "eth_getBlockByNumber", quantityHex(number), false)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Number    string `json:"number"`
		Hash      string `json:"hash"`
		Timestamp string `json:"timestamp"`
		BaseFee   string `json:"baseFeePerGas"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, RPCError("eth_getBlockByNumber", err)
	}
	num, err := parseQuantityString(wire.Number)
	if err != nil {
		return nil, err
	}
	ts, err := parseQuantityString(wire.Timestamp)
	if err != nil {
		return nil, err
	}
	h, err := ParseHex(wire.Hash)
	if err != nil {
		return nil, RPCError("eth_getBlockByNumber", err)
	}
	blk := &Block{Number: num.Uint64(), Timestamp: ts.Uint64(), Hash: HashFromBytes(h)}
	if wire.BaseFee != "" {
		bf, err := parseQuantityString(wire.BaseFee)
		if err == nil {
			blk.BaseFee = bf
		}
	}
	return blk, nil
}

// GetLogs fetches logs matching filter via eth_getLogs.
func (r *RPC) GetLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	params := map[string]any{
		"fromBlock": quantityHex(filter.FromBlock),
		"toBlock":   quantityHex(filter.ToBlock),
	}
	if len(filter.Addresses) > 0 {
		addrs := make([]string, len(filter.Addresses))
		for i, a := range filter.Addresses {
			addrs[i] = a.Hex()
		}
		params["address"] = addrs
	}
	if len(filter.Topics) > 0 {
		topics := make([]any, len(filter.Topics))
		for i, t := range filter.Topics {
			if t == nil {
				topics[i] = nil
			} else {
				topics[i] = "0x" + hexEncode(t[:])
			}
		}
		params["topics"] = topics
	}
	raw, err := r.call(ctx, "eth_getLogs", params)
	if err != nil {
		return nil, err
	}
	var wire []wireLog
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, RPCError("eth_getLogs", err)
	}
	out := make([]Log, 0, len(wire))
	for _, w := range wire {
		l, err := w.toLog()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

type wireLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
	Removed     bool     `json:"removed"`
}

func (w wireLog) toLog() (Log, error) {
	addr, err := ParseAddress(w.Address)
	if err != nil {
		return Log{}, RPCError("eth_getLogs", err)
	}
	topics := make([][32]byte, len(w.Topics))
	for i, t := range w.Topics {
		b, err := ParseHex(t)
		if err != nil {
			return Log{}, RPCError("eth_getLogs", err)
		}
		var topic [32]byte
		copy(topic[:], HashFromBytes(b)[:])
		topics[i] = topic
	}
	data, err := ParseHex(w.Data)
	if err != nil {
		return Log{}, RPCError("eth_getLogs", err)
	}
	blockNum, err := parseQuantityString(w.BlockNumber)
	if err != nil {
		return Log{}, err
	}
	logIndex, err := parseQuantityString(w.LogIndex)
	if err != nil {
		return Log{}, err
	}
	txHashBytes, err := ParseHex(w.TxHash)
	if err != nil {
		return Log{}, RPCError("eth_getLogs", err)
	}
	return Log{
		Address:     addr,
		Topics:      topics,
		Data:        data,
		BlockNumber: blockNum.Uint64(),
		TxHash:      HashFromBytes(txHashBytes),
		LogIndex:    logIndex.Uint64(),
		Removed:     w.Removed,
	}, nil
}

// Call performs eth_call against the given message at "latest".
func (r *RPC) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	raw, err := r.call(ctx, "eth_call", callMsgToWire(msg), "latest")
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, RPCError("eth_call", err)
	}
	return ParseHex(hexStr)
}

// EstimateGas performs eth_estimateGas. A reverting call surfaces a typed
// TransactionReverted error carrying the decoded reason where available,
// never a silently substituted default (spec §4.5).
func (r *RPC) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	raw, err := r.call(ctx, "eth_estimateGas", callMsgToWire(msg))
	if err != nil {
		if data, ok := revertData(err); ok {
			return 0, TransactionReverted(decodeRevertReason(data))
		}
		return 0, err
	}
	n, err := decodeQuantity(raw)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func callMsgToWire(msg CallMsg) map[string]any {
	wire := map[string]any{"from": msg.From.Hex()}
	if msg.To != nil {
		wire["to"] = msg.To.Hex()
	}
	if msg.Gas > 0 {
		wire["gas"] = quantityHex(msg.Gas)
	}
	if msg.GasPrice != nil {
		wire["gasPrice"] = "0x" + msg.GasPrice.Text(16)
	}
	if msg.Value != nil {
		wire["value"] = "0x" + msg.Value.Text(16)
	}
	if len(msg.Data) > 0 {
		wire["data"] = "0x" + hexEncode(msg.Data)
	}
	return wire
}

// GetGasPrice returns the node's suggested legacy gas price.
func (r *RPC) GetGasPrice(ctx context.Context) (*big.Int, error) {
	raw, err := r.call(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}
	return decodeQuantity(raw)
}

// GetMaxPriorityFeePerGas returns the node's suggested EIP-1559 tip.
func (r *RPC) GetMaxPriorityFeePerGas(ctx context.Context) (*big.Int, error) {
	raw, err := r.call(ctx, "eth_maxPriorityFeePerGas")
	if err != nil {
		return nil, err
	}
	return decodeQuantity(raw)
}

// GetFeeHistory fetches blockCount blocks of fee history ending at
// "latest", with the given reward percentiles.
func (r *RPC) GetFeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*FeeHistory, error) {
	raw, err := r.call(ctx, "eth_feeHistory", quantityHex(blockCount), "latest", percentiles)
	if err != nil {
		return nil, err
	}
	var wire struct {
		BaseFeePerGas []string     `json:"baseFeePerGas"`
		Reward        [][]string   `json:"reward"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, RPCError("eth_feeHistory", err)
	}
	fh := &FeeHistory{}
	for _, s := range wire.BaseFeePerGas {
		n, err := parseQuantityString(s)
		if err != nil {
			return nil, err
		}
		fh.BaseFeePerGas = append(fh.BaseFeePerGas, n)
	}
	for _, row := range wire.Reward {
		var parsed []*big.Int
		for _, s := range row {
			n, err := parseQuantityString(s)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, n)
		}
		fh.Reward = append(fh.Reward, parsed)
	}
	return fh, nil
}

// SendRawTransaction broadcasts a signed, RLP-encoded transaction.
func (r *RPC) SendRawTransaction(ctx context.Context, raw []byte) (Hash, error) {
	resp, err := r.call(ctx, "eth_sendRawTransaction", "0x"+hexEncode(raw))
	if err != nil {
		return Hash{}, err
	}
	var hexStr string
	if err := json.Unmarshal(resp, &hexStr); err != nil {
		return Hash{}, RPCError("eth_sendRawTransaction", err)
	}
	b, err := ParseHex(hexStr)
	if err != nil {
		return Hash{}, RPCError("eth_sendRawTransaction", err)
	}
	return HashFromBytes(b), nil
}

// GetTransactionByHash fetches a transaction's current (possibly pending)
// view from the node; returns nil, nil if unknown.
func (r *RPC) GetTransactionByHash(ctx context.Context, hash Hash) (json.RawMessage, error) {
	raw, err := r.call(ctx, "eth_getTransactionByHash", hash.Hex())
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

// getTransactionReceipt is the primitive waitForTransaction polls.
func (r *RPC) getTransactionReceipt(ctx context.Context, hash Hash) (*Receipt, bool, error) {
	raw, err := r.call(ctx, "eth_getTransactionReceipt", hash.Hex())
	if err != nil {
		return nil, false, err
	}
	if string(raw) == "null" {
		return nil, false, nil
	}
	var wire struct {
		BlockNumber       string `json:"blockNumber"`
		Status            string `json:"status"`
		GasUsed           string `json:"gasUsed"`
		EffectiveGasPrice string `json:"effectiveGasPrice"`
		ContractAddress   string `json:"contractAddress"`
		Logs              []wireLog
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, false, RPCError("eth_getTransactionReceipt", err)
	}
	blockNum, err := parseQuantityString(wire.BlockNumber)
	if err != nil {
		return nil, false, err
	}
	gasUsed, err := parseQuantityString(wire.GasUsed)
	if err != nil {
		return nil, false, err
	}
	status := ReceiptStatusFailure
	if s, err := parseQuantityString(wire.Status); err == nil && s.Uint64() == 1 {
		status = ReceiptStatusSuccess
	}
	rcpt := &Receipt{
		TxHash:      hash,
		BlockNumber: blockNum.Uint64(),
		Status:      status,
		GasUsed:     gasUsed.Uint64(),
	}
	if wire.EffectiveGasPrice != "" {
		if p, err := parseQuantityString(wire.EffectiveGasPrice); err == nil {
			rcpt.EffectiveGasPrice = p
		}
	}
	if wire.ContractAddress != "" {
		if a, err := ParseAddress(wire.ContractAddress); err == nil {
			rcpt.ContractAddress = &a
		}
	}
	for _, wl := range wire.Logs {
		l, err := wl.toLog()
		if err != nil {
			return nil, false, err
		}
		rcpt.Logs = append(rcpt.Logs, l)
	}
	return rcpt, true, nil
}

// WaitForTransaction polls on a bounded cadence with exponential backoff
// until the receipt appears with at least `confirmations` blocks behind
// it, or timeout elapses.
func (r *RPC) WaitForTransaction(ctx context.Context, hash Hash, confirmations uint64, timeout time.Duration) (*Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	deadline := time.Now().Add(timeout)
	interval := r.cfg.PollInterval

	for {
		if time.Now().After(deadline) {
			return nil, Timeout("waitForTransaction")
		}
		rcpt, found, err := r.getTransactionReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if found {
			current, err := r.GetBlockNumber(ctx)
			if err != nil {
				return nil, err
			}
			if current >= rcpt.BlockNumber+confirmations-1 {
				return rcpt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, Timeout("waitForTransaction")
		case <-time.After(interval):
		}
		interval *= 2
		if interval > r.cfg.MaxBackoff {
			interval = r.cfg.MaxBackoff
		}
	}
}

// --- quantity helpers: Ethereum JSON-RPC hex-quantity encode/decode ---

func quantityHex(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

func decodeQuantity(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, RPCError("decodeQuantity", err)
	}
	return parseQuantityString(s)
}

func parseQuantityString(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, RPCError("parseQuantity", fmt.Errorf("invalid hex quantity %q", s))
	}
	return n, nil
}

func hexEncode(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0xf]
	}
	return string(out)
}
