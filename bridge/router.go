package bridge

// Bridge router (spec §4.11 / component C11): quote fan-out and scoring,
// allowance management, the trackingId -> protocol map, and the unified
// status machine.
//
// Grounded on the teacher's cross_chain_bridge.go (StartBridgeTransfer's
// escrow-then-record shape, uuid-keyed records) and core/cross_chain.go's
// zap-logged registration flow; the router keeps that "mutate ledger then
// append an audit record" idiom but replaces the teacher's lock-and-mint
// escrow with this spec's quote + adapter deposit model.

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/synnergy-labs/agentwallet/core"
)

var bridgeLog = zap.NewNop().Sugar()

// SetBridgeLogger redirects the bridge package's logger, following the
// teacher's SetWalletLogger convention.
func SetBridgeLogger(l *zap.SugaredLogger) {
	if l != nil {
		bridgeLog = l
	}
}

// Router fans out quotes across registered adapters, selects a route,
// manages ERC-20 allowance for the chosen protocol's spender, and tracks
// in-flight transfers by their unified tracking ID.
type Router struct {
	mu       sync.Mutex
	adapters []Adapter
	byProto  map[Protocol]Adapter
	tracking map[string]Protocol
	audit    []AuditEntry

	account *core.Account
	rpc     *core.RPC
	nonces  *core.NonceManager
	gas     *core.GasOracle
	policy  *core.PolicyEngine

	confirmations  uint64
	receiptTimeout time.Duration

	registry          *prometheus.Registry
	statusTransitions *prometheus.CounterVec
}

// NewRouter constructs an empty router. Adapters register via Register.
func NewRouter(account *core.Account, rpc *core.RPC, nonces *core.NonceManager, gas *core.GasOracle, policy *core.PolicyEngine, confirmations uint64, receiptTimeout time.Duration) *Router {
	reg := prometheus.NewRegistry()
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentwallet_bridge_status_transitions_total",
		Help: "Count of bridge status transitions observed, by protocol and status.",
	}, []string{"protocol", "status"})
	reg.MustRegister(transitions)

	return &Router{
		byProto:           map[Protocol]Adapter{},
		tracking:          map[string]Protocol{},
		account:           account,
		rpc:               rpc,
		nonces:            nonces,
		gas:               gas,
		policy:            policy,
		confirmations:     confirmations,
		receiptTimeout:    receiptTimeout,
		registry:          reg,
		statusTransitions: transitions,
	}
}

// Registry exposes the router's metrics registry for a monitoring HTTP
// surface to serve.
func (r *Router) Registry() *prometheus.Registry { return r.registry }

// Register adds an adapter to the router's discovery set (spec §4.11
// "Discovery").
func (r *Router) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
	r.byProto[a.Protocol()] = a
}

// AuditLog returns a copy of the append-only event trail (spec §12).
func (r *Router) AuditLog() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEntry, len(r.audit))
	copy(out, r.audit)
	return out
}

func (r *Router) record(trackingID string, protocol Protocol, event, detail string) {
	r.mu.Lock()
	r.audit = append(r.audit, AuditEntry{Timestamp: time.Now(), TrackingID: trackingID, Protocol: protocol, Event: event, Detail: detail})
	r.mu.Unlock()
}

// CompareBridgeRoutes fans out quote requests to every adapter claiming
// the route, filters out expired/invalid/out-of-bound quotes, scores the
// survivors per preference.Priority, and returns all of them plus a
// recommendation (spec §4.11).
func (r *Router) CompareBridgeRoutes(ctx context.Context, token string, amount *big.Int, dstChainID uint64, preference RoutePreference) (*CompareResult, error) {
	r.mu.Lock()
	candidates := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		if isInList(a.Protocol(), preference.Excluded) {
			continue
		}
		if len(preference.Preferred) > 0 && !isInList(a.Protocol(), preference.Preferred) {
			continue
		}
		if a.SupportsRoute(token, 0, dstChainID) {
			candidates = append(candidates, a)
		}
	}
	r.mu.Unlock()

	if len(candidates) == 0 {
		return nil, core.BridgeNoRoute(token, dstChainID)
	}

	now := time.Now()
	var quotes []BridgeQuote
	for _, a := range candidates {
		q, err := a.Quote(ctx, token, amount, dstChainID)
		if err != nil {
			bridgeLog.Warnw("quote failed", "protocol", a.Protocol(), "error", err)
			continue
		}
		if q.Expired(now) {
			continue
		}
		if !passesHardFilters(*q, preference) {
			continue
		}
		quotes = append(quotes, *q)
	}
	if len(quotes) == 0 {
		return nil, core.BridgeNoRoute(token, dstChainID)
	}

	sortQuotes(quotes, preference.Priority)
	result := &CompareResult{Quotes: quotes, Recommendation: &quotes[0]}
	return result, nil
}

func isInList(p Protocol, list []Protocol) bool {
	for _, e := range list {
		if e == p {
			return true
		}
	}
	return false
}

func passesHardFilters(q BridgeQuote, pref RoutePreference) bool {
	if pref.MaxFeeUSD != nil && q.Fee.TotalUSD != nil && q.Fee.TotalUSD.Cmp(pref.MaxFeeUSD) > 0 {
		return false
	}
	if pref.MaxTimeMinutes != nil && q.EstimatedTime.MaxSec > *pref.MaxTimeMinutes*60 {
		return false
	}
	if pref.MaxSlippageBps != nil && q.SlippageBps > *pref.MaxSlippageBps {
		return false
	}
	return true
}

func sortQuotes(quotes []BridgeQuote, priority string) {
	switch priority {
	case "speed":
		sort.Slice(quotes, func(i, j int) bool { return quotes[i].EstimatedTime.MaxSec < quotes[j].EstimatedTime.MaxSec })
	case "reliability":
		sort.Slice(quotes, func(i, j int) bool {
			if quotes[i].ReliabilityRank != quotes[j].ReliabilityRank {
				return quotes[i].ReliabilityRank < quotes[j].ReliabilityRank
			}
			return cmpUSD(quotes[i].Fee.TotalUSD, quotes[j].Fee.TotalUSD) < 0
		})
	default: // "cost"
		sort.Slice(quotes, func(i, j int) bool { return cmpUSD(quotes[i].Fee.TotalUSD, quotes[j].Fee.TotalUSD) < 0 })
	}
}

func cmpUSD(a, b *big.Int) int {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		b = big.NewInt(0)
	}
	return a.Cmp(b)
}

// Bridge resolves a protocol (explicit or best of CompareBridgeRoutes),
// checks bridge limits via the policy engine, ensures ERC-20 allowance for
// the protocol's spender (zero-then-set for USDT-style tokens), invokes
// the adapter's deposit, and records the unified tracking ID (spec
// §4.11).
func (r *Router) Bridge(ctx context.Context, opts BridgeOptions) (*BridgeResult, error) {
	adapter, quote, err := r.resolveAdapter(ctx, opts)
	if err != nil {
		return nil, err
	}

	if r.policy != nil {
		balance, err := r.rpc.GetBalance(ctx, r.account.Address())
		if err != nil {
			return nil, err
		}
		if err := r.policy.CheckBridgeTransaction(ctx, opts.Token, opts.DestinationChainID, opts.Recipient, safeUint64(opts.Amount), safeUint64(balance)); err != nil {
			return nil, err
		}
	}

	spender, err := r.ensureAllowance(ctx, adapter, opts)
	if err != nil {
		return nil, err
	}
	_ = spender

	trackingID, sourceTxHash, err := adapter.Deposit(ctx, *quote, opts.TokenAddress, opts.Recipient, opts.Amount)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.tracking[trackingID] = adapter.Protocol()
	r.mu.Unlock()
	r.record(trackingID, adapter.Protocol(), "deposit", fmt.Sprintf("source tx %s", sourceTxHash.Hex()))
	r.statusTransitions.WithLabelValues(string(adapter.Protocol()), string(StatusPendingBurn)).Inc()

	if r.policy != nil {
		r.policy.RecordBridgeSpend(opts.Token, opts.DestinationChainID, safeUint64(opts.Amount))
	}

	return &BridgeResult{TrackingID: trackingID, Protocol: adapter.Protocol(), SourceTxHash: sourceTxHash, Quote: *quote}, nil
}

func (r *Router) resolveAdapter(ctx context.Context, opts BridgeOptions) (Adapter, *BridgeQuote, error) {
	r.mu.Lock()
	explicit, hasExplicit := r.byProto[opts.Protocol]
	r.mu.Unlock()

	if opts.Protocol != "" && hasExplicit {
		quote, err := explicit.Quote(ctx, opts.Token, opts.Amount, opts.DestinationChainID)
		if err != nil {
			return nil, nil, core.BridgeProtocolUnavailable(string(opts.Protocol), err)
		}
		if quote.Expired(time.Now()) {
			return nil, nil, core.BridgeQuoteExpired(string(opts.Protocol))
		}
		return explicit, quote, nil
	}

	cmp, err := r.CompareBridgeRoutes(ctx, opts.Token, opts.Amount, opts.DestinationChainID, opts.Preference)
	if err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	adapter := r.byProto[cmp.Recommendation.Protocol]
	r.mu.Unlock()
	if adapter == nil {
		return nil, nil, core.BridgeNoRoute(opts.Token, opts.DestinationChainID)
	}
	return adapter, cmp.Recommendation, nil
}

// ensureAllowance reads the current allowance, and if it is below the
// requested amount, submits approve(spender, 0) first when the current
// allowance is non-zero (the USDT-style requirement), then
// approve(spender, amount). A reverted approval aborts with
// BRIDGE_VALIDATION_FAILED.
func (r *Router) ensureAllowance(ctx context.Context, adapter Adapter, opts BridgeOptions) (core.Address, error) {
	spender, ok := adapter.(SpenderAware)
	if !ok {
		return core.Address{}, nil
	}
	spenderAddr := spender.Spender(opts.DestinationChainID)

	current, err := readAllowance(ctx, r.rpc, opts.TokenAddress, r.account.Address(), spenderAddr)
	if err != nil {
		return core.Address{}, err
	}
	if current.Cmp(opts.Amount) >= 0 {
		return spenderAddr, nil
	}

	if current.Sign() > 0 {
		if err := r.submitApproval(ctx, opts.TokenAddress, spenderAddr, big.NewInt(0)); err != nil {
			return core.Address{}, err
		}
	}
	if err := r.submitApproval(ctx, opts.TokenAddress, spenderAddr, opts.Amount); err != nil {
		return core.Address{}, err
	}
	return spenderAddr, nil
}

func (r *Router) submitApproval(ctx context.Context, token, spender core.Address, amount *big.Int) error {
	data, err := approveData(spender, amount)
	if err != nil {
		return err
	}
	result, err := core.SubmitContractCall(ctx, r.account, r.rpc, r.nonces, r.gas, token, nil, data, r.confirmations, r.receiptTimeout)
	if err != nil {
		return err
	}
	if result.Receipt.Status == core.ReceiptStatusFailure {
		return core.BridgeValidationFailed(fmt.Sprintf("approve(%s, %s) reverted", spender.Hex(), amount.String()))
	}
	return nil
}

// SpenderAware is implemented by adapters whose deposit contract requires
// an ERC-20 allowance (i.e. everything except a native-asset bridge).
type SpenderAware interface {
	Spender(dstChainID uint64) core.Address
}

// GetBridgeStatusByTrackingID dispatches to the originating adapter and
// records any status transition (spec §4.11).
func (r *Router) GetBridgeStatusByTrackingID(ctx context.Context, trackingID string) (*UnifiedBridgeStatus, error) {
	r.mu.Lock()
	protocol, ok := r.tracking[trackingID]
	adapter := r.byProto[protocol]
	r.mu.Unlock()
	if !ok || adapter == nil {
		return nil, core.BridgeProtocolUnavailable(string(protocol), fmt.Errorf("unknown tracking id %s", trackingID))
	}

	status, err := adapter.Status(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	r.statusTransitions.WithLabelValues(string(protocol), string(status.Status)).Inc()
	r.record(trackingID, protocol, "status", string(status.Status))
	return status, nil
}

func safeUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if v.IsUint64() {
		return v.Uint64()
	}
	return ^uint64(0)
}
