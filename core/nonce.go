package core

// Nonce manager (spec §4.4 / component C4): serializes nonce reservation
// across concurrent sends from one EOA.
//
// Grounded on the teacher's core/storage.go mutex-guarded counter idiom
// (a single sync.Mutex protecting a monotonic counter field), generalized
// to the reserve/confirm/fail lifecycle spec §4.4 requires.

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// NonceManager serializes nonce issuance for a single sending address.
// getNextNonce/onTransactionConfirmed/onTransactionFailed all execute
// under one exclusive lock, so no two concurrent callers ever observe the
// same reserved value.
type NonceManager struct {
	mu       sync.Mutex
	addr     Address
	rpc      *RPC
	reserved uint64
	started  bool

	reservedGauge prometheus.Gauge
}

// NewNonceManager constructs a nonce manager for addr over rpc. The
// reserved counter is seeded lazily from the node's pending-tag
// transaction count on the first getNextNonce call. A per-instance
// gauge of the reserved nonce (spec SPEC_FULL.md §10.5) is created
// eagerly; it is not registered here, Metric exposes it for registration.
func NewNonceManager(addr Address, rpc *RPC) *NonceManager {
	n := &NonceManager{addr: addr, rpc: rpc}
	n.reservedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "agentwallet_nonce_reserved",
		Help:        "Next nonce this manager will issue for this sending address.",
		ConstLabels: prometheus.Labels{"address": addr.Hex()},
	})
	return n
}

// Metric exposes the reserved-nonce gauge so an embedding application can
// register it with whatever prometheus.Registerer it uses.
func (n *NonceManager) Metric() prometheus.Collector { return n.reservedGauge }

// GetNextNonce reserves and returns the next nonce for this sender. On the
// very first call it seeds the reserved counter from the node's pending
// count, then issues and reserves pendingCount; subsequent calls issue the
// next integer and bump the reservation, all under the exclusive lock.
func (n *NonceManager) GetNextNonce(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		pending, err := n.rpc.GetTransactionCount(ctx, n.addr)
		if err != nil {
			return 0, err
		}
		n.reserved = pending
		n.started = true
	}

	nonce := n.reserved
	n.reserved++
	n.reservedGauge.Set(float64(n.reserved))
	return nonce, nil
}

// OnTransactionConfirmed is a no-op hook retained for symmetry with
// OnTransactionFailed and to match spec §4.4's three-operation contract;
// confirmation does not roll the reservation back.
func (n *NonceManager) OnTransactionConfirmed() {
	n.mu.Lock()
	defer n.mu.Unlock()
}

// OnTransactionFailed resets the reserved counter from the node's current
// pending count, so the next sender sees the post-gap value instead of
// replaying into a stuck nonce.
func (n *NonceManager) OnTransactionFailed(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	pending, err := n.rpc.GetTransactionCount(ctx, n.addr)
	if err != nil {
		return err
	}
	if pending > n.reserved {
		n.reserved = pending
		n.reservedGauge.Set(float64(n.reserved))
	}
	n.started = true
	return nil
}
