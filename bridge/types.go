// Package bridge implements the bridge router and protocol adapters (spec
// §4.11-4.12 / components C11-C12): quote comparison, route selection,
// allowance management, per-protocol deposit flows, and a unified status
// machine tracked by protocol-opaque tracking IDs.
//
// Grounded on the teacher's cross_chain*.go files, which already model a
// bridge registry, a transfer ledger keyed by opaque uuid IDs, and a
// completion/status lifecycle; this package keeps that "immutable record
// plus append-only audit trail" shape and generalizes it from the
// teacher's native lock-and-mint scheme to this spec's quote+adapter
// model.
package bridge

import (
	"math/big"
	"time"

	"github.com/synnergy-labs/agentwallet/core"
)

// Protocol identifies a bridge adapter.
type Protocol string

const (
	ProtocolCCTP     Protocol = "cctp"
	ProtocolAcross   Protocol = "across"
	ProtocolStargate Protocol = "stargate"
)

// FeeBreakdown is a quote's cost, matching spec §3's BridgeQuote shape.
// Protocol, Gas and Total are raw integer amounts in the unit the adapter
// reports them in (the token's smallest unit for Across, wei of the native
// messaging fee for Stargate); only TotalUSD is in USD.
type FeeBreakdown struct {
	Protocol *big.Int
	Gas      *big.Int
	Total    *big.Int
	TotalUSD *big.Int
}

// EstimatedTime bounds a transfer's expected completion time.
type EstimatedTime struct {
	MinSec uint64
	MaxSec uint64
}

// Route describes a quote's path in human-readable terms.
type Route struct {
	Src         uint64
	Dst         uint64
	Steps       []string
	Description string
}

// BridgeQuote is an immutable snapshot returned by one adapter (spec §3).
// ReliabilityRank is this spec's concretization of "adapter-declared rank"
// for the `reliability` scoring priority — lower is more reliable.
type BridgeQuote struct {
	Protocol        Protocol
	InputAmount     *big.Int
	OutputAmount    *big.Int
	Fee             FeeBreakdown
	SlippageBps     uint32
	EstimatedTime   EstimatedTime
	Route           Route
	Expiry          time.Time
	ReliabilityRank int
}

// Expired reports whether the quote can no longer be submitted.
func (q BridgeQuote) Expired(now time.Time) bool {
	return !q.Expiry.IsZero() && now.After(q.Expiry)
}

// BridgeStatusState is one node of the unified status machine (spec
// §4.11).
type BridgeStatusState string

const (
	StatusPendingBurn        BridgeStatusState = "pending_burn"
	StatusBurnConfirmed      BridgeStatusState = "burn_confirmed"
	StatusAttestationPending BridgeStatusState = "attestation_pending"
	StatusAttestationReady   BridgeStatusState = "attestation_ready"
	StatusMintPending        BridgeStatusState = "mint_pending"
	StatusCompleted          BridgeStatusState = "completed"
	StatusFailed             BridgeStatusState = "failed"
)

// UnifiedBridgeStatus is the protocol-agnostic view of an in-flight
// transfer (spec §3).
type UnifiedBridgeStatus struct {
	TrackingID   string
	Protocol     Protocol
	Status       BridgeStatusState
	SourceTxHash *core.Hash
	DestTxHash   *core.Hash
	Progress     uint8
	Message      string
	UpdatedAt    time.Time
	Error        string
}

// IncomingPayment is one matched Transfer log, produced exclusively by the
// payment watcher (component C13).
type IncomingPayment struct {
	Token           core.Address
	From            core.Address
	To              core.Address
	Amount          *big.Int
	FormattedAmount string
	TransactionHash core.Hash
	BlockNumber     uint64
	LogIndex        uint64
}

// RoutePreference governs compareBridgeRoutes scoring and hard filters
// (spec §4.11).
type RoutePreference struct {
	Priority       string // "cost", "speed", or "reliability"
	MaxFeeUSD      *big.Int
	MaxTimeMinutes *uint64
	MaxSlippageBps *uint32
	Preferred      []Protocol
	Excluded       []Protocol
}

// CompareResult is compareBridgeRoutes' return value: every surviving
// quote plus the top-scoring recommendation.
type CompareResult struct {
	Quotes         []BridgeQuote
	Recommendation *BridgeQuote
}

// BridgeOptions parameterizes a bridge() call. Protocol, if set, skips
// compareBridgeRoutes and forces that adapter.
type BridgeOptions struct {
	Token              string
	TokenAddress       core.Address
	Amount             *big.Int
	DestinationChainID uint64
	Protocol           Protocol
	Preference         RoutePreference
	Recipient          core.Address
}

// BridgeResult is bridge()'s success value (spec §4.11).
type BridgeResult struct {
	TrackingID   string
	Protocol     Protocol
	SourceTxHash core.Hash
	Quote        BridgeQuote
}

// AuditEntry is one append-only record of a bridge event, the Go-native
// equivalent of the teacher's ListBridgeTransfers trail (spec §12),
// scoped to this package's unified status machine rather than the
// teacher's lock/mint ledger.
type AuditEntry struct {
	Timestamp  time.Time
	TrackingID string
	Protocol   Protocol
	Event      string
	Detail     string
}
