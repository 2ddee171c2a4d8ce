package bridge

import (
	"context"
	"math/big"

	"github.com/synnergy-labs/agentwallet/core"
)

// Adapter is one bridge protocol integration (spec §4.12). Every adapter
// is constructed with the shared nonce manager (C4) and RPC contract (C3)
// rather than reaching back into the wallet, breaking the wallet<->bridge
// cycle spec §9's "Cyclic references" note describes.
type Adapter interface {
	Protocol() Protocol

	// SupportsRoute reports whether this adapter can move token from
	// srcChainID to dstChainID at all.
	SupportsRoute(token string, srcChainID, dstChainID uint64) bool

	// SupportedTokens lists the symbols this adapter ever quotes.
	SupportedTokens() []string

	// Quote fetches a fresh BridgeQuote for the given transfer.
	Quote(ctx context.Context, token string, amount *big.Int, dstChainID uint64) (*BridgeQuote, error)

	// Deposit submits the protocol-specific on-chain deposit/burn call
	// for an already-selected quote, returning the unified tracking ID
	// and the source-chain transaction hash.
	Deposit(ctx context.Context, quote BridgeQuote, tokenAddress, recipient core.Address, amount *big.Int) (trackingID string, sourceTxHash core.Hash, err error)

	// Status polls the protocol's own source of truth (a contract, an
	// attestation service, a REST API) and maps the result onto the
	// unified status machine.
	Status(ctx context.Context, trackingID string) (*UnifiedBridgeStatus, error)
}
