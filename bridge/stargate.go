package bridge

// Stargate adapter (spec §4.12): pool-based liquidity bridging over
// LayerZero. Stargate's own lifecycle has no separate attestation phase,
// so its status mapping compresses pending_burn/attestation straight to
// mint_pending (spec §4.11's unified status machine note).

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/synnergy-labs/agentwallet/codec/abi"
	"github.com/synnergy-labs/agentwallet/core"
)

var sendTokenSelector = mustSelector("sendToken(uint32,bytes32,uint256,uint256,bytes,bytes,bytes)")

// StargatePoolConfig is one chain's Stargate pool router and LayerZero
// endpoint ID.
type StargatePoolConfig struct {
	Router core.Address
	EID    uint32 // LayerZero endpoint ID for this chain
}

// StargateQuoteProvider supplies pool-depth-aware pricing (Stargate's
// quoteOFT/quoteSend view calls) this adapter turns into a BridgeQuote.
type StargateQuoteProvider interface {
	QuoteSend(ctx context.Context, token string, amount *big.Int, dstEID uint32) (minAmountOut *big.Int, feeWei *big.Int, feeUSD *big.Int, err error)
}

// StargateStatusClient abstracts LayerZero's scan API so tests can
// substitute a fake instead of making network calls.
type StargateStatusClient interface {
	MessageStatus(ctx context.Context, srcTxHash core.Hash) (status string, dstTxHash string, err error)
}

// StargateAdapter implements Adapter for Stargate's pool-based bridge.
type StargateAdapter struct {
	account *core.Account
	rpc     *core.RPC
	nonces  *core.NonceManager
	gas     *core.GasOracle
	confs   uint64
	timeout time.Duration
	pools   map[uint64]StargatePoolConfig
	quotes  StargateQuoteProvider
	status  StargateStatusClient
}

// NewStargateAdapter constructs a Stargate adapter. pools maps chain ID to
// its Stargate router/endpoint configuration.
func NewStargateAdapter(account *core.Account, rpc *core.RPC, nonces *core.NonceManager, gas *core.GasOracle, confirmations uint64, receiptTimeout time.Duration, pools map[uint64]StargatePoolConfig, quotes StargateQuoteProvider, status StargateStatusClient) *StargateAdapter {
	return &StargateAdapter{
		account: account, rpc: rpc, nonces: nonces, gas: gas,
		confs: confirmations, timeout: receiptTimeout,
		pools: pools, quotes: quotes, status: status,
	}
}

func (a *StargateAdapter) Protocol() Protocol { return ProtocolStargate }

func (a *StargateAdapter) SupportsRoute(_ string, _, dstChainID uint64) bool {
	_, ok := a.pools[dstChainID]
	return ok
}

func (a *StargateAdapter) SupportedTokens() []string { return []string{"USDC", "USDT"} }

// Spender implements SpenderAware: the pools map holds one entry per
// supported destination corridor, each naming the source-chain router to
// call for that corridor (mirroring CCTPAdapter/AcrossAdapter's chains
// map, both keyed the same way).
func (a *StargateAdapter) Spender(dstChainID uint64) core.Address {
	return a.pools[dstChainID].Router
}

func (a *StargateAdapter) Quote(ctx context.Context, token string, amount *big.Int, dstChainID uint64) (*BridgeQuote, error) {
	pool, ok := a.pools[dstChainID]
	if !ok {
		return nil, core.BridgeNoRoute(token, dstChainID)
	}
	minOut, feeWei, feeUSD, err := a.quotes.QuoteSend(ctx, token, amount, pool.EID)
	if err != nil {
		return nil, core.BridgeProtocolUnavailable(string(ProtocolStargate), err)
	}
	slippageBps := uint32(0)
	if amount.Sign() > 0 {
		diff := new(big.Int).Sub(amount, minOut)
		bps := new(big.Int).Div(new(big.Int).Mul(diff, big.NewInt(10000)), amount)
		slippageBps = uint32(bps.Uint64())
	}
	return &BridgeQuote{
		Protocol:        ProtocolStargate,
		InputAmount:     amount,
		OutputAmount:    minOut,
		Fee:             FeeBreakdown{Gas: feeWei, Total: feeWei, TotalUSD: feeUSD},
		SlippageBps:     slippageBps,
		EstimatedTime:   EstimatedTime{MinSec: 15, MaxSec: 120},
		Route:           Route{Dst: dstChainID, Steps: []string{"pool swap + send"}, Description: "Stargate pool liquidity over LayerZero"},
		Expiry:          time.Now().Add(2 * time.Minute),
		ReliabilityRank: 3,
	}, nil
}

// Deposit calls sendToken on the source chain's Stargate router, paying
// the LayerZero message fee in the call's native value. The unified
// tracking ID is the source transaction hash itself, since Stargate's
// destination delivery is tracked by LayerZero scan against that hash
// rather than a protocol-minted identifier.
func (a *StargateAdapter) Deposit(ctx context.Context, quote BridgeQuote, tokenAddress, recipient core.Address, amount *big.Int) (string, core.Hash, error) {
	pool, ok := a.pools[quote.Route.Dst]
	if !ok {
		return "", core.Hash{}, core.BridgeNoRoute("", quote.Route.Dst)
	}

	encoded, err := abi.Encode(
		[]string{"uint32", "bytes32", "uint256", "uint256", "bytes", "bytes", "bytes"},
		[]any{pool.EID, addressToBytes32(recipient), amount, quote.OutputAmount, []byte{}, []byte{}, []byte{}},
	)
	if err != nil {
		return "", core.Hash{}, err
	}
	data := append(sendTokenSelector[:], encoded...)

	result, err := core.SubmitContractCall(ctx, a.account, a.rpc, a.nonces, a.gas, pool.Router, quote.Fee.Gas, data, a.confs, a.timeout)
	if err != nil {
		return "", core.Hash{}, err
	}
	if result.Receipt.Status == core.ReceiptStatusFailure {
		return "", core.Hash{}, core.BridgeValidationFailed("sendToken reverted")
	}
	return result.Hash.Hex(), result.Hash, nil
}

// Status polls LayerZero's message-scan API by source transaction hash.
// Because Stargate has no separate attestation phase, "delivered" maps
// straight to completed and any other known status is reported as
// mint_pending, per spec §4.11's note that Stargate compresses
// burn/attestation into one step.
func (a *StargateAdapter) Status(ctx context.Context, trackingID string) (*UnifiedBridgeStatus, error) {
	srcHex, err := core.ParseHex(trackingID)
	if err != nil {
		return nil, core.BridgeValidationFailed(fmt.Sprintf("invalid stargate tracking id %q", trackingID))
	}
	srcHash := core.HashFromBytes(srcHex)

	status, dstTxHash, err := a.status.MessageStatus(ctx, srcHash)
	if err != nil {
		return nil, core.BridgeProtocolUnavailable(string(ProtocolStargate), err)
	}

	out := &UnifiedBridgeStatus{TrackingID: trackingID, Protocol: ProtocolStargate, SourceTxHash: &srcHash, UpdatedAt: time.Now()}
	switch status {
	case "delivered":
		out.Status = StatusCompleted
		out.Progress = 100
		if dstTxHash != "" {
			if h, err := core.ParseHex(dstTxHash); err == nil {
				dest := core.HashFromBytes(h)
				out.DestTxHash = &dest
			}
		}
	case "failed":
		out.Status = StatusFailed
		out.Error = "layerzero delivery failed"
	default:
		out.Status = StatusMintPending
		out.Progress = 70
		out.Message = "in flight over layerzero"
	}
	return out, nil
}
