package bridge

// Across adapter (spec §4.12): calls depositV3 on the origin chain's
// SpokePool using a quote's {quoteTimestamp, fillDeadline,
// exclusiveRelayer, exclusivityDeadline}, with the hard pre-submit
// validation spec §4.12 names; status comes from the Across REST API.

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/synnergy-labs/agentwallet/codec/abi"
	"github.com/synnergy-labs/agentwallet/core"
)

// depositV3Selector/v3FundsDepositedTopic re-derive the canonical Across
// SpokePool signatures rather than hardcoding a selector string (see
// DESIGN.md's Open Question entry on this exact point).
var (
	depositV3Selector     = mustSelector("depositV3(address,address,address,address,uint256,uint256,uint256,address,uint32,uint32,uint32,bytes)")
	v3FundsDepositedTopic = mustEventTopic("V3FundsDeposited(address,address,uint256,uint256,uint256,uint32,uint32,uint32,uint32,address,address,address,bytes)")
)

func mustSelector(sig string) [4]byte {
	s, err := abi.Selector(sig)
	if err != nil {
		panic(err)
	}
	return s
}

// AcrossStatusClient abstracts Across' REST API (spec §6:
// app.across.to/api / testnet.across.to/api) so tests can substitute a
// fake instead of making network calls.
type AcrossStatusClient interface {
	DepositStatus(ctx context.Context, originChainID uint64, depositID uint32) (status string, fillTxHash string, err error)
}

// AcrossChainConfig is one chain's SpokePool address.
type AcrossChainConfig struct {
	SpokePool core.Address
}

// AcrossQuoteProvider supplies the REST-sourced suggested-fees quote data
// this adapter turns into a BridgeQuote (spec §6's suggested-fees
// endpoint).
type AcrossQuoteProvider interface {
	SuggestedFees(ctx context.Context, token string, amount *big.Int, originChainID, dstChainID uint64) (*AcrossSuggestedFees, error)
}

// AcrossSuggestedFees is the subset of Across' suggested-fees response
// this adapter consumes.
type AcrossSuggestedFees struct {
	OutputAmount        *big.Int
	TotalFeeUSD         *big.Int
	ExclusiveRelayer    core.Address
	QuoteTimestamp      uint32
	FillDeadline        uint32
	ExclusivityDeadline uint32
	EstimatedFillSec    uint64
}

// AcrossAdapter implements Adapter for Across Protocol's SpokePool.
type AcrossAdapter struct {
	account       *core.Account
	rpc           *core.RPC
	nonces        *core.NonceManager
	gas           *core.GasOracle
	confs         uint64
	timeout       time.Duration
	originChainID uint64
	chains        map[uint64]AcrossChainConfig
	quotes        AcrossQuoteProvider
	status        AcrossStatusClient
}

// NewAcrossAdapter constructs an Across adapter bound to one origin chain
// (the wallet's own chain); chains maps destination chain ID to SpokePool.
func NewAcrossAdapter(account *core.Account, rpc *core.RPC, nonces *core.NonceManager, gas *core.GasOracle, confirmations uint64, receiptTimeout time.Duration, originChainID uint64, chains map[uint64]AcrossChainConfig, quotes AcrossQuoteProvider, status AcrossStatusClient) *AcrossAdapter {
	return &AcrossAdapter{
		account: account, rpc: rpc, nonces: nonces, gas: gas,
		confs: confirmations, timeout: receiptTimeout,
		originChainID: originChainID, chains: chains, quotes: quotes, status: status,
	}
}

func (a *AcrossAdapter) Protocol() Protocol { return ProtocolAcross }

func (a *AcrossAdapter) SupportsRoute(_ string, _, dstChainID uint64) bool {
	_, ok := a.chains[dstChainID]
	return ok
}

func (a *AcrossAdapter) SupportedTokens() []string { return []string{"USDC", "USDT", "WETH"} }

func (a *AcrossAdapter) Spender(dstChainID uint64) core.Address {
	return a.chains[dstChainID].SpokePool
}

func (a *AcrossAdapter) Quote(ctx context.Context, token string, amount *big.Int, dstChainID uint64) (*BridgeQuote, error) {
	if _, ok := a.chains[dstChainID]; !ok {
		return nil, core.BridgeNoRoute(token, dstChainID)
	}
	fees, err := a.quotes.SuggestedFees(ctx, token, amount, a.originChainID, dstChainID)
	if err != nil {
		return nil, core.BridgeProtocolUnavailable(string(ProtocolAcross), err)
	}
	return &BridgeQuote{
		Protocol:     ProtocolAcross,
		InputAmount:  amount,
		OutputAmount: fees.OutputAmount,
		Fee: FeeBreakdown{
			Total:    new(big.Int).Sub(amount, fees.OutputAmount),
			TotalUSD: fees.TotalFeeUSD,
		},
		EstimatedTime:   EstimatedTime{MinSec: 2, MaxSec: fees.EstimatedFillSec},
		Route:           Route{Dst: dstChainID, Steps: []string{"deposit", "relay fill"}, Description: "Across v3 intent-based relay"},
		Expiry:          time.Unix(int64(fees.QuoteTimestamp), 0).Add(300 * time.Second),
		ReliabilityRank: 2,
		// quoteTimestamp/fillDeadline/exclusivity fields are not carried
		// on BridgeQuote; Deposit fetches suggested fees again at submit
		// time and takes them from that response.
	}, nil
}

// Deposit validates the quote's timing windows, calls depositV3, and
// parses V3FundsDeposited to learn the integer depositId; the unified
// tracking ID is that depositId in hex, left-padded to 32 bytes (spec
// §4.12).
func (a *AcrossAdapter) Deposit(ctx context.Context, quote BridgeQuote, tokenAddress, recipient core.Address, amount *big.Int) (string, core.Hash, error) {
	cfg, ok := a.chains[quote.Route.Dst]
	if !ok {
		return "", core.Hash{}, core.BridgeNoRoute("", quote.Route.Dst)
	}
	fees, err := a.quotes.SuggestedFees(ctx, "", amount, a.originChainID, quote.Route.Dst)
	if err != nil {
		return "", core.Hash{}, core.BridgeProtocolUnavailable(string(ProtocolAcross), err)
	}

	now := time.Now()
	if uint32(now.Unix()) >= fees.FillDeadline {
		return "", core.Hash{}, core.BridgeValidationFailed("fillDeadline is not in the future")
	}
	quoteTime := time.Unix(int64(fees.QuoteTimestamp), 0)
	if now.Sub(quoteTime) > 300*time.Second || quoteTime.Sub(now) > 5*time.Second {
		return "", core.Hash{}, core.BridgeValidationFailed("quoteTimestamp is stale")
	}

	encoded, err := abi.Encode(
		[]string{"address", "address", "address", "address", "uint256", "uint256", "uint256", "address", "uint32", "uint32", "uint32", "bytes"},
		[]any{
			a.account.Address(), recipient, tokenAddress, tokenAddress,
			amount, fees.OutputAmount, new(big.Int).SetUint64(quote.Route.Dst), fees.ExclusiveRelayer,
			fees.QuoteTimestamp, fees.FillDeadline, fees.ExclusivityDeadline, []byte{},
		},
	)
	if err != nil {
		return "", core.Hash{}, err
	}
	data := append(depositV3Selector[:], encoded...)

	result, err := core.SubmitContractCall(ctx, a.account, a.rpc, a.nonces, a.gas, cfg.SpokePool, nil, data, a.confs, a.timeout)
	if err != nil {
		return "", core.Hash{}, err
	}
	if result.Receipt.Status == core.ReceiptStatusFailure {
		return "", core.Hash{}, core.BridgeValidationFailed("depositV3 reverted")
	}

	depositID, err := extractDepositID(result.Receipt.Logs)
	if err != nil {
		return "", core.Hash{}, err
	}
	trackingID := fmt.Sprintf("0x%064x", depositID)
	return trackingID, result.Hash, nil
}

// extractDepositID reads the V3FundsDeposited log's indexed depositId
// (topic 2: destinationChainId is topic 1, depositId is topic 2,
// depositor is topic 3), a uint32 right-aligned in its 32-byte topic
// word.
func extractDepositID(logs []core.Log) (uint32, error) {
	for _, l := range logs {
		if len(l.Topics) < 3 || l.Topics[0] != v3FundsDepositedTopic {
			continue
		}
		word := l.Topics[2]
		return uint32(word[28])<<24 | uint32(word[29])<<16 | uint32(word[30])<<8 | uint32(word[31]), nil
	}
	return 0, fmt.Errorf("bridge: no V3FundsDeposited event in deposit receipt")
}

// Status queries Across' deposit/status endpoint; "filled" maps to
// completed and "expired" to failed, per spec §4.12.
func (a *AcrossAdapter) Status(ctx context.Context, trackingID string) (*UnifiedBridgeStatus, error) {
	depositID, err := parseTrackingDepositID(trackingID)
	if err != nil {
		return nil, err
	}
	status, fillTx, err := a.status.DepositStatus(ctx, a.originChainID, depositID)
	if err != nil {
		return nil, core.BridgeProtocolUnavailable(string(ProtocolAcross), err)
	}

	out := &UnifiedBridgeStatus{TrackingID: trackingID, Protocol: ProtocolAcross, UpdatedAt: time.Now()}
	switch status {
	case "filled":
		out.Status = StatusCompleted
		out.Progress = 100
		if fillTx != "" {
			if h, err := core.ParseHex(fillTx); err == nil {
				dest := core.HashFromBytes(h)
				out.DestTxHash = &dest
			}
		}
	case "expired":
		out.Status = StatusFailed
		out.Error = "quote expired before fill"
	default:
		out.Status = StatusAttestationPending
		out.Progress = 40
		out.Message = "waiting for relayer fill"
	}
	return out, nil
}

func parseTrackingDepositID(trackingID string) (uint32, error) {
	var depositID uint64
	if _, err := fmt.Sscanf(trackingID, "0x%064x", &depositID); err != nil {
		return 0, core.BridgeValidationFailed(fmt.Sprintf("invalid across tracking id %q", trackingID))
	}
	return uint32(depositID), nil
}
