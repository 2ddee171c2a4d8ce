package bridge

// CCTP adapter (spec §4.12): burns USDC via Circle's TokenMessenger
// contract and tracks completion through the attestation service, keyed
// by the keccak256 of the MessageSent event's message bytes.

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/synnergy-labs/agentwallet/codec/abi"
	"github.com/synnergy-labs/agentwallet/core"
)

// AttestationClient abstracts Circle's attestation service so tests can
// substitute a fake instead of making network calls.
type AttestationClient interface {
	GetAttestation(ctx context.Context, messageHash string) (status, attestation string, err error)
}

// CCTPChainConfig is one chain's TokenMessenger/USDC addresses and Circle
// domain ID.
type CCTPChainConfig struct {
	TokenMessenger core.Address
	USDC           core.Address
	Domain         uint32
}

// CCTPAdapter implements Adapter for Circle's Cross-Chain Transfer
// Protocol.
type CCTPAdapter struct {
	account     *core.Account
	rpc         *core.RPC
	nonces      *core.NonceManager
	gas         *core.GasOracle
	confs       uint64
	timeout     time.Duration
	chains      map[uint64]CCTPChainConfig
	attestation AttestationClient

	mu       sync.Mutex
	tracking map[string]cctpTracked
}

type cctpTracked struct {
	sourceChainID uint64
	sourceTxHash  core.Hash
}

// NewCCTPAdapter constructs a CCTP adapter. chains maps chain ID to its
// TokenMessenger/USDC/domain configuration.
func NewCCTPAdapter(account *core.Account, rpc *core.RPC, nonces *core.NonceManager, gas *core.GasOracle, confirmations uint64, receiptTimeout time.Duration, chains map[uint64]CCTPChainConfig, attestation AttestationClient) *CCTPAdapter {
	return &CCTPAdapter{
		account:     account,
		rpc:         rpc,
		nonces:      nonces,
		gas:         gas,
		confs:       confirmations,
		timeout:     receiptTimeout,
		chains:      chains,
		attestation: attestation,
		tracking:    map[string]cctpTracked{},
	}
}

func (a *CCTPAdapter) Protocol() Protocol { return ProtocolCCTP }

func (a *CCTPAdapter) SupportsRoute(token string, _, dstChainID uint64) bool {
	if token != "USDC" {
		return false
	}
	_, ok := a.chains[dstChainID]
	return ok
}

func (a *CCTPAdapter) SupportedTokens() []string { return []string{"USDC"} }

// Quote has no real market variability for CCTP (USDC moves 1:1 and every
// fee field is quoted as zero); this still returns a BridgeQuote so the router can
// compare it against other adapters under a common shape.
func (a *CCTPAdapter) Quote(ctx context.Context, token string, amount *big.Int, dstChainID uint64) (*BridgeQuote, error) {
	if _, ok := a.chains[dstChainID]; !ok || token != "USDC" {
		return nil, core.BridgeNoRoute(token, dstChainID)
	}
	gasCost := big.NewInt(0)
	return &BridgeQuote{
		Protocol:      ProtocolCCTP,
		InputAmount:   amount,
		OutputAmount:  new(big.Int).Set(amount), // CCTP burns and mints 1:1
		Fee:           FeeBreakdown{Protocol: big.NewInt(0), Gas: gasCost, Total: big.NewInt(0), TotalUSD: big.NewInt(0)},
		EstimatedTime: EstimatedTime{MinSec: 60, MaxSec: 900},
		Route:         Route{Dst: dstChainID, Steps: []string{"burn", "attest", "mint"}, Description: "CCTP native USDC burn/mint"},
		Expiry:        time.Now().Add(5 * time.Minute),
		ReliabilityRank: 1,
	}, nil
}

// Spender implements SpenderAware: CCTP's allowance spender is the
// TokenMessenger contract itself.
func (a *CCTPAdapter) Spender(dstChainID uint64) core.Address {
	return a.chains[dstChainID].TokenMessenger
}

var messageSentTopic = mustEventTopic("MessageSent(bytes)")

func mustEventTopic(sig string) [32]byte {
	t, err := abi.EventTopic(sig)
	if err != nil {
		panic(err)
	}
	return t
}

// Deposit calls depositForBurn(amount, destinationDomain, mintRecipient,
// burnToken) on the source chain's TokenMessenger, then recovers the
// MessageSent event's message bytes to derive the tracking messageHash.
func (a *CCTPAdapter) Deposit(ctx context.Context, quote BridgeQuote, tokenAddress, recipient core.Address, amount *big.Int) (string, core.Hash, error) {
	cfg, ok := a.chains[quote.Route.Dst]
	if !ok {
		return "", core.Hash{}, core.BridgeNoRoute("USDC", quote.Route.Dst)
	}

	selector, err := abi.Selector("depositForBurn(uint256,uint32,bytes32,address)")
	if err != nil {
		return "", core.Hash{}, err
	}
	encoded, err := abi.Encode(
		[]string{"uint256", "uint32", "bytes32", "address"},
		[]any{amount, cfg.Domain, addressToBytes32(recipient), tokenAddress},
	)
	if err != nil {
		return "", core.Hash{}, err
	}
	data := append(selector[:], encoded...)

	result, err := core.SubmitContractCall(ctx, a.account, a.rpc, a.nonces, a.gas, cfg.TokenMessenger, nil, data, a.confs, a.timeout)
	if err != nil {
		return "", core.Hash{}, err
	}
	if result.Receipt.Status == core.ReceiptStatusFailure {
		return "", core.Hash{}, core.BridgeValidationFailed("depositForBurn reverted")
	}

	messageHash, err := extractMessageHash(result.Receipt.Logs)
	if err != nil {
		return "", core.Hash{}, err
	}

	a.mu.Lock()
	a.tracking[messageHash] = cctpTracked{sourceChainID: result.ChainID, sourceTxHash: result.Hash}
	a.mu.Unlock()

	return messageHash, result.Hash, nil
}

func extractMessageHash(logs []core.Log) (string, error) {
	for _, l := range logs {
		if len(l.Topics) == 0 || l.Topics[0] != messageSentTopic {
			continue
		}
		values, err := abi.Decode([]string{"bytes"}, l.Data)
		if err != nil || len(values) != 1 {
			return "", fmt.Errorf("bridge: decode MessageSent log: %w", err)
		}
		messageBytes, ok := values[0].([]byte)
		if !ok {
			return "", fmt.Errorf("bridge: MessageSent payload has unexpected type")
		}
		hash := crypto.Keccak256(messageBytes)
		return "0x" + hexString(hash), nil
	}
	return "", fmt.Errorf("bridge: no MessageSent event in deposit receipt")
}

// Status polls the attestation service by messageHash (the tracking ID)
// and maps Circle's two-valued status onto the unified machine. This
// adapter does not itself submit the destination-chain receiveMessage
// call (out of scope — that requires a signer on the destination chain),
// so "complete" from the attestation service is treated as the transfer's
// terminal state, collapsing attestation_ready/mint_pending into one step
// rather than observing the destination mint directly.
func (a *CCTPAdapter) Status(ctx context.Context, trackingID string) (*UnifiedBridgeStatus, error) {
	status, attestation, err := a.attestation.GetAttestation(ctx, trackingID)
	if err != nil {
		return nil, core.BridgeProtocolUnavailable(string(ProtocolCCTP), err)
	}

	a.mu.Lock()
	tracked, known := a.tracking[trackingID]
	a.mu.Unlock()
	var srcHash *core.Hash
	if known {
		h := tracked.sourceTxHash
		srcHash = &h
	}

	out := &UnifiedBridgeStatus{TrackingID: trackingID, Protocol: ProtocolCCTP, SourceTxHash: srcHash, UpdatedAt: time.Now()}
	switch status {
	case "complete":
		out.Status = StatusCompleted
		out.Progress = 100
		out.Message = "attestation complete"
	case "pending_confirmations", "":
		out.Status = StatusAttestationPending
		out.Progress = 60
		out.Message = "waiting for attestation"
	default:
		out.Status = StatusAttestationReady
		out.Progress = 80
		out.Message = fmt.Sprintf("attestation %s", attestation)
	}
	return out, nil
}

func addressToBytes32(addr core.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], addr.Bytes())
	return out
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0f]
	}
	return string(out)
}
