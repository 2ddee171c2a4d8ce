package bridge

// Concrete HTTP bindings for the AttestationClient/AcrossQuoteProvider/
// AcrossStatusClient/StargateQuoteProvider/StargateStatusClient seams
// (spec §6's "Bridge external APIs"), grounded on core/transport_http.go's
// net/http.Client + context.Context + encoding/json idiom — the same
// minimal-stdlib shape, since these are one-off REST GETs rather than the
// JSON-RPC envelope core.HTTPTransport speaks.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/synnergy-labs/agentwallet/core"
)

func httpGetJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("bridge: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge: request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bridge: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bridge: %s returned %d: %s", rawURL, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("bridge: decode response from %s: %w", rawURL, err)
	}
	return nil
}

// CircleAttestationClient polls Circle's CCTP attestation service
// (spec §6: "CCTP attestation service").
type CircleAttestationClient struct {
	baseURL string // e.g. "https://iris-api.circle.com"
	client  *http.Client
}

// NewCircleAttestationClient constructs a client against Circle's
// attestation API. timeout defaults to 10s.
func NewCircleAttestationClient(baseURL string, timeout time.Duration) *CircleAttestationClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CircleAttestationClient{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type circleAttestationResponse struct {
	Status      string `json:"status"`
	Attestation string `json:"attestation"`
}

// GetAttestation implements AttestationClient.
func (c *CircleAttestationClient) GetAttestation(ctx context.Context, messageHash string) (string, string, error) {
	var resp circleAttestationResponse
	u := fmt.Sprintf("%s/v1/attestations/%s", c.baseURL, messageHash)
	if err := httpGetJSON(ctx, c.client, u, &resp); err != nil {
		return "", "", err
	}
	return resp.Status, resp.Attestation, nil
}

// AcrossAPIClient implements both AcrossQuoteProvider and
// AcrossStatusClient against Across' public REST API (spec §6:
// "Across REST at app.across.to/api (mainnet) / testnet.across.to/api
// (testnets), endpoints suggested-fees, deposit/status").
type AcrossAPIClient struct {
	baseURL string
	client  *http.Client
}

// NewAcrossAPIClient constructs a client against one of Across' two base
// URLs. timeout defaults to 10s.
func NewAcrossAPIClient(baseURL string, timeout time.Duration) *AcrossAPIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AcrossAPIClient{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type acrossSuggestedFeesResponse struct {
	OutputAmount         string `json:"outputAmount"`
	TotalRelayFeeTotal   string `json:"totalRelayFee"`
	ExclusiveRelayer     string `json:"exclusiveRelayer"`
	Timestamp            uint32 `json:"timestamp"`
	FillDeadline         uint32 `json:"fillDeadline"`
	ExclusivityDeadline  uint32 `json:"exclusivityDeadline"`
	EstimatedFillTimeSec uint64 `json:"estimatedFillTimeSec"`
}

// SuggestedFees implements AcrossQuoteProvider.
func (c *AcrossAPIClient) SuggestedFees(ctx context.Context, token string, amount *big.Int, originChainID, dstChainID uint64) (*AcrossSuggestedFees, error) {
	q := url.Values{}
	q.Set("token", token)
	q.Set("amount", amount.String())
	q.Set("originChainId", fmt.Sprintf("%d", originChainID))
	q.Set("destinationChainId", fmt.Sprintf("%d", dstChainID))

	var resp acrossSuggestedFeesResponse
	u := fmt.Sprintf("%s/suggested-fees?%s", c.baseURL, q.Encode())
	if err := httpGetJSON(ctx, c.client, u, &resp); err != nil {
		return nil, err
	}

	outputAmount, ok := new(big.Int).SetString(resp.OutputAmount, 10)
	if !ok {
		return nil, fmt.Errorf("bridge: across returned unparsable outputAmount %q", resp.OutputAmount)
	}
	totalFee, ok := new(big.Int).SetString(resp.TotalRelayFeeTotal, 10)
	if !ok {
		totalFee = big.NewInt(0)
	}
	relayer, err := core.ParseAddress(resp.ExclusiveRelayer)
	if err != nil {
		relayer = core.Address{}
	}
	return &AcrossSuggestedFees{
		OutputAmount:        outputAmount,
		TotalFeeUSD:         totalFee,
		ExclusiveRelayer:    relayer,
		QuoteTimestamp:      resp.Timestamp,
		FillDeadline:        resp.FillDeadline,
		ExclusivityDeadline: resp.ExclusivityDeadline,
		EstimatedFillSec:    resp.EstimatedFillTimeSec,
	}, nil
}

type acrossDepositStatusResponse struct {
	Status     string `json:"status"`
	FillTxHash string `json:"fillTx"`
}

// DepositStatus implements AcrossStatusClient.
func (c *AcrossAPIClient) DepositStatus(ctx context.Context, originChainID uint64, depositID uint32) (string, string, error) {
	q := url.Values{}
	q.Set("originChainId", fmt.Sprintf("%d", originChainID))
	q.Set("depositId", fmt.Sprintf("%d", depositID))

	var resp acrossDepositStatusResponse
	u := fmt.Sprintf("%s/deposit/status?%s", c.baseURL, q.Encode())
	if err := httpGetJSON(ctx, c.client, u, &resp); err != nil {
		return "", "", err
	}
	return resp.Status, resp.FillTxHash, nil
}

// LayerZeroScanClient implements StargateQuoteProvider and
// StargateStatusClient against LayerZero's scan API (spec §6 names
// Stargate's transport as LayerZero-based; the scan API is how message
// status is tracked absent a protocol-minted tracking ID).
type LayerZeroScanClient struct {
	quoteBaseURL string // Stargate's own quote endpoint
	scanBaseURL  string // LayerZero scan API
	client       *http.Client
}

// NewLayerZeroScanClient constructs a combined quote+status client.
func NewLayerZeroScanClient(quoteBaseURL, scanBaseURL string, timeout time.Duration) *LayerZeroScanClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LayerZeroScanClient{quoteBaseURL: quoteBaseURL, scanBaseURL: scanBaseURL, client: &http.Client{Timeout: timeout}}
}

type stargateQuoteResponse struct {
	MinAmountOut string `json:"minAmountOut"`
	FeeWei       string `json:"feeWei"`
	FeeUSD       string `json:"feeUsd"`
}

// QuoteSend implements StargateQuoteProvider.
func (c *LayerZeroScanClient) QuoteSend(ctx context.Context, token string, amount *big.Int, dstEID uint32) (*big.Int, *big.Int, *big.Int, error) {
	q := url.Values{}
	q.Set("token", token)
	q.Set("amount", amount.String())
	q.Set("dstEid", fmt.Sprintf("%d", dstEID))

	var resp stargateQuoteResponse
	u := fmt.Sprintf("%s/quotes?%s", c.quoteBaseURL, q.Encode())
	if err := httpGetJSON(ctx, c.client, u, &resp); err != nil {
		return nil, nil, nil, err
	}
	minOut, ok := new(big.Int).SetString(resp.MinAmountOut, 10)
	if !ok {
		return nil, nil, nil, fmt.Errorf("bridge: stargate returned unparsable minAmountOut %q", resp.MinAmountOut)
	}
	feeWei, ok := new(big.Int).SetString(resp.FeeWei, 10)
	if !ok {
		feeWei = big.NewInt(0)
	}
	feeUSD, ok := new(big.Int).SetString(resp.FeeUSD, 10)
	if !ok {
		feeUSD = big.NewInt(0)
	}
	return minOut, feeWei, feeUSD, nil
}

type layerZeroMessageStatusResponse struct {
	Status    string `json:"status"`
	DstTxHash string `json:"dstTxHash"`
}

// MessageStatus implements StargateStatusClient.
func (c *LayerZeroScanClient) MessageStatus(ctx context.Context, srcTxHash core.Hash) (string, string, error) {
	var resp layerZeroMessageStatusResponse
	u := fmt.Sprintf("%s/tx/%s", c.scanBaseURL, srcTxHash.Hex())
	if err := httpGetJSON(ctx, c.client, u, &resp); err != nil {
		return "", "", err
	}
	return resp.Status, resp.DstTxHash, nil
}
