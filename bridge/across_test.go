package bridge

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/synnergy-labs/agentwallet/core"
)

type fakeAcrossQuoteProvider struct {
	fees *AcrossSuggestedFees
	err  error
}

func (f *fakeAcrossQuoteProvider) SuggestedFees(ctx context.Context, token string, amount *big.Int, originChainID, dstChainID uint64) (*AcrossSuggestedFees, error) {
	return f.fees, f.err
}

type fakeAcrossStatusClient struct {
	status string
	fillTx string
	err    error
}

func (f *fakeAcrossStatusClient) DepositStatus(ctx context.Context, originChainID uint64, depositID uint32) (string, string, error) {
	return f.status, f.fillTx, f.err
}

func freshAcrossFees(now time.Time) *AcrossSuggestedFees {
	return &AcrossSuggestedFees{
		OutputAmount:        big.NewInt(990),
		TotalFeeUSD:         big.NewInt(3),
		QuoteTimestamp:      uint32(now.Unix()),
		FillDeadline:        uint32(now.Add(time.Hour).Unix()),
		ExclusivityDeadline: uint32(now.Add(time.Minute).Unix()),
		EstimatedFillSec:    30,
	}
}

func TestAcrossQuoteUsesSuggestedFees(t *testing.T) {
	account := routerTestAccount(t)
	chains := map[uint64]AcrossChainConfig{10: {SpokePool: account.Address()}}
	adapter := NewAcrossAdapter(account, nil, nil, nil, 1, time.Second, 1, chains, &fakeAcrossQuoteProvider{fees: freshAcrossFees(time.Now())}, &fakeAcrossStatusClient{})

	quote, err := adapter.Quote(context.Background(), "USDC", big.NewInt(1000), 10)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.OutputAmount.Cmp(big.NewInt(990)) != 0 {
		t.Fatalf("got output amount %s", quote.OutputAmount.String())
	}
}

func TestAcrossDepositRejectsExpiredFillDeadline(t *testing.T) {
	account := routerTestAccount(t)
	chains := map[uint64]AcrossChainConfig{10: {SpokePool: account.Address()}}
	fees := freshAcrossFees(time.Now())
	fees.FillDeadline = uint32(time.Now().Add(-time.Hour).Unix())
	adapter := NewAcrossAdapter(account, nil, nil, nil, 1, time.Second, 1, chains, &fakeAcrossQuoteProvider{fees: fees}, &fakeAcrossStatusClient{})

	_, _, err := adapter.Deposit(context.Background(), BridgeQuote{Route: Route{Dst: 10}}, account.Address(), account.Address(), big.NewInt(1000))
	if err == nil {
		t.Fatalf("expected validation error for expired fillDeadline")
	}
}

func TestAcrossDepositRejectsStaleQuoteTimestamp(t *testing.T) {
	account := routerTestAccount(t)
	chains := map[uint64]AcrossChainConfig{10: {SpokePool: account.Address()}}
	fees := freshAcrossFees(time.Now())
	fees.QuoteTimestamp = uint32(time.Now().Add(-time.Hour).Unix())
	adapter := NewAcrossAdapter(account, nil, nil, nil, 1, time.Second, 1, chains, &fakeAcrossQuoteProvider{fees: fees}, &fakeAcrossStatusClient{})

	_, _, err := adapter.Deposit(context.Background(), BridgeQuote{Route: Route{Dst: 10}}, account.Address(), account.Address(), big.NewInt(1000))
	if err == nil {
		t.Fatalf("expected validation error for stale quoteTimestamp")
	}
}

func TestAcrossDepositParsesDepositIDFromLog(t *testing.T) {
	account := routerTestAccount(t)
	spokePool := account.Address()
	ft := newFakeTransport()
	stubHappyPathSubmit(ft)

	var destinationChainIDTopic, depositIDTopic, depositorTopic [32]byte
	destinationChainIDTopic[31] = 10 // destinationChainId, topic 1
	depositIDTopic[31] = 42          // depositId = 42, right-aligned, topic 2
	copy(depositorTopic[12:], account.Address().Bytes())

	ft.stub("eth_getTransactionReceipt", map[string]any{
		"blockNumber":       "0x64",
		"status":            "0x1",
		"gasUsed":           "0x5208",
		"effectiveGasPrice": "0x3b9aca00",
		"logs": []map[string]any{
			{
				"address": spokePool.Hex(),
				"topics": []string{
					hashHex(v3FundsDepositedTopic),
					hashHex(destinationChainIDTopic),
					hashHex(depositIDTopic),
					hashHex(depositorTopic),
				},
				"data":            "0x",
				"blockNumber":     "0x64",
				"transactionHash": "0x" + fmt.Sprintf("%064x", 1),
				"logIndex":        "0x0",
				"removed":         false,
			},
		},
	})

	rpc := core.NewRPC(ft, core.RPCConfig{})
	nonces := core.NewNonceManager(account.Address(), rpc)
	gas := core.NewGasOracle(rpc)
	chains := map[uint64]AcrossChainConfig{10: {SpokePool: spokePool}}
	adapter := NewAcrossAdapter(account, rpc, nonces, gas, 1, 2*time.Second, 1, chains, &fakeAcrossQuoteProvider{fees: freshAcrossFees(time.Now())}, &fakeAcrossStatusClient{})

	trackingID, _, err := adapter.Deposit(context.Background(), BridgeQuote{Route: Route{Dst: 10}}, spokePool, account.Address(), big.NewInt(1000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	want := fmt.Sprintf("0x%064x", 42)
	if trackingID != want {
		t.Fatalf("got tracking id %s, want %s", trackingID, want)
	}
}

func TestAcrossStatusMapsFilledAndExpired(t *testing.T) {
	account := routerTestAccount(t)
	trackingID := fmt.Sprintf("0x%064x", 7)

	filled := NewAcrossAdapter(account, nil, nil, nil, 1, time.Second, 1, nil, nil, &fakeAcrossStatusClient{status: "filled", fillTx: "0x" + fmt.Sprintf("%064x", 1)})
	status, err := filled.Status(context.Background(), trackingID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", status.Status)
	}

	expired := NewAcrossAdapter(account, nil, nil, nil, 1, time.Second, 1, nil, nil, &fakeAcrossStatusClient{status: "expired"})
	status, err = expired.Status(context.Background(), trackingID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", status.Status)
	}
}
