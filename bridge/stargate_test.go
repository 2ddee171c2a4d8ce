package bridge

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/synnergy-labs/agentwallet/core"
)

type fakeStargateQuoteProvider struct {
	minOut *big.Int
	feeWei *big.Int
	feeUSD *big.Int
	err    error
}

func (f *fakeStargateQuoteProvider) QuoteSend(ctx context.Context, token string, amount *big.Int, dstEID uint32) (*big.Int, *big.Int, *big.Int, error) {
	return f.minOut, f.feeWei, f.feeUSD, f.err
}

type fakeStargateStatusClient struct {
	status string
	dstTx  string
	err    error
}

func (f *fakeStargateStatusClient) MessageStatus(ctx context.Context, srcTxHash core.Hash) (string, string, error) {
	return f.status, f.dstTx, f.err
}

func TestStargateQuoteComputesSlippageBps(t *testing.T) {
	account := routerTestAccount(t)
	pools := map[uint64]StargatePoolConfig{10: {Router: account.Address(), EID: 30110}}
	adapter := NewStargateAdapter(account, nil, nil, nil, 1, time.Second, pools,
		&fakeStargateQuoteProvider{minOut: big.NewInt(990), feeWei: big.NewInt(1), feeUSD: big.NewInt(2)},
		&fakeStargateStatusClient{})

	quote, err := adapter.Quote(context.Background(), "USDC", big.NewInt(1000), 10)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.SlippageBps != 100 { // (1000-990)/1000 * 10000 = 100 bps
		t.Fatalf("got slippage %d bps", quote.SlippageBps)
	}
}

func TestStargateDepositUsesSourceTxHashAsTrackingID(t *testing.T) {
	account := routerTestAccount(t)
	router := account.Address()
	ft := newFakeTransport()
	stubHappyPathSubmit(ft)

	rpc := core.NewRPC(ft, core.RPCConfig{})
	nonces := core.NewNonceManager(account.Address(), rpc)
	gas := core.NewGasOracle(rpc)
	pools := map[uint64]StargatePoolConfig{10: {Router: router, EID: 30110}}
	adapter := NewStargateAdapter(account, rpc, nonces, gas, 1, 2*time.Second, pools,
		&fakeStargateQuoteProvider{minOut: big.NewInt(990), feeWei: big.NewInt(0), feeUSD: big.NewInt(0)},
		&fakeStargateStatusClient{})

	quote := BridgeQuote{Route: Route{Dst: 10}, OutputAmount: big.NewInt(990), Fee: FeeBreakdown{Gas: big.NewInt(0)}}
	trackingID, sourceHash, err := adapter.Deposit(context.Background(), quote, router, account.Address(), big.NewInt(1000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if trackingID != sourceHash.Hex() {
		t.Fatalf("expected tracking id to equal source tx hash, got %s vs %s", trackingID, sourceHash.Hex())
	}
}

func TestStargateStatusCompressesToMintPendingOrCompleted(t *testing.T) {
	account := routerTestAccount(t)
	trackingID := core.HashFromBytes([]byte("srctx")).Hex()

	inflight := NewStargateAdapter(account, nil, nil, nil, 1, time.Second, nil, nil, &fakeStargateStatusClient{status: "in_flight"})
	status, err := inflight.Status(context.Background(), trackingID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != StatusMintPending {
		t.Fatalf("expected mint_pending, got %s", status.Status)
	}

	delivered := NewStargateAdapter(account, nil, nil, nil, 1, time.Second, nil, nil, &fakeStargateStatusClient{status: "delivered", dstTx: core.HashFromBytes([]byte("dsttx")).Hex()})
	status, err = delivered.Status(context.Background(), trackingID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != StatusCompleted || status.DestTxHash == nil {
		t.Fatalf("expected completed with dest hash, got %+v", status)
	}
}
