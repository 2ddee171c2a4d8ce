package bridge

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/synnergy-labs/agentwallet/core"
)

func TestAllowanceDataEncodesSelectorAndArgs(t *testing.T) {
	owner := routerTestAccount(t).Address()
	spender := owner
	data, err := allowanceData(owner, spender)
	if err != nil {
		t.Fatalf("allowanceData: %v", err)
	}
	if len(data) < 4 || fmt.Sprintf("%x", data[:4]) != "dd62ed3e" {
		t.Fatalf("expected allowance(address,address) selector 0xdd62ed3e, got %x", data[:4])
	}
}

func TestApproveDataEncodesSelectorAndArgs(t *testing.T) {
	spender := routerTestAccount(t).Address()
	data, err := approveData(spender, big.NewInt(1000))
	if err != nil {
		t.Fatalf("approveData: %v", err)
	}
	if len(data) < 4 || fmt.Sprintf("%x", data[:4]) != "095ea7b3" {
		t.Fatalf("expected approve(address,uint256) selector 0x095ea7b3, got %x", data[:4])
	}
}

func TestReadAllowanceDecodesResult(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("eth_call", "0x"+fmt.Sprintf("%064x", big.NewInt(4242)))
	rpc := core.NewRPC(ft, core.RPCConfig{})

	owner := routerTestAccount(t).Address()
	spender := owner
	token := owner
	amount, err := readAllowance(context.Background(), rpc, token, owner, spender)
	if err != nil {
		t.Fatalf("readAllowance: %v", err)
	}
	if amount.Cmp(big.NewInt(4242)) != 0 {
		t.Fatalf("got %s", amount.String())
	}
}
