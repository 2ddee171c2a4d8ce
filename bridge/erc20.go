package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/synnergy-labs/agentwallet/codec/abi"
	"github.com/synnergy-labs/agentwallet/core"
)

// allowanceData encodes allowance(address,address) (spec §6 selector
// 0xdd62ed3e).
func allowanceData(owner, spender core.Address) ([]byte, error) {
	selector, err := abi.Selector("allowance(address,address)")
	if err != nil {
		return nil, err
	}
	encoded, err := abi.Encode([]string{"address", "address"}, []any{owner, spender})
	if err != nil {
		return nil, err
	}
	return append(selector[:], encoded...), nil
}

// approveData encodes approve(address,uint256) (spec §6 selector
// 0x095ea7b3).
func approveData(spender core.Address, amount *big.Int) ([]byte, error) {
	selector, err := abi.Selector("approve(address,uint256)")
	if err != nil {
		return nil, err
	}
	encoded, err := abi.Encode([]string{"address", "uint256"}, []any{spender, amount})
	if err != nil {
		return nil, err
	}
	return append(selector[:], encoded...), nil
}

// readAllowance calls allowance(owner, spender) on token via eth_call.
func readAllowance(ctx context.Context, rpc *core.RPC, token, owner, spender core.Address) (*big.Int, error) {
	data, err := allowanceData(owner, spender)
	if err != nil {
		return nil, err
	}
	output, err := rpc.Call(ctx, core.CallMsg{From: owner, To: &token, Data: data})
	if err != nil {
		return nil, err
	}
	values, err := abi.Decode([]string{"uint256"}, output)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("bridge: decode allowance result: %w", err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("bridge: unexpected allowance result type")
	}
	return amount, nil
}
