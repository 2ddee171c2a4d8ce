package core

import (
	"context"
	"testing"
)

func TestGasOracle1559Estimate(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("eth_estimateGas", "0x5208") // 21000
	ft.stub("eth_blockNumber", "0x64")
	ft.stub("eth_getBlockByNumber", map[string]any{
		"number":        "0x64",
		"hash":          "0x" + "0000000000000000000000000000000000000000000000000000000000000001"[:64],
		"timestamp":     "0x1",
		"baseFeePerGas": "0x3b9aca00", // 1 gwei
	})
	ft.stub("eth_maxPriorityFeePerGas", "0x77359400") // 2 gwei

	oracle := NewGasOracle(NewRPC(ft, defaultRPCConfig()))
	to, _ := ParseAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
	est, err := oracle.Estimate(context.Background(), CallMsg{To: &to})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.GasLimit != 21000 {
		t.Fatalf("gas limit = %d", est.GasLimit)
	}
	// maxFee = baseFee*2 + priority = 2 gwei + 2 gwei = 4 gwei
	if est.MaxFeePerGas.String() != "4000000000" {
		t.Fatalf("maxFeePerGas = %s", est.MaxFeePerGas.String())
	}
	if est.MaxPriorityFeePerGas.String() != "2000000000" {
		t.Fatalf("priority = %s", est.MaxPriorityFeePerGas.String())
	}
}

func TestGasOraclePriorityFeeFloorsAtOneGwei(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("eth_estimateGas", "0x5208")
	ft.stub("eth_blockNumber", "0x64")
	ft.stub("eth_getBlockByNumber", map[string]any{
		"number":        "0x64",
		"hash":          "0x" + "0000000000000000000000000000000000000000000000000000000000000001"[:64],
		"timestamp":     "0x1",
		"baseFeePerGas": "0x3b9aca00",
	})
	ft.stub("eth_maxPriorityFeePerGas", "0x1") // far below 1 gwei

	oracle := NewGasOracle(NewRPC(ft, defaultRPCConfig()))
	to, _ := ParseAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
	est, err := oracle.Estimate(context.Background(), CallMsg{To: &to})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.MaxPriorityFeePerGas.String() != "1000000000" {
		t.Fatalf("priority = %s, want floor of 1 gwei", est.MaxPriorityFeePerGas.String())
	}
}

func TestGasOracleLegacyWhenNoBaseFee(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("eth_estimateGas", "0x5208")
	ft.stub("eth_blockNumber", "0x64")
	ft.stub("eth_getBlockByNumber", map[string]any{
		"number":    "0x64",
		"hash":      "0x" + "0000000000000000000000000000000000000000000000000000000000000001"[:64],
		"timestamp": "0x1",
	})
	ft.stub("eth_gasPrice", "0x3b9aca00")

	oracle := NewGasOracle(NewRPC(ft, defaultRPCConfig()))
	to, _ := ParseAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
	est, err := oracle.Estimate(context.Background(), CallMsg{To: &to})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.MaxFeePerGas != nil {
		t.Fatalf("expected legacy estimate, got 1559 fields populated")
	}
	if est.GasPrice.String() != "1000000000" {
		t.Fatalf("gas price = %s", est.GasPrice.String())
	}
}

func TestGasOracleSurfacesRevertError(t *testing.T) {
	ft := newFakeTransport()
	ft.errors["eth_estimateGas"] = RPCError("eth_estimateGas", TransactionReverted("insufficient balance"))

	oracle := NewGasOracle(NewRPC(ft, defaultRPCConfig()))
	to, _ := ParseAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
	_, err := oracle.Estimate(context.Background(), CallMsg{To: &to})
	if err == nil {
		t.Fatalf("expected error")
	}
}
