package core

// Shared transaction submission helper (spec §4.10 steps 7-8), reused by
// the bridge router's approve/deposit transactions (spec §4.11) so both
// paths reserve a nonce, build, sign, submit, and await a receipt the same
// way a native send does.

import (
	"context"
	"math/big"
	"time"
)

// ContractCallResult is the outcome of one submitted contract call.
type ContractCallResult struct {
	Hash    Hash
	Receipt *Receipt
	Nonce   uint64
	ChainID uint64
}

// SubmitContractCall reserves a nonce, estimates gas, builds and signs a
// call to `to` with `data`, submits it, and awaits its receipt with
// `confirmations` blocks of depth. A failure after the nonce is reserved
// and up to the broadcast calls nonces.OnTransactionFailed, which re-syncs
// the counter with the node's pending count; a failure while awaiting the
// receipt does not. This mirrors Wallet.Send's failure handling.
func SubmitContractCall(ctx context.Context, account *Account, rpc *RPC, nonces *NonceManager, gas *GasOracle, to Address, value *big.Int, data []byte, confirmations uint64, timeout time.Duration) (*ContractCallResult, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	msg := CallMsg{From: account.Address(), To: &to, Value: value, Data: data}
	est, err := gas.Estimate(ctx, msg)
	if err != nil {
		return nil, err
	}

	nonce, err := nonces.GetNextNonce(ctx)
	if err != nil {
		return nil, err
	}
	chainID, err := rpc.GetChainID(ctx)
	if err != nil {
		_ = nonces.OnTransactionFailed(ctx)
		return nil, err
	}

	signed, err := buildAndSignTx(account, nonce, chainID, to, value, data, est)
	if err != nil {
		_ = nonces.OnTransactionFailed(ctx)
		return nil, err
	}
	txHash, err := rpc.SendRawTransaction(ctx, signed.Raw())
	if err != nil {
		_ = nonces.OnTransactionFailed(ctx)
		return nil, err
	}
	receipt, err := rpc.WaitForTransaction(ctx, txHash, confirmations, timeout)
	if err != nil {
		return nil, err
	}

	nonces.OnTransactionConfirmed()
	return &ContractCallResult{Hash: txHash, Receipt: receipt, Nonce: nonce, ChainID: chainID}, nil
}
