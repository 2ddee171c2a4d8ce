package core

// Gas oracle (spec §4.5 / component C5): EIP-1559 fee suggestion and
// gas-limit estimation.
//
// Grounded on the teacher's core/transactions.go field-by-field assembly
// style, applied here to fee math instead of tx encoding.

import (
	"context"
	"math/big"
)

const oneGwei = 1_000_000_000

// GasEstimate is the gas oracle's result: either 1559 fields
// (MaxFeePerGas/MaxPriorityFeePerGas set, GasPrice nil) or legacy fields
// (GasPrice set, the 1559 fields nil), per spec §4.5.
type GasEstimate struct {
	GasLimit             uint64
	GasPrice             *big.Int // legacy
	MaxFeePerGas         *big.Int // 1559
	MaxPriorityFeePerGas *big.Int // 1559
	EstimatedCost        *big.Int
}

// GasOracle estimates gas limit and fees for a pending call.
type GasOracle struct {
	rpc *RPC
}

// NewGasOracle constructs a gas oracle over rpc.
func NewGasOracle(rpc *RPC) *GasOracle {
	return &GasOracle{rpc: rpc}
}

// Estimate returns a gas estimate for msg. If eth_estimateGas reverts, the
// error returned carries the decoded revert reason rather than a
// substituted default gas limit.
func (g *GasOracle) Estimate(ctx context.Context, msg CallMsg) (*GasEstimate, error) {
	gasLimit, err := g.rpc.EstimateGas(ctx, msg)
	if err != nil {
		return nil, err
	}

	latest, err := g.latestBlock(ctx)
	if err != nil {
		return nil, err
	}

	if latest.BaseFee == nil {
		gasPrice, err := g.rpc.GetGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		cost := new(big.Int).Mul(big.NewInt(int64(gasLimit)), gasPrice)
		return &GasEstimate{GasLimit: gasLimit, GasPrice: gasPrice, EstimatedCost: cost}, nil
	}

	priority, err := g.suggestedPriorityFee(ctx)
	if err != nil {
		return nil, err
	}
	maxFee := new(big.Int).Add(new(big.Int).Mul(latest.BaseFee, big.NewInt(2)), priority)
	cost := new(big.Int).Mul(big.NewInt(int64(gasLimit)), maxFee)

	return &GasEstimate{
		GasLimit:             gasLimit,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: priority,
		EstimatedCost:        cost,
	}, nil
}

// suggestedPriorityFee returns max(node-suggested tip, 1 gwei) per spec
// §4.5.
func (g *GasOracle) suggestedPriorityFee(ctx context.Context) (*big.Int, error) {
	suggested, err := g.rpc.GetMaxPriorityFeePerGas(ctx)
	if err != nil {
		return nil, err
	}
	floor := big.NewInt(oneGwei)
	if suggested.Cmp(floor) < 0 {
		return floor, nil
	}
	return suggested, nil
}

// latestBlock fetches the chain head via eth_blockNumber + eth_getBlockByNumber,
// since "latest" as a number isn't representable in the uint64 GetBlock
// signature — block 0 is genesis, not latest.
func (g *GasOracle) latestBlock(ctx context.Context) (*Block, error) {
	num, err := g.rpc.GetBlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	return g.rpc.GetBlock(ctx, num)
}
