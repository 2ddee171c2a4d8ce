package core

// Simulation (spec §4.8 / component C8): an eth_call pre-flight gate used
// when requireSimulation is enabled, decoding standard Error(string) and
// Panic(uint256) revert payloads rather than surfacing raw hex.
//
// Grounded on the teacher's core/transactions.go error-surfacing style
// (typed outcomes rather than bare strings); the revert decoding itself
// goes through codec/abi, the same ABI grammar component the ENS resolver
// and transaction builder already use.

import (
	"context"
	"fmt"
	"math/big"

	"github.com/synnergy-labs/agentwallet/codec/abi"
)

// revert selectors per the Solidity ABI spec's two standard panic/error
// encodings.
var (
	errorStringSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0} // Error(string)
	panicUint256Selector = [4]byte{0x4e, 0x48, 0x7b, 0x71} // Panic(uint256)
)

// SimulationResult is the outcome of a C8 pre-flight eth_call.
type SimulationResult struct {
	Success bool
	Output  []byte // the call's return data, when Success
	Error   string // decoded revert reason, when !Success
}

// Simulator runs eth_call pre-flight checks.
type Simulator struct {
	rpc *RPC
}

// NewSimulator constructs a simulator over rpc.
func NewSimulator(rpc *RPC) *Simulator {
	return &Simulator{rpc: rpc}
}

// Simulate runs msg through eth_call at the "latest" block tag; pending
// transactions are not part of the simulated state. A successful call
// reports {Success: true, Output}. A revert that carries a data payload is
// reported as {Success: false, Error}, decoded when it is a standard
// Error(string) or Panic(uint256) payload and given as the payload's hex
// otherwise. A revert without a data payload, and any non-revert transport
// failure (timeouts, connection errors, rate limits), is returned as an
// error, not folded into the result.
func (s *Simulator) Simulate(ctx context.Context, msg CallMsg) (*SimulationResult, error) {
	output, err := s.rpc.Call(ctx, msg)
	if err == nil {
		return &SimulationResult{Success: true, Output: output}, nil
	}

	if data, ok := revertData(err); ok {
		return &SimulationResult{Success: false, Error: decodeRevertReason(data)}, nil
	}

	return nil, err
}

// decodeRevertReason decodes a revert payload's standard selector, falling
// back to the raw hex when the selector is unrecognized or malformed.
func decodeRevertReason(data []byte) string {
	if len(data) < 4 {
		return Hex(data).String()
	}
	var selector [4]byte
	copy(selector[:], data[:4])
	body := data[4:]

	switch selector {
	case errorStringSelector:
		values, err := abi.Decode([]string{"string"}, body)
		if err != nil || len(values) != 1 {
			return Hex(data).String()
		}
		reason, ok := values[0].(string)
		if !ok {
			return Hex(data).String()
		}
		return reason

	case panicUint256Selector:
		values, err := abi.Decode([]string{"uint256"}, body)
		if err != nil || len(values) != 1 {
			return Hex(data).String()
		}
		code, ok := values[0].(*big.Int)
		if !ok {
			return Hex(data).String()
		}
		return fmt.Sprintf("panic: %s", panicCodeDescription(code))

	default:
		return Hex(data).String()
	}
}

// panicCodeDescription maps a Solidity panic code to its documented
// meaning (Solidity ABI spec, "Panic(uint256)").
func panicCodeDescription(code *big.Int) string {
	switch code.Uint64() {
	case 0x01:
		return "assertion failed (0x1)"
	case 0x11:
		return "arithmetic overflow or underflow (0x11)"
	case 0x12:
		return "division or modulo by zero (0x12)"
	case 0x21:
		return "invalid enum value (0x21)"
	case 0x22:
		return "invalid storage byte array access (0x22)"
	case 0x31:
		return "pop on empty array (0x31)"
	case 0x32:
		return "array index out of bounds (0x32)"
	case 0x41:
		return "out of memory (0x41)"
	case 0x51:
		return "call to uninitialized internal function (0x51)"
	default:
		return fmt.Sprintf("unknown panic code 0x%x", code.Uint64())
	}
}
