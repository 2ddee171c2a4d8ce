package core

// Agent wallet facade (spec §4.10 / component C10): the single entry point
// for user-level send operations, orchestrating C1-C9 in the order spec
// §4.10 specifies.
//
// Grounded on the teacher's core/wallet.go, which already plays this
// orchestrator role for its own (ed25519, single-chain) send path; this
// file keeps that facade shape — one struct wrapping a signer plus the
// supporting subsystems, a package logger hook (SetLogger, in
// core/logging.go), throwing methods
// with safe* twins — and generalizes the send steps themselves to this
// spec's ten-step EVM flow.

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/synnergy-labs/agentwallet/codec/abi"
)

// StablecoinInfo is one stablecoin's on-chain address and decimals on a
// specific chain.
type StablecoinInfo struct {
	Address  Address
	Decimals uint8
}

// StablecoinRegistry maps chain ID -> token symbol -> on-chain info.
type StablecoinRegistry map[uint64]map[string]StablecoinInfo

// WalletConfig carries the facade's operating parameters (spec §6's
// configuration surface, minus the fields already owned by the policy
// engine and RPC/ENS constructors).
type WalletConfig struct {
	RequireSimulation bool
	Confirmations     uint64
	ReceiptTimeout    time.Duration
	Stablecoins       StablecoinRegistry
	AgentID           string
}

// Wallet is the agent wallet facade: one signing account wired to the RPC
// contract, ENS resolver, nonce manager, gas oracle, simulator, and policy
// engine.
type Wallet struct {
	account *Account
	rpc     *RPC
	ens     *ENSResolver
	nonces  *NonceManager
	gas     *GasOracle
	sim     *Simulator
	policy  *PolicyEngine
	cfg     WalletConfig
}

// NewWallet constructs a wallet facade. ens may be nil, in which case
// recipients must be given as literal addresses.
func NewWallet(account *Account, rpc *RPC, ens *ENSResolver, policy *PolicyEngine, cfg WalletConfig) *Wallet {
	return &Wallet{
		account: account,
		rpc:     rpc,
		ens:     ens,
		nonces:  NewNonceManager(account.Address(), rpc),
		gas:     NewGasOracle(rpc),
		sim:     NewSimulator(rpc),
		policy:  policy,
		cfg:     cfg,
	}
}

// Address returns the wallet's sending address.
func (w *Wallet) Address() Address { return w.account.Address() }

// SendParams describes a native-asset send or raw contract call. To
// accepts a checksummed address, a lowercase/uppercase address, or an ENS
// name.
type SendParams struct {
	To    string
	Value *big.Int
	Data  []byte
}

// SentTransaction captures the wire-level shape of what was actually
// submitted, for SendResult.Transaction.
type SentTransaction struct {
	To      Address
	Value   *big.Int
	Data    []byte
	Nonce   uint64
	ChainID uint64
}

// SendResult is the outcome of a successful send (spec §4.10 step 9).
type SendResult struct {
	Hash            Hash
	Success         bool
	Summary         string
	Transaction     SentTransaction
	Wallet          Address
	LimitsRemaining LimitsRemaining
}

// resolveRecipient implements send step 1: accept a checksummed/lowercase
// address directly, or fall back to ENS resolution.
func (w *Wallet) resolveRecipient(ctx context.Context, raw string) (Address, error) {
	if addr, err := ParseAddress(raw); err == nil {
		return addr, nil
	}
	if w.ens == nil {
		return Address{}, InvalidAddress(raw, fmt.Errorf("not a valid address and no ENS resolver is configured"))
	}
	addr, err := w.ens.Resolve(ctx, raw)
	if err != nil {
		return Address{}, InvalidAddress(raw, err)
	}
	if addr == nil {
		return Address{}, ENSNotFound(raw)
	}
	return *addr, nil
}

// Send runs the full ten-step send flow of spec §4.10.
func (w *Wallet) Send(ctx context.Context, params SendParams) (*SendResult, error) {
	// 1. Resolve recipient.
	to, err := w.resolveRecipient(ctx, params.To)
	if err != nil {
		return nil, err
	}
	value := params.Value
	if value == nil {
		value = big.NewInt(0)
	}

	// 2. Address policy.
	if err := w.policy.CheckAddress(to); err != nil {
		return nil, err
	}

	// 3. Balance + limit check.
	balance, err := w.rpc.GetBalance(ctx, w.account.Address())
	if err != nil {
		return nil, err
	}
	if err := w.policy.CheckLimits(safeUint64(value), safeUint64(balance)); err != nil {
		return nil, err
	}

	// 4. Gas estimate + funds re-check.
	msg := CallMsg{From: w.account.Address(), To: &to, Value: value, Data: params.Data}
	est, err := w.gas.Estimate(ctx, msg)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Add(value, est.EstimatedCost)
	if total.Cmp(balance) > 0 {
		return nil, InsufficientFunds(safeUint64(total), safeUint64(balance))
	}

	// 5. Optional simulation gate.
	if w.cfg.RequireSimulation {
		result, err := w.sim.Simulate(ctx, msg)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, TransactionReverted(result.Error)
		}
	}

	// 6. Approval gate.
	if err := w.policy.RequireApproval(ctx, to, safeUint64(value)); err != nil {
		return nil, err
	}

	// 7. Reserve nonce, fetch chain ID.
	nonce, err := w.nonces.GetNextNonce(ctx)
	if err != nil {
		return nil, err
	}
	chainID, err := w.rpc.GetChainID(ctx)
	if err != nil {
		_ = w.nonces.OnTransactionFailed(ctx)
		return nil, err
	}

	// 8. Build, sign, submit, await.
	signed, err := w.buildAndSign(nonce, chainID, to, value, params.Data, est)
	if err != nil {
		_ = w.nonces.OnTransactionFailed(ctx)
		return nil, err
	}
	txHash, err := w.rpc.SendRawTransaction(ctx, signed.Raw())
	if err != nil {
		_ = w.nonces.OnTransactionFailed(ctx)
		return nil, err
	}
	receipt, err := w.rpc.WaitForTransaction(ctx, txHash, w.cfg.Confirmations, w.cfg.ReceiptTimeout)
	if err != nil {
		return nil, err
	}
	if receipt.Status == ReceiptStatusFailure {
		return nil, TransactionReverted("transaction mined but execution reverted")
	}

	// 9. Record spend, emit result.
	w.policy.RecordNativeSpend(safeUint64(value))
	w.policy.MarkRecipientSeen(to)

	return &SendResult{
		Hash:    txHash,
		Success: true,
		Summary: fmt.Sprintf("sent %s wei to %s", value.String(), to.Hex()),
		Transaction: SentTransaction{
			To: to, Value: value, Data: params.Data, Nonce: nonce, ChainID: chainID,
		},
		Wallet:          w.account.Address(),
		LimitsRemaining: w.policy.NativeLimitsRemaining(),
	}, nil
}

func (w *Wallet) buildAndSign(nonce, chainID uint64, to Address, value *big.Int, data []byte, est *GasEstimate) (*SignedTransaction, error) {
	return buildAndSignTx(w.account, nonce, chainID, to, value, data, est)
}

// buildAndSignTx assembles and signs a transaction from a gas estimate.
// Shared by the wallet facade and SubmitContractCall (used by the bridge
// router's approve/deposit transactions), so both paths build the same
// legacy/1559 shape.
func buildAndSignTx(account *Account, nonce, chainID uint64, to Address, value *big.Int, data []byte, est *GasEstimate) (*SignedTransaction, error) {
	builder := NewTxBuilder().
		To(to).
		Value(value).
		Data(data).
		Nonce(nonce).
		ChainID(chainID).
		GasLimit(est.GasLimit)

	if est.MaxFeePerGas != nil {
		builder = builder.MaxFeePerGas(est.MaxFeePerGas).MaxPriorityFeePerGas(est.MaxPriorityFeePerGas)
	} else {
		builder = builder.GasPrice(est.GasPrice)
	}

	digest, err := builder.SigningDigest()
	if err != nil {
		return nil, fmt.Errorf("core: build transaction: %w", err)
	}
	sig, err := account.Sign(digest)
	if err != nil {
		return nil, err
	}
	return builder.Sign(sig)
}

// SendOutcome is the tagged success/failure value safe* methods return
// instead of unwinding an error (spec §4.10's "every throwing method has a
// safe* twin").
type SendOutcome struct {
	Result *SendResult
	Err    *CoreError
}

// SafeSend is Send's non-throwing twin.
func (w *Wallet) SafeSend(ctx context.Context, params SendParams) SendOutcome {
	result, err := w.Send(ctx, params)
	if err != nil {
		return SendOutcome{Err: asCoreError(err)}
	}
	return SendOutcome{Result: result}
}

// stablecoinInfo resolves symbol's on-chain address/decimals for the
// wallet's current chain.
func (w *Wallet) stablecoinInfo(ctx context.Context, symbol string) (StablecoinInfo, error) {
	chainID, err := w.rpc.GetChainID(ctx)
	if err != nil {
		return StablecoinInfo{}, err
	}
	perChain, ok := w.cfg.Stablecoins[chainID]
	if !ok {
		return StablecoinInfo{}, UnsupportedStablecoin(symbol, chainID)
	}
	info, ok := perChain[strings.ToUpper(symbol)]
	if !ok {
		return StablecoinInfo{}, UnsupportedStablecoin(symbol, chainID)
	}
	return info, nil
}

// SendToken sends a stablecoin transfer(address,uint256) call. humanAmount
// is in the token's display units (e.g. "12.50"), converted to raw units
// via the token's decimals.
func (w *Wallet) SendToken(ctx context.Context, symbol, to, humanAmount string) (*SendResult, error) {
	info, err := w.stablecoinInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	raw, err := humanToRawUnits(humanAmount, info.Decimals)
	if err != nil {
		return nil, InvalidAddress(humanAmount, err)
	}

	recipient, err := w.resolveRecipient(ctx, to)
	if err != nil {
		return nil, err
	}
	data, err := erc20TransferData(recipient, raw)
	if err != nil {
		return nil, fmt.Errorf("core: encode transfer: %w", err)
	}

	// The USD-denominated policy ledger is checked against raw units
	// directly: the core treats 1 raw unit of a stablecoin as 1 USD for
	// limit accounting (spec §4.7), not a real price conversion.
	balance, err := w.rpc.GetBalance(ctx, w.account.Address())
	if err != nil {
		return nil, err
	}
	chainID, err := w.rpc.GetChainID(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.policy.CheckTokenTransaction(ctx, symbol, chainID, recipient, safeUint64(raw), safeUint64(balance)); err != nil {
		return nil, err
	}

	result, err := w.Send(ctx, SendParams{To: info.Address.Hex(), Value: big.NewInt(0), Data: data})
	if err != nil {
		return nil, err
	}
	w.policy.RecordTokenSpend(symbol, safeUint64(raw))
	return result, nil
}

// SafeSendToken is SendToken's non-throwing twin.
func (w *Wallet) SafeSendToken(ctx context.Context, symbol, to, humanAmount string) SendOutcome {
	result, err := w.SendToken(ctx, symbol, to, humanAmount)
	if err != nil {
		return SendOutcome{Err: asCoreError(err)}
	}
	return SendOutcome{Result: result}
}

// TokenBalance reads symbol's balanceOf(wallet) on the current chain.
func (w *Wallet) TokenBalance(ctx context.Context, symbol string) (*big.Int, error) {
	info, err := w.stablecoinInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	selector, err := abi.Selector("balanceOf(address)")
	if err != nil {
		return nil, err
	}
	encodedArgs, err := abi.Encode([]string{"address"}, []any{w.account.Address()})
	if err != nil {
		return nil, err
	}
	data := append(selector[:], encodedArgs...)

	output, err := w.rpc.Call(ctx, CallMsg{From: w.account.Address(), To: &info.Address, Data: data})
	if err != nil {
		return nil, err
	}
	values, err := abi.Decode([]string{"uint256"}, output)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("core: decode balanceOf result: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("core: unexpected balanceOf result type")
	}
	return balance, nil
}

func erc20TransferData(to Address, amount *big.Int) ([]byte, error) {
	selector, err := abi.Selector("transfer(address,uint256)")
	if err != nil {
		return nil, err
	}
	encoded, err := abi.Encode([]string{"address", "uint256"}, []any{to, amount})
	if err != nil {
		return nil, err
	}
	return append(selector[:], encoded...), nil
}

// humanToRawUnits converts a decimal display-unit string (e.g. "12.50")
// into the token's raw integer smallest-unit amount, using plain string
// arithmetic to avoid floating-point rounding.
func humanToRawUnits(amount string, decimals uint8) (*big.Int, error) {
	neg := false
	if strings.HasPrefix(amount, "-") {
		neg = true
		amount = amount[1:]
	}
	parts := strings.SplitN(amount, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d fractional digits", amount, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))
	combined := whole + frac
	if combined == "" {
		combined = "0"
	}
	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

// safeUint64 clamps a possibly-oversized big.Int to uint64 for the policy
// engine's ledger accounting, which operates in uint64 per spec §7's error
// constructors. Values that do not fit saturate to the maximum rather than
// wrapping, so an oversized amount is never under-counted against a limit.
func safeUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if v.IsUint64() {
		return v.Uint64()
	}
	return ^uint64(0)
}

// asCoreError adapts any error into a *CoreError for safe* result values,
// wrapping non-taxonomy errors (e.g. a builder validation failure) instead
// of discarding their message.
func asCoreError(err error) *CoreError {
	if ce, ok := err.(*CoreError); ok {
		return ce
	}
	return &CoreError{Code: CodeRPCError, Message: err.Error(), Cause: err}
}
