package core

// Error taxonomy for the agent wallet runtime (spec §7).
//
// The teacher favors plain sentinel errors (core/cross_chain.go's
// ErrInvalidProof, ErrNotFound) wrapped ad hoc with fmt.Errorf("%w", …) via
// pkg/utils.Wrap. This spec requires a richer, retry-aware shape
// ({code, message, suggestion, retryable, retryAfter}), so CoreError
// generalizes that idiom into one structured type instead of inventing a
// new error-handling mechanism from scratch.

import (
	"fmt"
	"time"
)

// ErrorCode is a stable, machine-checkable error category.
type ErrorCode string

const (
	// Transaction
	CodeInsufficientFunds      ErrorCode = "INSUFFICIENT_FUNDS"
	CodeInsufficientGas        ErrorCode = "INSUFFICIENT_GAS"
	CodeNonceTooLow            ErrorCode = "NONCE_TOO_LOW"
	CodeTransactionReverted    ErrorCode = "TRANSACTION_REVERTED"
	CodeTransactionUnderpriced ErrorCode = "TRANSACTION_UNDERPRICED"

	// Limits
	CodePerTransactionLimitExceeded ErrorCode = "PER_TRANSACTION_LIMIT_EXCEEDED"
	CodeHourlyLimitExceeded         ErrorCode = "HOURLY_LIMIT_EXCEEDED"
	CodeDailyLimitExceeded          ErrorCode = "DAILY_LIMIT_EXCEEDED"
	CodeWeeklyLimitExceeded         ErrorCode = "WEEKLY_LIMIT_EXCEEDED"
	CodeEmergencyStopTriggered      ErrorCode = "EMERGENCY_STOP_TRIGGERED"

	// Approval
	CodeApprovalRequired ErrorCode = "APPROVAL_REQUIRED"
	CodeApprovalDenied   ErrorCode = "APPROVAL_DENIED"
	CodeApprovalTimeout  ErrorCode = "APPROVAL_TIMEOUT"

	// Address
	CodeAddressNotAllowed ErrorCode = "ADDRESS_NOT_ALLOWED"
	CodeAddressBlocked    ErrorCode = "ADDRESS_BLOCKED"
	CodeInvalidAddress    ErrorCode = "INVALID_ADDRESS"
	CodeENSNotFound       ErrorCode = "ENS_NOT_FOUND"

	// Network
	CodeRPCError       ErrorCode = "RPC_ERROR"
	CodeNetworkError   ErrorCode = "NETWORK_ERROR"
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeRateLimitError ErrorCode = "RATE_LIMIT_ERROR"

	// Bridge
	CodeBridgeNoRoute               ErrorCode = "BRIDGE_NO_ROUTE"
	CodeBridgeQuoteExpired          ErrorCode = "BRIDGE_QUOTE_EXPIRED"
	CodeBridgeProtocolUnavailable   ErrorCode = "BRIDGE_PROTOCOL_UNAVAILABLE"
	CodeBridgeValidationFailed      ErrorCode = "BRIDGE_VALIDATION_FAILED"
	CodeBridgeInsufficientLiquidity ErrorCode = "BRIDGE_INSUFFICIENT_LIQUIDITY"
	CodeBridgeSlippageExceeded      ErrorCode = "BRIDGE_SLIPPAGE_EXCEEDED"
	CodeBridgeCompletionTimeout     ErrorCode = "BRIDGE_COMPLETION_TIMEOUT"

	// Misc
	CodeUnsupportedStablecoin ErrorCode = "UNSUPPORTED_STABLECOIN"
)

// CoreError is the single structured error type flowing out of every
// component in this runtime.
type CoreError struct {
	Code       ErrorCode
	Message    string
	Suggestion string
	Retryable  bool
	RetryAfter time.Duration
	ResetsAt   time.Time
	Cause      error
}

func (e *CoreError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As chains.
func (e *CoreError) Unwrap() error { return e.Cause }

func newErr(code ErrorCode, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// InsufficientFunds reports that balance cannot cover amount+gas.
func InsufficientFunds(need, have uint64) *CoreError {
	e := newErr(CodeInsufficientFunds, fmt.Sprintf("need %d, have %d", need, have))
	e.Suggestion = "reduce amount or top up the sending account"
	return e
}

// InvalidAddress reports an unparsable or unresolvable recipient.
func InvalidAddress(raw string, cause error) *CoreError {
	e := newErr(CodeInvalidAddress, fmt.Sprintf("cannot resolve %q", raw))
	e.Cause = cause
	return e
}

// ENSNotFound reports that an ENS name has no forward resolution.
func ENSNotFound(name string) *CoreError {
	return newErr(CodeENSNotFound, fmt.Sprintf("no resolver record for %q", name))
}

// AddressBlocked reports a blocklist-mode policy rejection.
func AddressBlocked(addr Address) *CoreError {
	e := newErr(CodeAddressBlocked, fmt.Sprintf("%s is blocked", addr.Hex()))
	e.Suggestion = "remove the recipient from the blocklist or use a different address"
	return e
}

// AddressNotAllowed reports an allowlist-mode policy rejection.
func AddressNotAllowed(addr Address) *CoreError {
	e := newErr(CodeAddressNotAllowed, fmt.Sprintf("%s is not on the allowlist", addr.Hex()))
	e.Suggestion = "add the recipient to the allowlist"
	return e
}

// EmergencyStopTriggered reports that balance fell below the configured
// floor.
func EmergencyStopTriggered(balance, floor uint64) *CoreError {
	e := newErr(CodeEmergencyStopTriggered, fmt.Sprintf("balance %d below floor %d", balance, floor))
	e.Retryable = false
	return e
}

// PerTransactionLimitExceeded reports amount exceeding the single-tx cap.
func PerTransactionLimitExceeded(amount, cap uint64) *CoreError {
	return newErr(CodePerTransactionLimitExceeded, fmt.Sprintf("amount %d exceeds per-transaction cap %d", amount, cap))
}

// windowLimitExceeded is shared by the hourly/daily/weekly constructors.
func windowLimitExceeded(code ErrorCode, window string, spent, amount, cap uint64, resetsAt time.Time) *CoreError {
	e := newErr(code, fmt.Sprintf("%s spend %d + %d exceeds cap %d", window, spent, amount, cap))
	e.ResetsAt = resetsAt
	e.RetryAfter = time.Until(resetsAt)
	if e.RetryAfter < 0 {
		e.RetryAfter = 0
	}
	e.Retryable = true
	return e
}

func HourlyLimitExceeded(spent, amount, cap uint64, resetsAt time.Time) *CoreError {
	return windowLimitExceeded(CodeHourlyLimitExceeded, "hourly", spent, amount, cap, resetsAt)
}

func DailyLimitExceeded(spent, amount, cap uint64, resetsAt time.Time) *CoreError {
	return windowLimitExceeded(CodeDailyLimitExceeded, "daily", spent, amount, cap, resetsAt)
}

func WeeklyLimitExceeded(spent, amount, cap uint64, resetsAt time.Time) *CoreError {
	return windowLimitExceeded(CodeWeeklyLimitExceeded, "weekly", spent, amount, cap, resetsAt)
}

// ApprovalDenied reports a handler-rejected approval request.
func ApprovalDenied(id string) *CoreError {
	return newErr(CodeApprovalDenied, fmt.Sprintf("approval %s denied", id))
}

// ApprovalTimeout reports a handler that did not respond in time.
func ApprovalTimeout(id string) *CoreError {
	e := newErr(CodeApprovalTimeout, fmt.Sprintf("approval %s timed out", id))
	e.Retryable = true
	return e
}

// UnsupportedStablecoin reports a symbol with no known address on the
// current chain.
func UnsupportedStablecoin(symbol string, chainID uint64) *CoreError {
	return newErr(CodeUnsupportedStablecoin, fmt.Sprintf("%s has no known address on chain %d", symbol, chainID))
}

// RPCError wraps a transport/JSON-RPC failure.
func RPCError(method string, cause error) *CoreError {
	e := newErr(CodeRPCError, fmt.Sprintf("rpc %s failed", method))
	e.Cause = cause
	e.Retryable = true
	return e
}

// RateLimitError wraps a node rate-limit response.
func RateLimitError(retryAfter time.Duration) *CoreError {
	e := newErr(CodeRateLimitError, "rate limited by RPC endpoint")
	e.Retryable = true
	e.RetryAfter = retryAfter
	return e
}

// Timeout wraps a caller- or node-facing timeout.
func Timeout(what string) *CoreError {
	e := newErr(CodeTimeout, fmt.Sprintf("%s timed out", what))
	e.Retryable = true
	return e
}

// TransactionReverted wraps an on-chain revert, carrying the decoded reason
// if one was available.
func TransactionReverted(reason string) *CoreError {
	return newErr(CodeTransactionReverted, reason)
}

// BridgeQuoteExpired reports use of an expired BridgeQuote.
func BridgeQuoteExpired(protocol string) *CoreError {
	e := newErr(CodeBridgeQuoteExpired, fmt.Sprintf("%s quote expired", protocol))
	e.Retryable = true
	e.Suggestion = "request a fresh quote"
	return e
}

// BridgeNoRoute reports that no adapter claims the requested route.
func BridgeNoRoute(token string, dstChain uint64) *CoreError {
	return newErr(CodeBridgeNoRoute, fmt.Sprintf("no route for %s to chain %d", token, dstChain))
}

// BridgeValidationFailed wraps a pre-submit validation failure (deadline in
// the past, stale quote timestamp, reverted approval, …).
func BridgeValidationFailed(reason string) *CoreError {
	return newErr(CodeBridgeValidationFailed, reason)
}

// BridgeCompletionTimeout reports that a tracked transfer did not reach a
// terminal state before the polling deadline. Non-fatal: the tracking ID
// remains queryable.
func BridgeCompletionTimeout(trackingID string) *CoreError {
	e := newErr(CodeBridgeCompletionTimeout, fmt.Sprintf("tracking id %s did not complete in time", trackingID))
	e.Retryable = true
	return e
}

// BridgeProtocolUnavailable reports a chosen or explicit protocol that
// declines the route or is unreachable.
func BridgeProtocolUnavailable(protocol string, cause error) *CoreError {
	e := newErr(CodeBridgeProtocolUnavailable, fmt.Sprintf("%s unavailable", protocol))
	e.Cause = cause
	e.Retryable = true
	return e
}

// BridgeInsufficientLiquidity reports that a quote could not be filled
// because the protocol lacks destination-side liquidity for the amount.
func BridgeInsufficientLiquidity(protocol string, amount uint64) *CoreError {
	return newErr(CodeBridgeInsufficientLiquidity, fmt.Sprintf("%s has insufficient liquidity for %d", protocol, amount))
}

// BridgeSlippageExceeded reports a quote whose slippageBps exceeds the
// caller's maxSlippageBps filter.
func BridgeSlippageExceeded(protocol string, slippageBps, maxSlippageBps uint32) *CoreError {
	return newErr(CodeBridgeSlippageExceeded, fmt.Sprintf("%s slippage %d bps exceeds max %d bps", protocol, slippageBps, maxSlippageBps))
}
