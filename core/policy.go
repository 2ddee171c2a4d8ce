package core

// Policy engine (spec §4.7 / component C7): spending limits, address
// allow/block lists, and an approval gate, evaluated in a fixed order
// before any transaction is built.
//
// Grounded on the teacher's core/storage.go mutex-guarded ledger idiom and
// core/cross_chain.go's bounded-tracking-map style, generalized to the
// three parallel ledgers (native, per-token, per-bridge-corridor) and the
// ordered checkTransaction/recordSpend lifecycle this spec requires.

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SpendingLimits bounds one ledger: a hard per-transaction cap, a balance
// floor below which all spending halts, and rolling-window caps.
type SpendingLimits struct {
	PerTransaction     uint64
	EmergencyStopBelow uint64
	Hourly             uint64
	Daily              uint64
	Weekly             uint64
}

// AddressPolicyMode selects whether AddressPolicy.Addresses is an allowlist
// or a blocklist.
type AddressPolicyMode int

const (
	AddressPolicyAllowlist AddressPolicyMode = iota
	AddressPolicyBlocklist
)

// AddressPolicy gates recipients by allowlist or blocklist membership.
type AddressPolicy struct {
	Mode      AddressPolicyMode
	Addresses map[Address]bool
}

func (p AddressPolicy) check(addr Address) *CoreError {
	if p.Addresses == nil {
		return nil
	}
	listed := p.Addresses[addr]
	switch p.Mode {
	case AddressPolicyAllowlist:
		if !listed {
			return AddressNotAllowed(addr)
		}
	case AddressPolicyBlocklist:
		if listed {
			return AddressBlocked(addr)
		}
	}
	return nil
}

// ApprovalPredicates is the disjunction of conditions that require a
// human-in-the-loop approval before a transaction proceeds.
type ApprovalPredicates struct {
	AmountExceeds         *uint64
	RecipientIsNew        bool
	RecipientNotInTrusted bool
	Always                bool
}

func (p ApprovalPredicates) requireApproval(amount uint64, isNew, trusted bool) bool {
	if p.Always {
		return true
	}
	if p.AmountExceeds != nil && amount > *p.AmountExceeds {
		return true
	}
	if p.RecipientIsNew && isNew {
		return true
	}
	if p.RecipientNotInTrusted && !trusted {
		return true
	}
	return false
}

// ApprovalTimeoutPolicy decides the outcome when an approval handler does
// not respond within ApprovalConfig.Timeout. The default is reject.
type ApprovalTimeoutPolicy int

const (
	ApprovalTimeoutReject ApprovalTimeoutPolicy = iota
	ApprovalTimeoutApprove
)

// ApprovalRequest is passed to an ApprovalHandler for a pending transaction
// that tripped one of RequireApprovalWhen's predicates. ID is an opaque
// correlation identifier an external approval UI can key off of.
type ApprovalRequest struct {
	ID     string
	To     Address
	Amount uint64
	Reason string
}

// ApprovalHandler decides whether a flagged transaction may proceed.
type ApprovalHandler func(ctx context.Context, req ApprovalRequest) (bool, error)

// ApprovalConfig wires the approval gate's predicates, handler, and timeout
// behavior.
type ApprovalConfig struct {
	RequireApprovalWhen ApprovalPredicates
	Handler             ApprovalHandler
	Timeout             time.Duration
	TimeoutPolicy       ApprovalTimeoutPolicy
}

// spendEntry is one (timestamp, amount) ledger record.
type spendEntry struct {
	at     time.Time
	amount uint64
}

// ledger tracks hourly/daily/weekly rolling sums for one spending category
// (native asset, one stablecoin, or one bridge corridor). Entries older
// than a window's span are pruned on every append and every query, per
// spec §4.7.
type ledger struct {
	mu     sync.Mutex
	hourly []spendEntry
	daily  []spendEntry
	weekly []spendEntry
}

const (
	hourlyWindow = time.Hour
	dailyWindow  = 24 * time.Hour
	weeklyWindow = 7 * 24 * time.Hour
)

func pruneEntries(entries []spendEntry, now time.Time, span time.Duration) []spendEntry {
	cutoff := now.Add(-span)
	i := 0
	for i < len(entries) && entries[i].at.Before(cutoff) {
		i++
	}
	return entries[i:]
}

func sumEntries(entries []spendEntry) uint64 {
	var total uint64
	for _, e := range entries {
		total += e.amount
	}
	return total
}

// windowSums returns the current hourly/daily/weekly spend totals as of
// now, pruning stale entries in the process.
func (l *ledger) windowSums(now time.Time) (hourly, daily, weekly uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hourly = pruneEntries(l.hourly, now, hourlyWindow)
	l.daily = pruneEntries(l.daily, now, dailyWindow)
	l.weekly = pruneEntries(l.weekly, now, weeklyWindow)
	return sumEntries(l.hourly), sumEntries(l.daily), sumEntries(l.weekly)
}

// record appends a (now, amount) entry to every window.
func (l *ledger) record(now time.Time, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := spendEntry{at: now, amount: amount}
	l.hourly = append(pruneEntries(l.hourly, now, hourlyWindow), entry)
	l.daily = append(pruneEntries(l.daily, now, dailyWindow), entry)
	l.weekly = append(pruneEntries(l.weekly, now, weeklyWindow), entry)
}

// oldestWithin returns the time the earliest entry still inside span of
// now drops out of the window (its timestamp plus span), used as a limit
// violation's resetsAt.
func oldestWithin(entries []spendEntry, now time.Time, span time.Duration) time.Time {
	if len(entries) == 0 {
		return now
	}
	return entries[0].at.Add(span)
}

// corridorKey identifies one (stablecoin symbol, destination chain)
// bridge-spend ledger.
type corridorKey struct {
	token              string
	destinationChainID uint64
}

// PolicyEngine evaluates spending limits, address policy, and the approval
// gate before a transaction is built, and records confirmed spend
// afterward. One engine instance serves an entire agent wallet: the native
// ledger plus a per-token and per-corridor ledger map.
type PolicyEngine struct {
	limits        SpendingLimits
	addressPolicy AddressPolicy
	approval      ApprovalConfig
	trusted       map[Address]bool

	mu             sync.Mutex
	seen           map[Address]bool
	native         *ledger
	tokenLimits    map[string]SpendingLimits
	tokens         map[string]*ledger
	corridorLimits map[corridorKey]SpendingLimits
	corridors      map[corridorKey]*ledger
}

// NewPolicyEngine constructs a policy engine over the given native-asset
// limits, address policy, approval config, and trusted-address set.
func NewPolicyEngine(limits SpendingLimits, addressPolicy AddressPolicy, approval ApprovalConfig, trusted []Address) *PolicyEngine {
	trustedSet := make(map[Address]bool, len(trusted))
	for _, a := range trusted {
		trustedSet[a] = true
	}
	return &PolicyEngine{
		limits:         limits,
		addressPolicy:  addressPolicy,
		approval:       approval,
		trusted:        trustedSet,
		seen:           make(map[Address]bool),
		native:         &ledger{},
		tokenLimits:    make(map[string]SpendingLimits),
		tokens:         make(map[string]*ledger),
		corridorLimits: make(map[corridorKey]SpendingLimits),
		corridors:      make(map[corridorKey]*ledger),
	}
}

// SetTokenLimits configures a stablecoin symbol's spending-limit ledger.
// The engine treats 1 raw unit of a stablecoin as 1 USD for limit
// accounting — a stated simplification, not a price claim (spec §4.7).
func (p *PolicyEngine) SetTokenLimits(symbol string, limits SpendingLimits) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenLimits[symbol] = limits
	if _, ok := p.tokens[symbol]; !ok {
		p.tokens[symbol] = &ledger{}
	}
}

// SetCorridorLimits configures a (stablecoin, destination chain) bridge
// corridor's spending-limit ledger.
func (p *PolicyEngine) SetCorridorLimits(symbol string, destinationChainID uint64, limits SpendingLimits) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := corridorKey{token: symbol, destinationChainID: destinationChainID}
	p.corridorLimits[key] = limits
	if _, ok := p.corridors[key]; !ok {
		p.corridors[key] = &ledger{}
	}
}

func (p *PolicyEngine) tokenLedger(symbol string) (*ledger, SpendingLimits, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	limits, ok := p.tokenLimits[symbol]
	if !ok {
		return nil, SpendingLimits{}, false
	}
	return p.tokens[symbol], limits, true
}

func (p *PolicyEngine) corridorLedger(symbol string, destinationChainID uint64) (*ledger, SpendingLimits, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := corridorKey{token: symbol, destinationChainID: destinationChainID}
	limits, ok := p.corridorLimits[key]
	if !ok {
		return nil, SpendingLimits{}, false
	}
	return p.corridors[key], limits, true
}

// checkLimits evaluates spec §4.7's three ordered limit checks against one
// ledger: emergency stop, per-transaction cap, then rolling windows.
func checkLimits(l *ledger, limits SpendingLimits, amount, balance uint64) *CoreError {
	if balance < limits.EmergencyStopBelow {
		return EmergencyStopTriggered(balance, limits.EmergencyStopBelow)
	}
	if limits.PerTransaction > 0 && amount > limits.PerTransaction {
		return PerTransactionLimitExceeded(amount, limits.PerTransaction)
	}

	now := time.Now()
	hourly, daily, weekly := l.windowSums(now)

	if limits.Hourly > 0 && hourly+amount > limits.Hourly {
		l.mu.Lock()
		resetsAt := oldestWithin(l.hourly, now, hourlyWindow)
		l.mu.Unlock()
		return HourlyLimitExceeded(hourly, amount, limits.Hourly, resetsAt)
	}
	if limits.Daily > 0 && daily+amount > limits.Daily {
		l.mu.Lock()
		resetsAt := oldestWithin(l.daily, now, dailyWindow)
		l.mu.Unlock()
		return DailyLimitExceeded(daily, amount, limits.Daily, resetsAt)
	}
	if limits.Weekly > 0 && weekly+amount > limits.Weekly {
		l.mu.Lock()
		resetsAt := oldestWithin(l.weekly, now, weeklyWindow)
		l.mu.Unlock()
		return WeeklyLimitExceeded(weekly, amount, limits.Weekly, resetsAt)
	}
	return nil
}

// runApprovalGate computes requireApproval and, if true, invokes the
// configured handler under the configured timeout. A nil Handler with
// requireApproval true is treated as an immediate denial.
func (p *PolicyEngine) runApprovalGate(ctx context.Context, to Address, amount uint64) *CoreError {
	p.mu.Lock()
	isNew := !p.seen[to]
	trusted := p.trusted[to]
	p.mu.Unlock()

	if !p.approval.RequireApprovalWhen.requireApproval(amount, isNew, trusted) {
		return nil
	}
	if p.approval.Handler == nil {
		return ApprovalDenied("no handler configured")
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if p.approval.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, p.approval.Timeout)
		defer cancel()
	}

	approved, err := p.approval.Handler(reqCtx, ApprovalRequest{ID: uuid.NewString(), To: to, Amount: amount})
	if err != nil {
		if reqCtx.Err() != nil {
			if p.approval.TimeoutPolicy == ApprovalTimeoutApprove {
				return nil
			}
			return ApprovalTimeout("transaction")
		}
		return ApprovalDenied(err.Error())
	}
	if !approved {
		return ApprovalDenied("transaction")
	}
	return nil
}

// CheckAddress runs the address-policy check alone, for callers (the
// wallet facade's send flow, step 2) that need it ahead of a balance fetch
// and gas estimate rather than bundled with the limit/approval checks.
func (p *PolicyEngine) CheckAddress(to Address) error {
	if err := p.addressPolicy.check(to); err != nil {
		return err
	}
	return nil
}

// CheckLimits runs only the emergency-stop/per-transaction/rolling-window
// checks against the native-asset ledger (send flow step 3), without the
// address policy or approval gate.
func (p *PolicyEngine) CheckLimits(amount, balance uint64) error {
	if err := checkLimits(p.native, p.limits, amount, balance); err != nil {
		return err
	}
	return nil
}

// RequireApproval runs only the approval gate (send flow step 6), for
// callers that have already separately cleared address policy and limits.
func (p *PolicyEngine) RequireApproval(ctx context.Context, to Address, amount uint64) error {
	if err := p.runApprovalGate(ctx, to, amount); err != nil {
		return err
	}
	return nil
}

// CheckNativeTransaction runs the full C7 order — address policy,
// emergency stop, per-transaction cap, rolling windows, approval gate —
// against the native-asset ledger.
func (p *PolicyEngine) CheckNativeTransaction(ctx context.Context, to Address, amount, balance uint64) error {
	if err := p.addressPolicy.check(to); err != nil {
		return err
	}
	if err := checkLimits(p.native, p.limits, amount, balance); err != nil {
		return err
	}
	if err := p.runApprovalGate(ctx, to, amount); err != nil {
		return err
	}
	return nil
}

// CheckTokenTransaction runs the same order against symbol's stablecoin
// ledger. Returns UnsupportedStablecoin if no limits were configured for
// symbol.
func (p *PolicyEngine) CheckTokenTransaction(ctx context.Context, symbol string, chainID uint64, to Address, amountUSD, balance uint64) error {
	l, limits, ok := p.tokenLedger(symbol)
	if !ok {
		return UnsupportedStablecoin(symbol, chainID)
	}
	if err := p.addressPolicy.check(to); err != nil {
		return err
	}
	if err := checkLimits(l, limits, amountUSD, balance); err != nil {
		return err
	}
	return p.runApprovalGate(ctx, to, amountUSD)
}

// CheckBridgeTransaction runs the same order against the (symbol,
// destinationChainID) corridor ledger.
func (p *PolicyEngine) CheckBridgeTransaction(ctx context.Context, symbol string, destinationChainID uint64, to Address, amountUSD, balance uint64) error {
	l, limits, ok := p.corridorLedger(symbol, destinationChainID)
	if !ok {
		return UnsupportedStablecoin(symbol, destinationChainID)
	}
	if err := p.addressPolicy.check(to); err != nil {
		return err
	}
	if err := checkLimits(l, limits, amountUSD, balance); err != nil {
		return err
	}
	return p.runApprovalGate(ctx, to, amountUSD)
}

// RecordNativeSpend appends a confirmed native-asset spend to the rolling
// windows.
func (p *PolicyEngine) RecordNativeSpend(amount uint64) {
	p.native.record(time.Now(), amount)
}

// RecordTokenSpend appends a confirmed stablecoin spend to symbol's
// ledger. A no-op if symbol has no configured limits.
func (p *PolicyEngine) RecordTokenSpend(symbol string, amountUSD uint64) {
	if l, _, ok := p.tokenLedger(symbol); ok {
		l.record(time.Now(), amountUSD)
	}
}

// RecordBridgeSpend appends a confirmed bridge spend to the (symbol,
// destinationChainID) corridor's ledger.
func (p *PolicyEngine) RecordBridgeSpend(symbol string, destinationChainID uint64, amountUSD uint64) {
	if l, _, ok := p.corridorLedger(symbol, destinationChainID); ok {
		l.record(time.Now(), amountUSD)
	}
}

// LimitsRemaining reports headroom left in each configured rolling window.
// A nil field means that window has no configured cap.
type LimitsRemaining struct {
	Hourly *uint64
	Daily  *uint64
	Weekly *uint64
}

func saturatingSub(limit, spent uint64) uint64 {
	if spent >= limit {
		return 0
	}
	return limit - spent
}

func remainingFor(limits SpendingLimits, hourly, daily, weekly uint64) LimitsRemaining {
	var r LimitsRemaining
	if limits.Hourly > 0 {
		v := saturatingSub(limits.Hourly, hourly)
		r.Hourly = &v
	}
	if limits.Daily > 0 {
		v := saturatingSub(limits.Daily, daily)
		r.Daily = &v
	}
	if limits.Weekly > 0 {
		v := saturatingSub(limits.Weekly, weekly)
		r.Weekly = &v
	}
	return r
}

// NativeLimitsRemaining reports the native-asset ledger's current
// headroom, for SendResult.LimitsRemaining (spec §4.10 step 9).
func (p *PolicyEngine) NativeLimitsRemaining() LimitsRemaining {
	hourly, daily, weekly := p.native.windowSums(time.Now())
	return remainingFor(p.limits, hourly, daily, weekly)
}

// MarkRecipientSeen records that a transaction to addr has now completed,
// so future checkTransaction calls see it as a known recipient rather than
// a new one.
func (p *PolicyEngine) MarkRecipientSeen(addr Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[addr] = true
}
