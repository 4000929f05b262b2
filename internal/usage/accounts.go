package usage

import (
	"fmt"
	"sync"
	"time"
)

// Tier error kinds surfaced to callers. These are the only quota failures
// that are user-visible hard errors.
const (
	KindFirmLimit = "FIRM_LIMIT_REACHED"
	KindUserLimit = "USER_LIMIT_REACHED"
)

// TierError reports an account-level quota rejection with remaining-usage
// details.
type TierError struct {
	Kind      string
	FirmUsage int
	FirmLimit int
	UserUsage int
	UserLimit int
}

func (e *TierError) Error() string {
	switch e.Kind {
	case KindFirmLimit:
		return fmt.Sprintf("%s: firm usage %d/%d", e.Kind, e.FirmUsage, e.FirmLimit)
	default:
		return fmt.Sprintf("%s: user usage %d/%d", e.Kind, e.UserUsage, e.UserLimit)
	}
}

// TierCheck is the result of an account-level quota evaluation.
type TierCheck struct {
	Allowed   bool
	Err       *TierError
	FirmUsage int
	FirmLimit int
	UserUsage int
	UserLimit int
}

// Accounts tracks firm-level and user-level billing-period counters,
// independent of provider counters. An account can be blocked while
// providers still have headroom, and vice versa.
type Accounts struct {
	firmLimit int
	userLimit int

	mu    sync.Mutex
	firms map[string]*periodCount
	users map[string]*periodCount

	now func() time.Time
}

type periodCount struct {
	count int
	key   string
}

// NewAccounts creates an account quota tracker with per-billing-period
// firm and user allowances. A zero limit means unlimited.
func NewAccounts(firmLimit, userLimit int) *Accounts {
	return &Accounts{
		firmLimit: firmLimit,
		userLimit: userLimit,
		firms:     make(map[string]*periodCount),
		users:     make(map[string]*periodCount),
		now:       time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (a *Accounts) WithNow(fn func() time.Time) *Accounts {
	a.now = fn
	return a
}

func (a *Accounts) periodKey() string {
	return a.now().UTC().Format("2006-01")
}

// current returns the in-period count for a key, treating a stale-period
// counter as zero. Caller holds a.mu.
func current(m map[string]*periodCount, id, key string) int {
	pc, ok := m[id]
	if !ok || pc.key != key {
		return 0
	}
	return pc.count
}

// CheckTierLimits evaluates firm-wide and per-user monthly allowances.
// Firm exhaustion wins over user exhaustion when both apply.
func (a *Accounts) CheckTierLimits(firmID, userID string) TierCheck {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := a.periodKey()
	chk := TierCheck{
		Allowed:   true,
		FirmUsage: current(a.firms, firmID, key),
		FirmLimit: a.firmLimit,
		UserUsage: current(a.users, userID, key),
		UserLimit: a.userLimit,
	}

	if a.firmLimit > 0 && chk.FirmUsage >= a.firmLimit {
		chk.Allowed = false
		chk.Err = &TierError{Kind: KindFirmLimit, FirmUsage: chk.FirmUsage, FirmLimit: a.firmLimit, UserUsage: chk.UserUsage, UserLimit: a.userLimit}
		return chk
	}
	if a.userLimit > 0 && chk.UserUsage >= a.userLimit {
		chk.Allowed = false
		chk.Err = &TierError{Kind: KindUserLimit, FirmUsage: chk.FirmUsage, FirmLimit: a.firmLimit, UserUsage: chk.UserUsage, UserLimit: a.userLimit}
	}
	return chk
}

// Record adds n to the firm and user billing-period counters. Call only
// after the enriching operation succeeded.
func (a *Accounts) Record(firmID, userID string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := a.periodKey()
	bump := func(m map[string]*periodCount, id string) {
		if id == "" {
			return
		}
		pc, ok := m[id]
		if !ok || pc.key != key {
			pc = &periodCount{key: key}
			m[id] = pc
		}
		pc.count += n
	}
	bump(a.firms, firmID)
	bump(a.users, userID)
}
