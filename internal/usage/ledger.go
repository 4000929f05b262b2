package usage

import (
	"fmt"
	"time"

	"github.com/sells-group/dossier-cli/internal/provider"
)

// warningFraction is the utilization at which a provider's status degrades
// from ok to warning.
const warningFraction = 0.8

// ProviderState is the derived spend state of a provider.
type ProviderState string

const (
	StateOK      ProviderState = "ok"
	StateWarning ProviderState = "warning"
	StateBlocked ProviderState = "blocked"
)

// Decision is the outcome of a pre-call quota check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Ledger enforces provider-level spend quotas against periodized counters.
type Ledger struct {
	store    CounterStore
	registry *provider.Registry

	// now is injectable for period-rollover tests.
	now func() time.Time
}

// NewLedger creates a ledger over the given counter store and provider
// registry.
func NewLedger(store CounterStore, registry *provider.Registry) *Ledger {
	return &Ledger{store: store, registry: registry, now: time.Now}
}

// WithNow overrides the clock. Test hook.
func (l *Ledger) WithNow(fn func() time.Time) *Ledger {
	l.now = fn
	return l
}

func (l *Ledger) periodKeys() (daily, monthly string) {
	t := l.now().UTC()
	return t.Format("2006-01-02"), t.Format("2006-01")
}

// rollover zeroes counters whose period key no longer matches the current
// period. It runs under the counter's lock, so the reset happens exactly
// once regardless of concurrent callers.
func rollover(c *Counter, dailyKey, monthlyKey string) {
	if c.DailyKey != dailyKey {
		c.Daily = 0
		c.DailyKey = dailyKey
	}
	if c.MonthlyKey != monthlyKey {
		c.Monthly = 0
		c.MonthlyKey = monthlyKey
	}
}

// CanMakeRequest reports whether a call to the provider is allowed under
// its daily and monthly quotas. Blocked requests must not reach the
// network. Unknown providers are unlimited (quota is opt-in per provider).
func (l *Ledger) CanMakeRequest(name string) Decision {
	desc, ok := l.registry.Pricing(name)
	if !ok {
		return Decision{Allowed: true}
	}

	dailyKey, monthlyKey := l.periodKeys()
	var c Counter
	l.store.Update(name, func(cur *Counter) {
		rollover(cur, dailyKey, monthlyKey)
		c = *cur
	})

	if desc.DailyQuota > 0 && c.Daily >= desc.DailyQuota {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("daily limit reached for %s (%d/%d)", name, c.Daily, desc.DailyQuota),
		}
	}
	if desc.MonthlyQuota > 0 && c.Monthly >= desc.MonthlyQuota {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("monthly limit reached for %s (%d/%d)", name, c.Monthly, desc.MonthlyQuota),
		}
	}
	return Decision{Allowed: true}
}

// Record increments the provider's counters by n. Call only after the
// external request succeeded; blocked or failed calls never record usage.
func (l *Ledger) Record(name string, n int) Counter {
	dailyKey, monthlyKey := l.periodKeys()
	return l.store.Update(name, func(c *Counter) {
		rollover(c, dailyKey, monthlyKey)
		c.Daily += n
		c.Monthly += n
	})
}

// State derives the provider's spend state from its counters and limits.
// Warning means ≥80% of either limit, blocked means ≥100%. Both are derived,
// never stored.
func (l *Ledger) State(name string) ProviderState {
	desc, ok := l.registry.Pricing(name)
	if !ok {
		return StateOK
	}

	dailyKey, monthlyKey := l.periodKeys()
	var c Counter
	l.store.Update(name, func(cur *Counter) {
		rollover(cur, dailyKey, monthlyKey)
		c = *cur
	})

	state := StateOK
	check := func(count, limit int) {
		if limit <= 0 {
			return
		}
		if count >= limit {
			state = StateBlocked
			return
		}
		if state == StateOK && float64(count) >= warningFraction*float64(limit) {
			state = StateWarning
		}
	}
	check(c.Daily, desc.DailyQuota)
	if state != StateBlocked {
		check(c.Monthly, desc.MonthlyQuota)
	}
	return state
}

// SpendUSD estimates the current month's spend for a provider from its
// recorded call count.
func (l *Ledger) SpendUSD(name string) float64 {
	c := l.store.Get(name)
	_, monthlyKey := l.periodKeys()
	if c.MonthlyKey != monthlyKey {
		return 0
	}
	return l.registry.CallCost(name, c.Monthly)
}

// Snapshot returns a copy of every provider's counters, for reporting and
// journal persistence.
func (l *Ledger) Snapshot() map[string]Counter {
	return l.store.Snapshot()
}
