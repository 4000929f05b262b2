package usage

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTierLimits(t *testing.T) {
	t.Parallel()
	a := NewAccounts(100, 10)

	chk := a.CheckTierLimits("firm1", "user1")
	assert.True(t, chk.Allowed)
	assert.Equal(t, 0, chk.FirmUsage)
	assert.Equal(t, 100, chk.FirmLimit)

	a.Record("firm1", "user1", 10)
	chk = a.CheckTierLimits("firm1", "user1")
	require.False(t, chk.Allowed)
	assert.Equal(t, KindUserLimit, chk.Err.Kind)
	assert.Equal(t, 10, chk.Err.UserUsage)

	// A different user in the same firm still has headroom.
	chk = a.CheckTierLimits("firm1", "user2")
	assert.True(t, chk.Allowed)
	assert.Equal(t, 10, chk.FirmUsage)
}

func TestFirmLimitWinsOverUserLimit(t *testing.T) {
	t.Parallel()
	a := NewAccounts(5, 5)
	a.Record("firm1", "user1", 5)

	chk := a.CheckTierLimits("firm1", "user1")
	require.False(t, chk.Allowed)
	assert.Equal(t, KindFirmLimit, chk.Err.Kind)
}

func TestTierPeriodRollover(t *testing.T) {
	t.Parallel()
	aug := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	sep := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	a := NewAccounts(10, 5).WithNow(func() time.Time { return aug })
	a.Record("firm1", "user1", 5)
	assert.False(t, a.CheckTierLimits("firm1", "user1").Allowed)

	a.WithNow(func() time.Time { return sep })
	chk := a.CheckTierLimits("firm1", "user1")
	assert.True(t, chk.Allowed)
	assert.Equal(t, 0, chk.UserUsage, "new billing period starts at zero")
}

func TestZeroLimitsUnlimited(t *testing.T) {
	t.Parallel()
	a := NewAccounts(0, 0)
	a.Record("firm1", "user1", 100000)
	assert.True(t, a.CheckTierLimits("firm1", "user1").Allowed)
}

func TestWithQuotaEnforcementRecordsOnSuccessOnly(t *testing.T) {
	t.Parallel()
	l := NewLedger(NewMemoryStore(), testRegistry())
	a := NewAccounts(100, 10)
	e := NewEnforcer(l, a)

	// Failing op consumes nothing.
	_, err := WithQuotaEnforcement(context.Background(), e, "firm1", "user1", "endato", 1,
		func(ctx context.Context) (string, error) {
			return "", eris.New("provider exploded")
		})
	require.Error(t, err)
	assert.Equal(t, 0, a.CheckTierLimits("firm1", "user1").UserUsage)
	assert.Equal(t, 0, l.store.Get("endato").Daily)

	// Successful op records one call at both layers.
	val, err := WithQuotaEnforcement(context.Background(), e, "firm1", "user1", "endato", 1,
		func(ctx context.Context) (string, error) {
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, a.CheckTierLimits("firm1", "user1").UserUsage)
	assert.Equal(t, 1, l.store.Get("endato").Daily)
}

func TestWithQuotaEnforcementBlockedBeforeOp(t *testing.T) {
	t.Parallel()
	l := NewLedger(NewMemoryStore(), testRegistry())
	a := NewAccounts(100, 10)
	e := NewEnforcer(l, a)

	l.Record("attom", 10) // exhaust monthly quota

	ran := false
	_, err := WithQuotaEnforcement(context.Background(), e, "firm1", "user1", "attom", 1,
		func(ctx context.Context) (string, error) {
			ran = true
			return "", nil
		})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrProviderBlocked))
	assert.False(t, ran, "blocked request must not reach the network")
}

func TestWithQuotaEnforcementTierError(t *testing.T) {
	t.Parallel()
	l := NewLedger(NewMemoryStore(), testRegistry())
	a := NewAccounts(1, 1)
	e := NewEnforcer(l, a)
	a.Record("firm1", "user1", 1)

	_, err := WithQuotaEnforcement(context.Background(), e, "firm1", "user1", "endato", 1,
		func(ctx context.Context) (string, error) {
			return "", nil
		})
	var te *TierError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindFirmLimit, te.Kind)
}
