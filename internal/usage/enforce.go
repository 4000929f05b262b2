package usage

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrProviderBlocked is returned when a provider-level quota rejects a call
// before it reaches the network.
var ErrProviderBlocked = eris.New("usage: provider quota exhausted")

// Enforcer composes the account-level and provider-level quota layers
// around an external operation.
type Enforcer struct {
	Ledger   *Ledger
	Accounts *Accounts
}

// NewEnforcer creates an Enforcer over the given ledger and accounts.
func NewEnforcer(l *Ledger, a *Accounts) *Enforcer {
	return &Enforcer{Ledger: l, Accounts: a}
}

// WithQuotaEnforcement runs op under quota control: account tier check,
// then provider pre-check, then op, recording usage only if op succeeds.
// A failed op never consumes allowance. The cost parameter is the number
// of billable calls op represents (usually 1).
func WithQuotaEnforcement[T any](ctx context.Context, e *Enforcer, firmID, userID, providerName string, cost int, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if cost <= 0 {
		cost = 1
	}

	if e.Accounts != nil {
		chk := e.Accounts.CheckTierLimits(firmID, userID)
		if !chk.Allowed {
			return zero, chk.Err
		}
	}

	dec := e.Ledger.CanMakeRequest(providerName)
	if !dec.Allowed {
		zap.L().Warn("usage: request blocked by provider quota",
			zap.String("provider", providerName),
			zap.String("reason", dec.Reason),
		)
		return zero, eris.Wrap(ErrProviderBlocked, dec.Reason)
	}

	val, err := op(ctx)
	if err != nil {
		return zero, err
	}

	e.Ledger.Record(providerName, cost)
	if e.Accounts != nil {
		e.Accounts.Record(firmID, userID, cost)
	}
	return val, nil
}
