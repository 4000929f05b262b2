package resilience

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// LimiterConfig caps per-provider parallelism and request rate. External
// providers rarely publish their rate limits; a small fixed cap keeps us
// polite even when many subjects are enriched at once.
type LimiterConfig struct {
	// MaxInFlight is the per-provider concurrent call cap. Default: 2.
	MaxInFlight int64

	// RequestsPerSecond paces calls per provider. 0 disables pacing.
	RequestsPerSecond float64
}

// DefaultLimiterConfig returns the default per-provider limits.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{MaxInFlight: 2, RequestsPerSecond: 0}
}

type providerLimiter struct {
	sem    *semaphore.Weighted
	pacing *rate.Limiter
}

// Limiter owns per-provider concurrency semaphores and pacing limiters.
type Limiter struct {
	cfg LimiterConfig

	mu       sync.Mutex
	limiters map[string]*providerLimiter
}

// NewLimiter creates a Limiter with the given per-provider config.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 2
	}
	return &Limiter{cfg: cfg, limiters: make(map[string]*providerLimiter)}
}

func (l *Limiter) get(name string) *providerLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.limiters[name]
	if !ok {
		pl = &providerLimiter{sem: semaphore.NewWeighted(l.cfg.MaxInFlight)}
		if l.cfg.RequestsPerSecond > 0 {
			pl.pacing = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), 1)
		}
		l.limiters[name] = pl
	}
	return pl
}

// Acquire blocks until the provider has an in-flight slot and its pacing
// allows another request, or ctx is cancelled. Callers must Release the
// returned func exactly once.
func (l *Limiter) Acquire(ctx context.Context, name string) (release func(), err error) {
	// semaphore.Acquire can succeed even when ctx is already done.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pl := l.get(name)
	if err := pl.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if pl.pacing != nil {
		if err := pl.pacing.Wait(ctx); err != nil {
			pl.sem.Release(1)
			return nil, err
		}
	}
	return func() { pl.sem.Release(1) }, nil
}
