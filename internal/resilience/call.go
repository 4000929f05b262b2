package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Caller wraps every external provider call uniformly: per-provider
// concurrency cap, classified retries, per-call timeout, and health
// recording. It is shared across all concurrent enrichments.
type Caller struct {
	Limiter *Limiter
	Health  *HealthTracker
	Retry   RetryConfig

	// CallTimeout bounds each individual attempt. Default: 30s.
	CallTimeout time.Duration
}

// NewCaller builds a Caller with the given knobs, filling defaults.
func NewCaller(limiter *Limiter, health *HealthTracker, retry RetryConfig, callTimeout time.Duration) *Caller {
	if limiter == nil {
		limiter = NewLimiter(DefaultLimiterConfig())
	}
	if health == nil {
		health = NewHealthTracker(DefaultHealthConfig())
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Caller{Limiter: limiter, Health: health, Retry: retry, CallTimeout: callTimeout}
}

// Fetch runs fn under the provider's concurrency cap with retries, records
// the outcome in the health tracker, and absorbs failures: exhausted retries
// or a non-retryable error yield a nil result, never an error that would
// abort the surrounding pipeline step.
func Fetch[T any](ctx context.Context, c *Caller, providerName, operation string, fn func(ctx context.Context) (*T, error)) *T {
	release, err := c.Limiter.Acquire(ctx, providerName)
	if err != nil {
		// Cancelled while queued; nothing reached the provider.
		return nil
	}
	defer release()

	cfg := c.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger(providerName, operation)
	}

	start := time.Now()
	val, err := DoVal(ctx, cfg, func(ctx context.Context) (*T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.CallTimeout)
		defer cancel()
		return fn(attemptCtx)
	})
	latency := time.Since(start)

	c.Health.Record(providerName, err == nil, latency)

	if err != nil {
		if IsUnauthorized(err) {
			zap.L().Error("provider call unauthorized",
				zap.String("provider", providerName),
				zap.String("operation", operation),
				zap.Error(err),
			)
		} else {
			zap.L().Warn("provider call failed after retries",
				zap.String("provider", providerName),
				zap.String("operation", operation),
				zap.Duration("elapsed", latency),
				zap.Error(err),
			)
		}
		return nil
	}
	return val
}
