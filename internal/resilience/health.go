package resilience

import (
	"sync"
	"time"
)

// Freshness is the advisory label attached to a provider's contribution.
// It never blocks calls — quotas are the only hard block — it only tells
// callers how much to trust the data they got.
type Freshness string

const (
	// Fresh means the provider is healthy and answering normally.
	Fresh Freshness = "fresh"
	// Stale means the provider has been flaky recently; its data may lag.
	Stale Freshness = "stale"
	// Fallback means the provider is effectively down and callers should
	// treat its contribution as best-effort fallback data.
	Fallback Freshness = "fallback"
)

// HealthConfig tunes the rolling health signal.
type HealthConfig struct {
	// WindowSize is how many recent outcomes feed the signal. Default: 20.
	WindowSize int

	// StaleFailureRate is the windowed failure rate at which a provider is
	// labeled stale. Default: 0.3.
	StaleFailureRate float64

	// FallbackConsecutive is the consecutive-failure count at which a
	// provider is labeled fallback. Default: 5.
	FallbackConsecutive int

	// RecoveryAge is how long after the last failure a fallback-labeled
	// provider drops back to stale, letting it earn fresh again. Default: 60s.
	RecoveryAge time.Duration
}

// DefaultHealthConfig returns sensible defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		WindowSize:          20,
		StaleFailureRate:    0.3,
		FallbackConsecutive: 5,
		RecoveryAge:         60 * time.Second,
	}
}

// FromHealthConfig converts config values to a HealthConfig.
func FromHealthConfig(windowSize, fallbackConsecutive, recoveryAgeSecs int, staleFailureRate float64) HealthConfig {
	cfg := DefaultHealthConfig()
	if windowSize > 0 {
		cfg.WindowSize = windowSize
	}
	if fallbackConsecutive > 0 {
		cfg.FallbackConsecutive = fallbackConsecutive
	}
	if recoveryAgeSecs > 0 {
		cfg.RecoveryAge = time.Duration(recoveryAgeSecs) * time.Second
	}
	if staleFailureRate > 0 {
		cfg.StaleFailureRate = staleFailureRate
	}
	return cfg
}

// providerHealth is the rolling outcome window for one provider.
type providerHealth struct {
	mu sync.Mutex

	outcomes []bool // ring buffer, true = success
	next     int
	filled   int

	consecutiveFailures int
	lastFailure         time.Time
	totalLatency        time.Duration
	calls               int
}

// HealthTracker maintains rolling per-provider health signals. All state is
// advisory; Record never blocks and Label never rejects.
type HealthTracker struct {
	cfg HealthConfig

	mu        sync.RWMutex
	providers map[string]*providerHealth

	nowFunc func() time.Time
}

// NewHealthTracker creates a tracker with the given config.
func NewHealthTracker(cfg HealthConfig) *HealthTracker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.StaleFailureRate <= 0 {
		cfg.StaleFailureRate = 0.3
	}
	if cfg.FallbackConsecutive <= 0 {
		cfg.FallbackConsecutive = 5
	}
	if cfg.RecoveryAge <= 0 {
		cfg.RecoveryAge = 60 * time.Second
	}
	return &HealthTracker{
		cfg:       cfg,
		providers: make(map[string]*providerHealth),
		nowFunc:   time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (h *HealthTracker) WithNow(fn func() time.Time) *HealthTracker {
	h.nowFunc = fn
	return h
}

func (h *HealthTracker) get(name string) *providerHealth {
	h.mu.RLock()
	ph, ok := h.providers[name]
	h.mu.RUnlock()
	if ok {
		return ph
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if ph, ok = h.providers[name]; ok {
		return ph
	}
	ph = &providerHealth{outcomes: make([]bool, h.cfg.WindowSize)}
	h.providers[name] = ph
	return ph
}

// Record adds one call outcome to the provider's rolling window.
func (h *HealthTracker) Record(name string, success bool, latency time.Duration) {
	ph := h.get(name)
	ph.mu.Lock()
	defer ph.mu.Unlock()

	ph.outcomes[ph.next] = success
	ph.next = (ph.next + 1) % len(ph.outcomes)
	if ph.filled < len(ph.outcomes) {
		ph.filled++
	}
	ph.calls++
	ph.totalLatency += latency

	if success {
		ph.consecutiveFailures = 0
	} else {
		ph.consecutiveFailures++
		ph.lastFailure = h.nowFunc()
	}
}

// Label returns the advisory freshness label for a provider. Providers with
// no recorded history are fresh.
func (h *HealthTracker) Label(name string) Freshness {
	h.mu.RLock()
	ph, ok := h.providers[name]
	h.mu.RUnlock()
	if !ok {
		return Fresh
	}

	ph.mu.Lock()
	defer ph.mu.Unlock()

	if ph.consecutiveFailures >= h.cfg.FallbackConsecutive {
		// A quiet period since the last failure demotes fallback to stale
		// so the provider can earn its way back.
		if h.nowFunc().Sub(ph.lastFailure) >= h.cfg.RecoveryAge {
			return Stale
		}
		return Fallback
	}

	if ph.filled == 0 {
		return Fresh
	}
	failures := 0
	for i := 0; i < ph.filled; i++ {
		if !ph.outcomes[i] {
			failures++
		}
	}
	if float64(failures)/float64(ph.filled) >= h.cfg.StaleFailureRate {
		return Stale
	}
	return Fresh
}

// Stats reports windowed call count and average latency for observability.
func (h *HealthTracker) Stats(name string) (calls int, avgLatency time.Duration) {
	h.mu.RLock()
	ph, ok := h.providers[name]
	h.mu.RUnlock()
	if !ok {
		return 0, 0
	}
	ph.mu.Lock()
	defer ph.mu.Unlock()
	if ph.calls == 0 {
		return 0, 0
	}
	return ph.calls, ph.totalLatency / time.Duration(ph.calls)
}

// Labels returns a snapshot of every tracked provider's freshness label.
func (h *HealthTracker) Labels() map[string]Freshness {
	h.mu.RLock()
	names := make([]string, 0, len(h.providers))
	for name := range h.providers {
		names = append(names, name)
	}
	h.mu.RUnlock()

	out := make(map[string]Freshness, len(names))
	for _, name := range names {
		out[name] = h.Label(name)
	}
	return out
}
