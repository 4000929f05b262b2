package enrich

import (
	"sync"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/resilience"
)

// runTrace records per-provider outcomes during one run. A later success
// overrides an earlier failure for the same provider (the data was obtained
// eventually); a failure never downgrades a recorded success.
type runTrace struct {
	mu       sync.Mutex
	order    []string
	outcomes map[string]model.ProviderOutcome
	failStep map[string]model.StepName
}

func newRunTrace() *runTrace {
	return &runTrace{
		outcomes: make(map[string]model.ProviderOutcome),
		failStep: make(map[string]model.StepName),
	}
}

func (t *runTrace) touch(provider string) {
	if _, ok := t.outcomes[provider]; !ok {
		t.order = append(t.order, provider)
	}
}

func (t *runTrace) success(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch(provider)
	t.outcomes[provider] = model.OutcomeSuccess
}

// fallback marks a provider whose contribution is best-effort inference
// rather than record data.
func (t *runTrace) fallback(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch(provider)
	t.outcomes[provider] = model.OutcomeFallback
}

func (t *runTrace) failure(provider string, step model.StepName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch(provider)
	if t.outcomes[provider] == model.OutcomeSuccess || t.outcomes[provider] == model.OutcomeFallback {
		return
	}
	t.outcomes[provider] = model.OutcomeError
	if _, ok := t.failStep[provider]; !ok {
		t.failStep[provider] = step
	}
}

// sources lists every provider that contributed data, in first-use order.
func (t *runTrace) sources() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, p := range t.order {
		if t.outcomes[p] == model.OutcomeSuccess || t.outcomes[p] == model.OutcomeFallback {
			out = append(out, p)
		}
	}
	return out
}

// reports builds the caller-facing provider status list. Freshness comes
// from the advisory health tracker; a successful call against a provider
// labeled stale is reported as stale data.
func (t *runTrace) reports(health *resilience.HealthTracker) []model.ProviderReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.ProviderReport, 0, len(t.order))
	for _, p := range t.order {
		outcome := t.outcomes[p]
		freshness := resilience.Fresh
		if health != nil {
			freshness = health.Label(p)
		}
		if outcome == model.OutcomeSuccess && freshness != resilience.Fresh {
			outcome = model.OutcomeStale
		}

		report := model.ProviderReport{
			Provider:  p,
			Outcome:   outcome,
			Freshness: string(freshness),
		}
		if outcome == model.OutcomeError {
			report.RetryOffered = true
			report.RetryStep = t.failStep[p]
		}
		out = append(out, report)
	}
	return out
}
