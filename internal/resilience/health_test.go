package resilience

import (
	"testing"
	"time"
)

func TestHealthLabel_FreshByDefault(t *testing.T) {
	h := NewHealthTracker(DefaultHealthConfig())
	if got := h.Label("endato"); got != Fresh {
		t.Errorf("unknown provider should be fresh, got %s", got)
	}
}

func TestHealthLabel_StaleOnFailureRate(t *testing.T) {
	h := NewHealthTracker(HealthConfig{WindowSize: 10, StaleFailureRate: 0.3, FallbackConsecutive: 100})

	// 7 successes, 3 failures interleaved so consecutive failures stay low.
	for i := 0; i < 10; i++ {
		h.Record("attom", i%3 != 0, time.Millisecond)
	}
	if got := h.Label("attom"); got != Stale {
		t.Errorf("expected stale at 40%% windowed failures, got %s", got)
	}
}

func TestHealthLabel_FallbackOnConsecutiveFailures(t *testing.T) {
	h := NewHealthTracker(HealthConfig{WindowSize: 20, FallbackConsecutive: 5, RecoveryAge: time.Hour})
	for i := 0; i < 5; i++ {
		h.Record("opencorp", false, time.Millisecond)
	}
	if got := h.Label("opencorp"); got != Fallback {
		t.Errorf("expected fallback after 5 consecutive failures, got %s", got)
	}
}

func TestHealthLabel_FallbackRecoversToStale(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	h := NewHealthTracker(HealthConfig{WindowSize: 20, FallbackConsecutive: 3, RecoveryAge: time.Minute}).
		WithNow(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		h.Record("pdl", false, time.Millisecond)
	}
	if got := h.Label("pdl"); got != Fallback {
		t.Fatalf("expected fallback, got %s", got)
	}

	now = now.Add(2 * time.Minute)
	if got := h.Label("pdl"); got != Stale {
		t.Errorf("expected stale after quiet recovery period, got %s", got)
	}
}

func TestHealthLabel_SuccessResetsConsecutive(t *testing.T) {
	h := NewHealthTracker(HealthConfig{WindowSize: 20, FallbackConsecutive: 3, StaleFailureRate: 0.9, RecoveryAge: time.Hour})
	h.Record("smarty", false, time.Millisecond)
	h.Record("smarty", false, time.Millisecond)
	h.Record("smarty", true, time.Millisecond)
	h.Record("smarty", false, time.Millisecond)
	h.Record("smarty", false, time.Millisecond)
	if got := h.Label("smarty"); got == Fallback {
		t.Error("a success between failures must reset the consecutive count")
	}
}

func TestHealthStats(t *testing.T) {
	h := NewHealthTracker(DefaultHealthConfig())
	h.Record("smarty", true, 10*time.Millisecond)
	h.Record("smarty", true, 30*time.Millisecond)

	calls, avg := h.Stats("smarty")
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if avg != 20*time.Millisecond {
		t.Errorf("expected 20ms average latency, got %v", avg)
	}
}

func TestHealthLabels_Snapshot(t *testing.T) {
	h := NewHealthTracker(DefaultHealthConfig())
	h.Record("a", true, time.Millisecond)
	h.Record("b", true, time.Millisecond)

	labels := h.Labels()
	if len(labels) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(labels))
	}
	if labels["a"] != Fresh || labels["b"] != Fresh {
		t.Errorf("expected fresh labels, got %v", labels)
	}
}
