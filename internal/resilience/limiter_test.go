package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_CapsConcurrency(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxInFlight: 2})

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "attom")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("expected at most 2 in flight, saw %d", p)
	}
}

func TestLimiter_PerProviderIsolation(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxInFlight: 1})

	release1, err := l.Acquire(context.Background(), "attom")
	if err != nil {
		t.Fatal(err)
	}
	defer release1()

	// A different provider must not contend with attom's slot.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	release2, err := l.Acquire(ctx, "endato")
	if err != nil {
		t.Fatalf("expected independent slot for endato, got %v", err)
	}
	release2()
}

func TestLimiter_CancelledContext(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxInFlight: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx, "attom"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestLimiter_CancelledWhileQueued(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxInFlight: 1})

	release, err := l.Acquire(context.Background(), "attom")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "attom"); err == nil {
		t.Fatal("expected timeout while queued behind held slot")
	}
}
