package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testCaller() *Caller {
	return NewCaller(
		NewLimiter(LimiterConfig{MaxInFlight: 2}),
		NewHealthTracker(DefaultHealthConfig()),
		fastRetry(3),
		time.Second,
	)
}

func TestFetch_ReturnsValue(t *testing.T) {
	c := testCaller()
	got := Fetch(context.Background(), c, "endato", "contacts", func(_ context.Context) (*string, error) {
		v := "hello"
		return &v, nil
	})
	if got == nil || *got != "hello" {
		t.Fatalf("expected value, got %v", got)
	}
	if label := c.Health.Label("endato"); label != Fresh {
		t.Errorf("expected fresh after success, got %s", label)
	}
}

func TestFetch_AbsorbsFailure(t *testing.T) {
	c := testCaller()
	var calls int
	got := Fetch(context.Background(), c, "endato", "contacts", func(_ context.Context) (*string, error) {
		calls++
		return nil, NewTransientError(errors.New("down"), 503)
	})
	if got != nil {
		t.Fatalf("expected nil on exhausted retries, got %v", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestFetch_UnauthorizedSingleAttempt(t *testing.T) {
	c := testCaller()
	var calls int
	got := Fetch(context.Background(), c, "attom", "parcel", func(_ context.Context) (*int, error) {
		calls++
		return nil, NewUnauthorizedError(errors.New("bad key"), 403)
	})
	if got != nil {
		t.Fatal("expected nil result")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt for auth failure, got %d", calls)
	}
}

func TestFetch_ConcurrencyCapped(t *testing.T) {
	c := NewCaller(
		NewLimiter(LimiterConfig{MaxInFlight: 2}),
		NewHealthTracker(DefaultHealthConfig()),
		fastRetry(1),
		time.Second,
	)

	var inFlight, maxSeen int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Fetch(context.Background(), c, "opencorp", "search", func(_ context.Context) (*struct{}, error) {
				cur := atomic.AddInt64(&inFlight, 1)
				for {
					prev := atomic.LoadInt64(&maxSeen)
					if cur <= prev || atomic.CompareAndSwapInt64(&maxSeen, prev, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return &struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	if atomic.LoadInt64(&maxSeen) > 2 {
		t.Errorf("per-provider concurrency exceeded cap: %d", maxSeen)
	}
}

func TestFetch_CancelledWhileQueued(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testCaller()
	got := Fetch(ctx, c, "pdl", "person", func(_ context.Context) (*string, error) {
		t.Fatal("fn should not run after cancellation")
		return nil, nil
	})
	if got != nil {
		t.Fatal("expected nil for cancelled context")
	}
}
