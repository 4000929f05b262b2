package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	mu    sync.Mutex
	snaps []map[string]Counter
	fail  bool
}

func (w *captureWriter) WriteUsageSnapshot(_ context.Context, _ time.Time, counters map[string]Counter) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return eris.New("disk full")
	}
	w.snaps = append(w.snaps, counters)
	return nil
}

func (w *captureWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.snaps)
}

func TestJournalFlush(t *testing.T) {
	t.Parallel()
	l := NewLedger(NewMemoryStore(), testRegistry())
	w := &captureWriter{}
	j := NewJournal(l, w)

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)

	l.Record("endato", 3)
	j.Flush()

	require.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	j.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, 3, w.snaps[0]["endato"].Daily)
}

func TestJournalWriteFailureLeavesCountersIntact(t *testing.T) {
	t.Parallel()
	l := NewLedger(NewMemoryStore(), testRegistry())
	w := &captureWriter{fail: true}
	j := NewJournal(l, w)

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)

	l.Record("endato", 7)
	j.Flush()
	time.Sleep(20 * time.Millisecond)
	cancel()
	j.Wait()

	// Persistence failure is absorbed; in-memory counters still gate quota.
	assert.Equal(t, 7, l.store.Get("endato").Daily)
}
