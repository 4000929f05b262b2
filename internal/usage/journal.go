package usage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SnapshotWriter persists usage snapshots. Implemented by the store package;
// failures are logged and dropped so they can never corrupt the in-memory
// counters that gate quota decisions.
type SnapshotWriter interface {
	WriteUsageSnapshot(ctx context.Context, takenAt time.Time, counters map[string]Counter) error
}

// Journal periodically flushes ledger snapshots to a SnapshotWriter on its
// own goroutine with a bounded queue, replacing fire-and-forget writes.
type Journal struct {
	ledger *Ledger
	writer SnapshotWriter
	queue  chan map[string]Counter
	done   chan struct{}
}

// NewJournal creates a journal flushing to w. Start must be called before
// Flush has any effect.
func NewJournal(ledger *Ledger, w SnapshotWriter) *Journal {
	return &Journal{
		ledger: ledger,
		writer: w,
		queue:  make(chan map[string]Counter, 16),
		done:   make(chan struct{}),
	}
}

// Start launches the background writer. It drains queued snapshots until
// ctx is cancelled, then flushes whatever remains in the queue.
func (j *Journal) Start(ctx context.Context) {
	go func() {
		defer close(j.done)
		for {
			select {
			case snap := <-j.queue:
				j.write(ctx, snap)
			case <-ctx.Done():
				for {
					select {
					case snap := <-j.queue:
						j.write(context.Background(), snap)
					default:
						return
					}
				}
			}
		}
	}()
}

// Flush enqueues the current ledger snapshot. If the queue is full the
// snapshot is dropped; the next flush carries the cumulative state anyway.
func (j *Journal) Flush() {
	select {
	case j.queue <- j.ledger.Snapshot():
	default:
		zap.L().Debug("usage: journal queue full, snapshot dropped")
	}
}

// Wait blocks until the background writer has exited after Start's context
// was cancelled.
func (j *Journal) Wait() {
	<-j.done
}

func (j *Journal) write(ctx context.Context, snap map[string]Counter) {
	if j.writer == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := j.writer.WriteUsageSnapshot(writeCtx, time.Now().UTC(), snap); err != nil {
		zap.L().Warn("usage: journal write failed", zap.Error(err))
	}
}
