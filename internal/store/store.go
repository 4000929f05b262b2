// Package store persists dossiers, pipeline runs, and usage snapshots
// behind a driver-agnostic interface with SQLite and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/usage"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	SubjectID string          `json:"subject_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// RunRecord is a persisted pipeline run.
type RunRecord struct {
	RunID     string               `json:"run_id"`
	SubjectID string               `json:"subject_id"`
	Status    model.RunStatus      `json:"status"`
	State     *model.PipelineState `json:"state"`
	CreatedAt time.Time            `json:"created_at"`
}

// Store defines the persistence interface for the enrichment pipeline. It
// also acts as the usage journal's snapshot writer.
type Store interface {
	// Dossiers
	SaveDossier(ctx context.Context, d *model.Dossier) error
	GetDossier(ctx context.Context, subjectID string) (*model.Dossier, error)

	// Runs
	SaveRun(ctx context.Context, state *model.PipelineState, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)

	// Usage snapshots
	WriteUsageSnapshot(ctx context.Context, takenAt time.Time, counters map[string]usage.Counter) error
	LatestUsageSnapshot(ctx context.Context) (map[string]usage.Counter, time.Time, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
