package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/usage"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dossiers (
	subject_id TEXT PRIMARY KEY,
	dossier    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	status     TEXT NOT NULL,
	state      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS usage_snapshots (
	id       TEXT PRIMARY KEY,
	taken_at DATETIME NOT NULL,
	counters TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_subject_id ON runs(subject_id);
CREATE INDEX IF NOT EXISTS idx_usage_snapshots_taken_at ON usage_snapshots(taken_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDossier upserts the latest dossier for a subject.
func (s *SQLiteStore) SaveDossier(ctx context.Context, d *model.Dossier) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dossier")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dossiers (subject_id, dossier, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(subject_id) DO UPDATE SET dossier = excluded.dossier, created_at = excluded.created_at`,
		d.SubjectID, string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save dossier %s", d.SubjectID)
}

func (s *SQLiteStore) GetDossier(ctx context.Context, subjectID string) (*model.Dossier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT dossier FROM dossiers WHERE subject_id = ?`, subjectID,
	)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dossier %s", subjectID)
	}

	var d model.Dossier
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal dossier")
	}
	return &d, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, state *model.PipelineState, status model.RunStatus) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run state")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, subject_id, status, state, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, state = excluded.state`,
		state.RunID, state.Subject.ID, string(status), string(payload), state.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: save run %s", state.RunID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, status, state, created_at FROM runs WHERE id = ?`, runID,
	)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return rec, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `SELECT id, subject_id, status, state, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, filter.SubjectID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// WriteUsageSnapshot appends one point-in-time copy of the usage counters;
// it satisfies usage.SnapshotWriter.
func (s *SQLiteStore) WriteUsageSnapshot(ctx context.Context, takenAt time.Time, counters map[string]usage.Counter) error {
	payload, err := json.Marshal(counters)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal usage counters")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_snapshots (id, taken_at, counters) VALUES (?, ?, ?)`,
		uuid.New().String(), takenAt.UTC(), string(payload),
	)
	return eris.Wrap(err, "sqlite: write usage snapshot")
}

func (s *SQLiteStore) LatestUsageSnapshot(ctx context.Context) (map[string]usage.Counter, time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT taken_at, counters FROM usage_snapshots ORDER BY taken_at DESC LIMIT 1`,
	)

	var takenAt time.Time
	var payload string
	err := row.Scan(&takenAt, &payload)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, eris.Wrap(err, "sqlite: latest usage snapshot")
	}

	var counters map[string]usage.Counter
	if err := json.Unmarshal([]byte(payload), &counters); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "sqlite: unmarshal usage counters")
	}
	return counters, takenAt, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*RunRecord, error) {
	var rec RunRecord
	var stateJSON string

	err := row.Scan(&rec.RunID, &rec.SubjectID, &rec.Status, &stateJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	rec.State = &model.PipelineState{}
	if err := json.Unmarshal([]byte(stateJSON), rec.State); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run state")
	}
	return &rec, nil
}
