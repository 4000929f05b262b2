package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/db"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/usage"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"save_dossier": `INSERT INTO dossiers (subject_id, dossier, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (subject_id) DO UPDATE SET dossier = EXCLUDED.dossier, created_at = EXCLUDED.created_at`,
	"get_dossier": `SELECT dossier FROM dossiers WHERE subject_id = $1`,
	"save_run": `INSERT INTO runs (id, subject_id, status, state, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, state = EXCLUDED.state`,
	"get_run":        `SELECT id, subject_id, status, state, created_at FROM runs WHERE id = $1`,
	"write_snapshot": `INSERT INTO usage_snapshots (id, taken_at, counters) VALUES ($1, $2, $3)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Test hook for pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS dossiers (
	subject_id TEXT PRIMARY KEY,
	dossier    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	status     TEXT NOT NULL,
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_snapshots (
	id       TEXT PRIMARY KEY,
	taken_at TIMESTAMPTZ NOT NULL,
	counters JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_subject_id ON runs(subject_id);
CREATE INDEX IF NOT EXISTS idx_usage_snapshots_taken_at ON usage_snapshots(taken_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveDossier(ctx context.Context, d *model.Dossier) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dossier")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dossiers (subject_id, dossier, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (subject_id) DO UPDATE SET dossier = EXCLUDED.dossier, created_at = EXCLUDED.created_at`,
		d.SubjectID, payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save dossier %s", d.SubjectID)
}

func (s *PostgresStore) GetDossier(ctx context.Context, subjectID string) (*model.Dossier, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT dossier FROM dossiers WHERE subject_id = $1`, subjectID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get dossier %s", subjectID)
	}

	var d model.Dossier
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal dossier")
	}
	return &d, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, state *model.PipelineState, status model.RunStatus) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run state")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, subject_id, status, state, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, state = EXCLUDED.state`,
		state.RunID, state.Subject.ID, string(status), payload, state.StartedAt,
	)
	return eris.Wrapf(err, "postgres: save run %s", state.RunID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	var stateJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, status, state, created_at FROM runs WHERE id = $1`, runID,
	).Scan(&rec.RunID, &rec.SubjectID, &rec.Status, &stateJSON, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	rec.State = &model.PipelineState{}
	if err := json.Unmarshal(stateJSON, rec.State); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run state")
	}
	return &rec, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `SELECT id, subject_id, status, state, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		query += ` AND subject_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var stateJSON []byte
		if err := rows.Scan(&rec.RunID, &rec.SubjectID, &rec.Status, &stateJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		rec.State = &model.PipelineState{}
		if err := json.Unmarshal(stateJSON, rec.State); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run state")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) WriteUsageSnapshot(ctx context.Context, takenAt time.Time, counters map[string]usage.Counter) error {
	payload, err := json.Marshal(counters)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal usage counters")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO usage_snapshots (id, taken_at, counters) VALUES ($1, $2, $3)`,
		uuid.New().String(), takenAt.UTC(), payload,
	)
	return eris.Wrap(err, "postgres: write usage snapshot")
}

func (s *PostgresStore) LatestUsageSnapshot(ctx context.Context) (map[string]usage.Counter, time.Time, error) {
	var takenAt time.Time
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT taken_at, counters FROM usage_snapshots ORDER BY taken_at DESC LIMIT 1`,
	).Scan(&takenAt, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, eris.Wrap(err, "postgres: latest usage snapshot")
	}

	var counters map[string]usage.Counter
	if err := json.Unmarshal(payload, &counters); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "postgres: unmarshal usage counters")
	}
	return counters, takenAt, nil
}

