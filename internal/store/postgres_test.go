package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/usage"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresSaveDossier(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO dossiers .+ ON CONFLICT \(subject_id\) DO UPDATE`).
		WithArgs("sub-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveDossier(context.Background(), &model.Dossier{SubjectID: "sub-1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDossier(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	d := &model.Dossier{SubjectID: "sub-1", Summary: "summary text"}
	payload, err := json.Marshal(d)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT dossier FROM dossiers WHERE subject_id`).
		WithArgs("sub-1").
		WillReturnRows(pgxmock.NewRows([]string{"dossier"}).AddRow(payload))

	got, err := s.GetDossier(context.Background(), "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "summary text", got.Summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDossierMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT dossier FROM dossiers WHERE subject_id`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetDossier(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	state := model.NewPipelineState("run-1", model.Subject{ID: "sub-1", Name: "ACME LLC"})

	mock.ExpectExec(`INSERT INTO runs .+ ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("run-1", "sub-1", string(model.RunComplete), pgxmock.AnyArg(), state.StartedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveRun(context.Background(), state, model.RunComplete)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	state := model.NewPipelineState("run-1", model.Subject{ID: "sub-1"})
	stateJSON, err := json.Marshal(state)
	require.NoError(t, err)
	created := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, subject_id, status, state, created_at FROM runs WHERE id`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject_id", "status", "state", "created_at"}).
			AddRow("run-1", "sub-1", string(model.RunPartial), stateJSON, created))

	rec, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunPartial, rec.Status)
	assert.Equal(t, "sub-1", rec.SubjectID)
	require.NotNil(t, rec.State)
	assert.Equal(t, "run-1", rec.State.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, subject_id, status, state, created_at FROM runs WHERE id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	state := model.NewPipelineState("run-1", model.Subject{ID: "sub-1"})
	stateJSON, err := json.Marshal(state)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, subject_id, status, state, created_at FROM runs WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(string(model.RunComplete), 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject_id", "status", "state", "created_at"}).
			AddRow("run-1", "sub-1", string(model.RunComplete), stateJSON, time.Now().UTC()))

	out, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunComplete})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "run-1", out[0].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriteUsageSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO usage_snapshots`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	counters := map[string]usage.Counter{
		"attom": {Daily: 3, DailyKey: "2026-08-28", Monthly: 40, MonthlyKey: "2026-08"},
	}
	err := s.WriteUsageSnapshot(context.Background(), time.Now(), counters)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestUsageSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	counters := map[string]usage.Counter{
		"attom": {Daily: 3, DailyKey: "2026-08-28", Monthly: 40, MonthlyKey: "2026-08"},
	}
	payload, err := json.Marshal(counters)
	require.NoError(t, err)
	taken := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT taken_at, counters FROM usage_snapshots ORDER BY taken_at DESC LIMIT 1`).
		WillReturnRows(pgxmock.NewRows([]string{"taken_at", "counters"}).AddRow(taken, payload))

	got, takenAt, err := s.LatestUsageSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got["attom"].Daily)
	assert.True(t, takenAt.Equal(taken))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestUsageSnapshotEmpty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT taken_at, counters FROM usage_snapshots ORDER BY taken_at DESC LIMIT 1`).
		WillReturnError(pgx.ErrNoRows)

	got, takenAt, err := s.LatestUsageSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, takenAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
