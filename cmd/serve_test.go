package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/enrich"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/provider"
	"github.com/sells-group/dossier-cli/internal/resilience"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/internal/usage"
)

// newTestEnv wires a pipeline with no provider clients over a throwaway
// SQLite store. Provider steps are skipped, so runs come back partial, which
// is all the router tests need.
func newTestEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	registry := provider.NewRegistry(provider.DefaultDescriptors(), nil)
	ledger := usage.NewLedger(usage.NewMemoryStore(), registry)
	enforcer := usage.NewEnforcer(ledger, nil)
	caller := resilience.NewCaller(nil, nil, resilience.RetryConfig{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
	}, time.Second)

	p := enrich.New(nil, nil, nil, nil, nil, nil, nil, enforcer, caller, st)

	return &pipelineEnv{
		Pipeline: p,
		Store:    st,
		Ledger:   ledger,
		Registry: registry,
		Journal:  usage.NewJournal(ledger, nil),
	}
}

func TestServeHealth(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeEnrichValidation(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing name", `{"id":"sub-1"}`},
		{"missing id", `{"name":"ACME LLC"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/enrich", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServeEnrichAndLookup(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	body := `{"id":"sub-1","name":"SUNSHINE PLAZA LLC","street":"501 E Kennedy Blvd","city":"Tampa","state":"FL","zip":"33602"}`
	resp, err := http.Post(srv.URL+"/enrich", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result enrich.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, model.RunPartial, result.Status)

	// The run and dossier should be retrievable afterwards.
	runResp, err := http.Get(srv.URL + "/runs/" + result.RunID)
	require.NoError(t, err)
	defer runResp.Body.Close()
	assert.Equal(t, http.StatusOK, runResp.StatusCode)

	dosResp, err := http.Get(srv.URL + "/dossiers/sub-1")
	require.NoError(t, err)
	defer dosResp.Body.Close()
	assert.Equal(t, http.StatusOK, dosResp.StatusCode)

	listResp, err := http.Get(srv.URL + "/runs?status=partial")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var records []store.RunRecord
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, result.RunID, records[0].RunID)
}

func TestServeRunNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/no-such-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeDossierNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dossiers/no-such-subject")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeUsage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.Ledger.Record("attom", 2)

	srv := httptest.NewServer(newRouter(env))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/usage")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]struct {
		Counter  usage.Counter `json:"counter"`
		SpendUSD float64       `json:"spend_usd"`
		State    string        `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Contains(t, out, "attom")
	assert.Equal(t, 2, out["attom"].Counter.Daily)
	assert.Equal(t, "ok", out["attom"].State)
}
