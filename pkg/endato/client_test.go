package endato

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/resilience"
)

func TestContactSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Contact/Enrich", r.URL.Path)
		assert.Equal(t, "key-name", r.Header.Get("galaxy-ap-name"))
		assert.Equal(t, "key-value", r.Header.Get("galaxy-ap-password"))
		assert.Equal(t, "DevAPIContactEnrich", r.Header.Get("galaxy-search-type"))

		var req ContactSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Jane Doe", req.Name)
		assert.Equal(t, "Tampa", req.City)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"phones": [{"number": "(813) 555-0101", "type": "mobile", "is_connected": true, "name_match_score": 0.92, "address_match_score": 0.85, "last_reported_date": "2026-05-01"}],
			"emails": [{"address": "jane@example.com", "is_validated": true, "name_match_score": 0.9, "address_match_score": 0.7, "last_reported_date": "2026-04-12"}]
		}`))
	}))
	defer srv.Close()

	client := NewClient("key-name", "key-value", WithBaseURL(srv.URL))
	got, err := client.ContactSearch(context.Background(), ContactSearchRequest{
		Name: "Jane Doe", City: "Tampa", State: "FL",
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Phones, 1)
	assert.Equal(t, "(813) 555-0101", got.Phones[0].Number)
	assert.True(t, got.Phones[0].IsConnected)
	require.Len(t, got.Emails, 1)
	assert.Equal(t, "jane@example.com", got.Emails[0].Address)
}

func TestContactSearch_EmptyResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"phones": [], "emails": []}`))
	}))
	defer srv.Close()

	client := NewClient("n", "v", WithBaseURL(srv.URL))
	got, err := client.ContactSearch(context.Background(), ContactSearchRequest{Name: "Nobody"})

	require.NoError(t, err)
	assert.Empty(t, got.Phones)
	assert.Empty(t, got.Emails)
}

func TestContactSearch_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("n", "bad", WithBaseURL(srv.URL))
	_, err := client.ContactSearch(context.Background(), ContactSearchRequest{Name: "Jane Doe"})

	require.Error(t, err)
	var unauthorized *resilience.UnauthorizedError
	assert.True(t, errors.As(err, &unauthorized))
}

func TestContactSearch_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("n", "v", WithBaseURL(srv.URL))
	_, err := client.ContactSearch(context.Background(), ContactSearchRequest{Name: "Jane Doe"})

	require.Error(t, err)
	var transient *resilience.TransientError
	assert.True(t, errors.As(err, &transient))
}

func TestContactSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("n", "v", WithBaseURL(srv.URL))
	_, err := client.ContactSearch(context.Background(), ContactSearchRequest{Name: "Jane Doe"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}
