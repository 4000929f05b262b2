package perplexity

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

func TestChatCompletion_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonar-pro", req.Model)
		require.Len(t, req.Messages, 1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "resp-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "The LLC is controlled by Jane Doe."}}],
			"citations": ["https://example.com/filing"],
			"usage": {"prompt_tokens": 120, "completion_tokens": 40}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "Who controls SUNSHINE PLAZA LLC?"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "The LLC is controlled by Jane Doe.", got.Text())
	require.Len(t, got.Citations, 1)
	assert.Equal(t, 40, got.Usage.CompletionTokens)
}

func TestChatCompletion_ModelOverride(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonar", req.Model)
		w.Write([]byte(`{"id": "resp-2", "choices": []}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithModel("sonar"))
	got, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	require.NoError(t, err)
	assert.Empty(t, got.Text())
}

func TestChatCompletion_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})

	require.Error(t, err)
	var unauthorized *resilience.UnauthorizedError
	assert.True(t, errors.As(err, &unauthorized))
}

func TestChatCompletion_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})

	require.Error(t, err)
	var transient *resilience.TransientError
	assert.True(t, errors.As(err, &transient))
}

func TestChatCompletion_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestText_NilSafe(t *testing.T) {
	t.Parallel()
	var r *ChatCompletionResponse
	assert.Empty(t, r.Text())
}
