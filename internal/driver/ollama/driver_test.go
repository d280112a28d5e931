package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
)

func drain(t *testing.T, ch <-chan core.StreamResult) []core.StreamResult {
	t.Helper()
	var out []core.StreamResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestCreateCompletion_SynthesizesFinalChunkSinceOllamaNeverReportsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		io.WriteString(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	d := New(srv.URL, "", srv.Client())
	ch, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "llama3", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 2)
	require.NotNil(t, results[1].Chunk.Usage)
	assert.Equal(t, 0, results[1].Chunk.Usage.TotalTokens)
}

func TestGetModels_CombinesTagsAndShowCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			io.WriteString(w, `{"models":[{"name":"llama3"}]}`)
		case "/api/show":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "llama3", body["name"])
			io.WriteString(w, `{"model_info":{"llama.context_length":8192,"tokenizer.ggml.model":"gpt2"}}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	d := New(srv.URL, "", srv.Client())
	models, err := d.GetModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama3", models[0].ModelID)
	assert.Equal(t, 8192, models[0].ContextLength)
}

func TestGetModels_TagsRequestCarriesBearerWhenAPIKeySet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/tags":
			io.WriteString(w, `{"models":[]}`)
		}
	}))
	defer srv.Close()

	d := New(srv.URL, "secret", srv.Client())
	models, err := d.GetModels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestGetModels_TagsUpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := New(srv.URL, "", srv.Client())
	_, err := d.GetModels(context.Background())
	require.Error(t, err)
	assert.Equal(t, 503, apperr.As(err).Code)
}

func TestGetModel_NotFoundReturns404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			io.WriteString(w, `{"models":[]}`)
		}
	}))
	defer srv.Close()

	d := New(srv.URL, "", srv.Client())
	_, err := d.GetModel(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, 404, apperr.As(err).Code)
}
