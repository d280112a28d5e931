package openaicompat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/wire/deepseek"
)

func drain(t *testing.T, ch <-chan core.StreamResult) []core.StreamResult {
	t.Helper()
	var out []core.StreamResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestCreateCompletion_StreamsChunksUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n")
		io.WriteString(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":1,\"completion_tokens\":1,\"total_tokens\":2}}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	d := New("deepseek", srv.URL, "test-key", srv.Client(), deepseek.New(), deepseek.NewModelMapper(), false, nil)
	ch, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "deepseek-chat", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 2)
	assert.Equal(t, "hi", results[0].Chunk.Choices[0].Delta.Content)
	require.NotNil(t, results[1].Chunk.Choices[0].FinishReason)
	assert.Equal(t, "stop", *results[1].Chunk.Choices[0].FinishReason)
}

func TestCreateCompletion_SynthesizesFinalChunkWhenNoUsageSeen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	d := New("ollama", srv.URL, "", srv.Client(), deepseek.New(), deepseek.NewModelMapper(), true, nil)
	ch, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "m", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 2)
	require.NotNil(t, results[1].Chunk.Usage)
	assert.Equal(t, 0, results[1].Chunk.Usage.TotalTokens)
}

func TestCreateCompletion_UpstreamErrorStatusSurfacesImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"rate limited"}`)
	}))
	defer srv.Close()

	d := New("deepseek", srv.URL, "k", srv.Client(), deepseek.New(), deepseek.NewModelMapper(), false, nil)
	_, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "m", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.Error(t, err)
	assert.Equal(t, 429, apperr.As(err).Code)
}

func TestCreateCompletion_MidStreamErrorFrameTerminatesStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `data: {"error":{"message":"unsupported_country_region_territory","code":451,"type":"geo"}}`+"\n\n")
	}))
	defer srv.Close()

	d := New("openrouter", srv.URL, "k", srv.Client(), deepseek.New(), deepseek.NewModelMapper(), false, nil)
	ch, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "m", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Equal(t, http.StatusForbidden, apperr.As(results[0].Err).Code)
}

func TestGetModels_PrefersStaticListWhenAvailable(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	d := New("deepseek", srv.URL, "k", srv.Client(), deepseek.New(), deepseek.NewModelMapper(), false, nil)
	models, err := d.GetModels(context.Background())
	require.NoError(t, err)
	assert.False(t, called)
	assert.Len(t, models, 2)
}

func TestGetModel_NotFoundReturns404(t *testing.T) {
	d := New("deepseek", "http://unused", "k", http.DefaultClient, deepseek.New(), deepseek.NewModelMapper(), false, nil)
	_, err := d.GetModel(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, 404, apperr.As(err).Code)
}
