package yandex

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
)

func drain(t *testing.T, ch <-chan core.StreamResult) []core.StreamResult {
	t.Helper()
	var out []core.StreamResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestCreateCompletion_StopsOnFinalStatusWithNoDoneMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
		io.WriteString(w, `data: {"result":{"alternatives":[{"status":"ALTERNATIVE_STATUS_PARTIAL","message":{"role":"assistant","text":"Hi"}}]}}`+"\n\n")
		io.WriteString(w, `data: {"result":{"alternatives":[{"status":"ALTERNATIVE_STATUS_FINAL","message":{"role":"assistant","text":"Hi there"}}],"usage":{"inputTextTokens":"1","completionTokens":"2","totalTokens":"3"}}}`+"\n\n")
		io.WriteString(w, `data: {"result":{"alternatives":[{"status":"ALTERNATIVE_STATUS_FINAL","message":{"role":"assistant","text":"Hi there"}}]}}`+"\n\n")
	}))
	defer srv.Close()

	d := New(srv.URL, "secret", "folder1", srv.Client())
	ch, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "yandexgpt5-pro:latest", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 2)
	require.NotEmpty(t, results[1].Chunk.Choices)
	require.NotNil(t, results[1].Chunk.Choices[0].FinishReason)
	assert.Equal(t, "stop", *results[1].Chunk.Choices[0].FinishReason)
}

func TestCreateCompletion_UnsupportedModelFailsBeforeRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	d := New(srv.URL, "secret", "folder1", srv.Client())
	_, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "bogus-model", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, 400, apperr.As(err).Code)
}

func TestCreateCompletion_UpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := New(srv.URL, "bad-key", "folder1", srv.Client())
	_, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "yandexgpt5-pro:latest", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).Code)
}

func TestGetModel_NotFoundReturns404(t *testing.T) {
	d := New("http://unused", "k", "folder1", http.DefaultClient)
	_, err := d.GetModel(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, 404, apperr.As(err).Code)
}

func TestGetModel_FoundReturnsStaticEntry(t *testing.T) {
	d := New("http://unused", "k", "folder1", http.DefaultClient)
	m, err := d.GetModel(context.Background(), "yandexgpt5-pro:latest")
	require.NoError(t, err)
	assert.Equal(t, "yandexgpt5-pro:latest", m.ModelID)
}
