package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/authz"
	"github.com/olegische/llmrouter/internal/cache"
	"github.com/olegische/llmrouter/internal/catalog"
	"github.com/olegische/llmrouter/internal/chatservice"
	"github.com/olegische/llmrouter/internal/config"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/metrics"
)

type stubProviderSource struct {
	models []core.ProviderModel
}

func (s stubProviderSource) GetModels(context.Context) ([]core.ProviderModel, error) {
	return s.models, nil
}

func newTestServer(t *testing.T, cfg *config.Config, az authz.Chain) *Server {
	t.Helper()
	cat := catalog.New(cache.NoopCache{}, map[string]catalog.ProviderSource{
		"deepseek": stubProviderSource{models: []core.ProviderModel{
			{ModelID: "deepseek-chat", ExternalModelID: "deepseek/deepseek-chat", ProviderID: "deepseek", Name: "DeepSeek Chat"},
		}},
	}, nil)
	return New(cfg, &chatservice.Service{}, cat, az, metrics.NewUnregistered(nil))
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &config.Config{}, authz.Chain{User: authz.AllowAllAuthorizer{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleModels_NativeShape(t *testing.T) {
	s := newTestServer(t, &config.Config{}, authz.Chain{User: authz.AllowAllAuthorizer{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out modelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "deepseek/deepseek-chat", out.Data[0].ID)
}

func TestHandleModels_OpenAIShape(t *testing.T) {
	cfg := &config.Config{}
	cfg.Features.OpenAICompatible = true
	s := newTestServer(t, cfg, authz.Chain{User: authz.AllowAllAuthorizer{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out openAIModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "list", out.Object)
	assert.Equal(t, "deepseek/deepseek-chat", out.Data[0].ID)
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	s := newTestServer(t, &config.Config{}, authz.Chain{User: authz.AllowAllAuthorizer{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_RejectedToken(t *testing.T) {
	s := newTestServer(t, &config.Config{}, authz.Chain{
		User: stubAuthorizer{intro: authz.Introspection{Active: false}},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type stubAuthorizer struct {
	intro authz.Introspection
	err   error
}

func (s stubAuthorizer) Introspect(context.Context, string) (authz.Introspection, error) {
	return s.intro, s.err
}

func TestRequireAuth_TransportErrorIsUnavailable(t *testing.T) {
	s := newTestServer(t, &config.Config{}, authz.Chain{
		User: stubAuthorizer{err: assert.AnError},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer any-token")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
