package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/cache"
	"github.com/olegische/llmrouter/internal/core"
)

type stubSource struct {
	models []core.ProviderModel
	calls  int
}

func (s *stubSource) GetModels(context.Context) ([]core.ProviderModel, error) {
	s.calls++
	return append([]core.ProviderModel(nil), s.models...), nil
}

func TestCatalog_GetModels_CachesAcrossCalls(t *testing.T) {
	src := &stubSource{models: []core.ProviderModel{{ModelID: "deepseek-chat", Name: "DeepSeek Chat"}}}
	cat := New(cache.NoopCache{}, map[string]ProviderSource{"deepseek": src}, nil)

	ctx := context.Background()
	models, err := cat.GetModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "deepseek/deepseek-chat", models[0].ExternalModelID)

	// NoopCache never hits, so calling again still hits the source — this
	// exercises the miss path, not caching itself (see a real cache.Cache
	// for the hit path, already covered by internal/cache's own tests).
	_, err = cat.GetModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCatalog_GetModel_CaseInsensitive(t *testing.T) {
	src := &stubSource{models: []core.ProviderModel{{ModelID: "deepseek-chat"}}}
	cat := New(cache.NoopCache{}, map[string]ProviderSource{"deepseek": src}, nil)

	model, err := cat.GetModel(context.Background(), "DeepSeek/DeepSeek-Chat")
	require.NoError(t, err)
	assert.Equal(t, "deepseek/deepseek-chat", model.ExternalModelID)
}

func TestCatalog_GetModel_UnknownIs404(t *testing.T) {
	src := &stubSource{models: []core.ProviderModel{{ModelID: "deepseek-chat"}}}
	cat := New(cache.NoopCache{}, map[string]ProviderSource{"deepseek": src}, nil)

	_, err := cat.GetModel(context.Background(), "deepseek/does-not-exist")
	require.Error(t, err)
	assert.Equal(t, 404, apperr.As(err).Code)
}

func TestCatalog_GetModel_DisabledProviderIs403(t *testing.T) {
	cat := New(cache.NoopCache{}, map[string]ProviderSource{}, nil)
	_, err := cat.GetModel(context.Background(), "gigachat/GigaChat-Pro")
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).Code)
}

func TestCatalog_OllamaExternalIDFormat(t *testing.T) {
	src := &stubSource{models: []core.ProviderModel{{ModelID: "llama3"}}}
	cat := New(cache.NoopCache{}, map[string]ProviderSource{"ollama": src}, map[string]func(string) string{
		"ollama": func(modelID string) string { return "ollama@10.0.0.5:11434/" + modelID },
	})

	models, err := cat.GetModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "ollama@10.0.0.5:11434/llama3", models[0].ExternalModelID)
}

func TestNormalize_Idempotent(t *testing.T) {
	cases := []string{
		"  GigaChat  Pro  ",
		"DeepSeek-Chat",
		"---leading-and-trailing---",
		"already-normalized",
		"Model   With    Spaces",
	}
	for _, c := range cases {
		once := Normalize(c)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "Normalize should be idempotent for %q", c)
	}
}

func TestNormalize_ExpectedForm(t *testing.T) {
	assert.Equal(t, "gigachat-pro", Normalize("  GigaChat  Pro  "))
	assert.Equal(t, "deepseek-chat", Normalize("DeepSeek-Chat"))
	assert.Equal(t, "leading-and-trailing", Normalize("---leading-and-trailing---"))
}
