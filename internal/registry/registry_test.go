package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"deepseek": {Enabled: true, APIKey: "sk-ds", BaseURL: "https://api.deepseek.com"},
			"gigachat": {Enabled: false},
			"yandex":   {Enabled: true, APIKey: "ya-key", FolderID: "b1gfolder"},
			"ollama": {
				Enabled:  true,
				BaseURLs: []string{"http://10.0.0.5:11434", "http://10.0.0.6:11434"},
				APIKeys:  []string{"key-a", "key-b"},
			},
		},
	}
}

func TestResolve_KnownEnabledProvider(t *testing.T) {
	r := New(testConfig(), "")
	binding, modelID, err := r.Resolve("deepseek/deepseek-chat")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", binding.ProviderID)
	assert.Equal(t, "deepseek-chat", modelID)
	assert.Equal(t, "sk-ds", binding.Credentials.APIKey)
}

func TestResolve_DisabledProviderIs403(t *testing.T) {
	r := New(testConfig(), "")
	_, _, err := r.Resolve("gigachat/GigaChat-Pro")
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).Code)
}

func TestResolve_UnknownProviderIs400(t *testing.T) {
	r := New(testConfig(), "")
	_, _, err := r.Resolve("made-up/model-x")
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).Code)
}

func TestResolve_MalformedIs400(t *testing.T) {
	r := New(testConfig(), "")
	_, _, err := r.Resolve("no-slash-here")
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).Code)
}

func TestResolve_YandexRequiresFolderID(t *testing.T) {
	cfg := testConfig()
	cfg.Providers["yandex"] = config.ProviderConfig{Enabled: true, APIKey: "ya-key"}
	r := New(cfg, "")
	_, _, err := r.Resolve("yandex/yandexgpt")
	require.Error(t, err)
	assert.Equal(t, 500, apperr.As(err).Code)
}

func TestResolve_YandexFillsFolderIDParameter(t *testing.T) {
	r := New(testConfig(), "")
	binding, modelID, err := r.Resolve("yandex/yandexgpt")
	require.NoError(t, err)
	assert.Equal(t, "yandexgpt", modelID)
	assert.Equal(t, "b1gfolder", binding.Parameters["folder_id"])
}

func TestResolve_OllamaAtForm(t *testing.T) {
	r := New(testConfig(), "")
	binding, modelID, err := r.Resolve("ollama@10.0.0.6:11434/llama3")
	require.NoError(t, err)
	assert.Equal(t, "llama3", modelID)
	assert.Equal(t, "http://10.0.0.6:11434", binding.BaseURL)
	assert.Equal(t, "key-b", binding.Credentials.APIKey)
}

func TestResolve_OllamaMalformedIs400(t *testing.T) {
	r := New(testConfig(), "")
	_, _, err := r.Resolve("ollama@missing-model")
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).Code)
}

func TestResolve_OpenAICompatibleFallback(t *testing.T) {
	r := New(testConfig(), "deepseek")
	binding, modelID, err := r.Resolve("whatever-model-name")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", binding.ProviderID)
	assert.Equal(t, "whatever-model-name", modelID)
}

func TestListEnabledProviders(t *testing.T) {
	r := New(testConfig(), "")
	enabled := r.ListEnabledProviders()
	assert.True(t, enabled["deepseek"])
	assert.True(t, enabled["yandex"])
	assert.True(t, enabled["ollama"])
	assert.False(t, enabled["gigachat"])
}
