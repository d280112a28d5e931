package openaicompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOpenAIStyleModels_FallbackDefaults(t *testing.T) {
	raw := []byte(`{"data":[{"id":"m1"}]}`)
	models, err := NormalizeOpenAIStyleModels(raw, ModelListOptions{DefaultTokenizer: "cl100k"})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "m1", models[0].Name)
	assert.Equal(t, 4096, models[0].ContextLength)
	assert.Equal(t, 4096, models[0].Capabilities.MaxCompletionTokens)
	assert.Equal(t, "text->text", models[0].Architecture.Modality)
	assert.Equal(t, "cl100k", models[0].Architecture.Tokenizer)
	assert.False(t, models[0].Capabilities.IsVision)
}

func TestNormalizeOpenAIStyleModels_PrefersTopLevelOverTopProvider(t *testing.T) {
	raw := []byte(`{"data":[{"id":"m1","context_length":8192,"top_provider":{"context_length":32000,"max_completion_tokens":2048}}]}`)
	models, err := NormalizeOpenAIStyleModels(raw, ModelListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8192, models[0].ContextLength)
	assert.Equal(t, 2048, models[0].Capabilities.MaxCompletionTokens)
}

func TestNormalizeOpenAIStyleModels_AllowFiltersToWhitelist(t *testing.T) {
	raw := []byte(`{"data":[{"id":"m1"},{"id":"m2"}]}`)
	models, err := NormalizeOpenAIStyleModels(raw, ModelListOptions{Allow: map[string]bool{"m1": true}})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "m1", models[0].ModelID)
}

func TestNormalizeOpenAIStyleModels_SkipsEmptyID(t *testing.T) {
	raw := []byte(`{"data":[{"id":""},{"id":"m1"}]}`)
	models, err := NormalizeOpenAIStyleModels(raw, ModelListOptions{})
	require.NoError(t, err)
	require.Len(t, models, 1)
}

func TestNormalizeOpenAIStyleModels_VisionModalityDetected(t *testing.T) {
	raw := []byte(`{"data":[{"id":"m1","architecture":{"modality":"image+text->text"}}]}`)
	models, err := NormalizeOpenAIStyleModels(raw, ModelListOptions{})
	require.NoError(t, err)
	assert.True(t, models[0].Capabilities.IsVision)
}

func TestNormalizeOpenAIStyleModels_DefaultTokenizerFuncTakesPrecedence(t *testing.T) {
	raw := []byte(`{"data":[{"id":"anthropic/claude-3"}]}`)
	models, err := NormalizeOpenAIStyleModels(raw, ModelListOptions{
		DefaultTokenizer: "fallback",
		DefaultTokenizerFunc: func(modelID string) string {
			if modelID == "anthropic/claude-3" {
				return "anthropic"
			}
			return "fallback"
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", models[0].Architecture.Tokenizer)
}

func TestIsVisionModality(t *testing.T) {
	assert.True(t, IsVisionModality("image+text->text"))
	assert.False(t, IsVisionModality("text->text"))
}
