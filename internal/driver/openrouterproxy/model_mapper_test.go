package openrouterproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeModels_WhitelistFiltersAndOpenAITokenizerInferred(t *testing.T) {
	raw := []byte(`{"data":[
		{"id":"openai/gpt-4o","context_length":128000},
		{"id":"anthropic/claude-3-opus","context_length":200000}
	]}`)

	m := NewModelMapper([]string{"openai/gpt-4o"})
	models, err := m.NormalizeModels(raw)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "openai/gpt-4o", models[0].ModelID)
	assert.Equal(t, "openai", models[0].Architecture.Tokenizer)
}

func TestNormalizeModels_EmptyWhitelistExposesNothing(t *testing.T) {
	raw := []byte(`{"data":[{"id":"openai/gpt-4o","context_length":128000}]}`)

	m := NewModelMapper(nil)
	models, err := m.NormalizeModels(raw)
	require.NoError(t, err)
	assert.Empty(t, models)
}
