package xrouter

import (
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/wire/openaicompat"
)

// ModelMapper normalizes XRouter's OpenRouter-compatible /models response.
// Every model upstream exposes is returned; nothing is whitelist-filtered.
type ModelMapper struct{}

func NewModelMapper() ModelMapper { return ModelMapper{} }

func (ModelMapper) NormalizeModels(raw []byte) ([]core.ProviderModel, error) {
	return openaicompat.NormalizeOpenAIStyleModels(raw, openaicompat.ModelListOptions{
		DefaultTokenizer: "Other",
	})
}

func (ModelMapper) StaticModels() []core.ProviderModel { return nil }
