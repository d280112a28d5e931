package openrouter

import (
	"strings"

	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/wire/openaicompat"
)

// ModelMapper normalizes OpenRouter's /models response, restricted to the
// configured supported-model whitelist. Whitelisted models are always
// marked tool-call-capable, matching the gateway's own guarantee for the
// models it curates.
type ModelMapper struct {
	allow map[string]bool
}

func NewModelMapper(supportedModels []string) ModelMapper {
	allow := make(map[string]bool, len(supportedModels))
	for _, m := range supportedModels {
		allow[m] = true
	}
	return ModelMapper{allow: allow}
}

func (m ModelMapper) NormalizeModels(raw []byte) ([]core.ProviderModel, error) {
	models, err := openaicompat.NormalizeOpenAIStyleModels(raw, openaicompat.ModelListOptions{
		Allow:                m.allow,
		IsToolCalls:          true,
		DefaultTokenizerFunc: defaultTokenizer,
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

func (ModelMapper) StaticModels() []core.ProviderModel { return nil }

func defaultTokenizer(modelID string) string {
	switch {
	case strings.Contains(modelID, "anthropic"):
		return "anthropic"
	case strings.Contains(modelID, "google"):
		return "google"
	default:
		return "unknown"
	}
}
