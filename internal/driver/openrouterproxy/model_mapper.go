// Package openrouterproxy provides the SOCKS5/HTTPS-tunneled OpenRouter
// driver (§4.C4) and its whitelist-filtered model mapper. The wire shape
// is identical to internal/wire/openrouter; only transport and the model
// whitelist differ.
package openrouterproxy

import (
	"strings"

	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/wire/openaicompat"
)

// ModelMapper normalizes the proxy's /models response against its own
// configured whitelist, distinct from the direct OpenRouter provider's.
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
		Allow:            m.allow,
		IsToolCalls:      true,
		DefaultTokenizer: "unknown",
	})
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].Architecture.Tokenizer == "unknown" && strings.Contains(models[i].ModelID, "openai") {
			models[i].Architecture.Tokenizer = "openai"
		}
	}
	return models, nil
}

func (ModelMapper) StaticModels() []core.ProviderModel { return nil }
