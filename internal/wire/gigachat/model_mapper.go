package gigachat

import (
	"encoding/json"

	"github.com/olegische/llmrouter/internal/core"
)

var modelMeta = map[string]struct {
	description   string
	contextLength int
	maxCompletion int
}{
	"GigaChat": {
		description:   "A lightweight model for simple tasks requiring maximum speed.",
		contextLength: 32768, maxCompletion: 4096,
	},
	"GigaChat-2": {
		description:   "A lightweight model for simple tasks requiring maximum speed.",
		contextLength: 131072, maxCompletion: 4096,
	},
	"GigaChat-Pro": {
		description:   "An advanced model for complex tasks requiring creativity and better adherence to instructions.",
		contextLength: 32768, maxCompletion: 4096,
	},
	"GigaChat-2-Pro": {
		description:   "An advanced model for complex tasks requiring creativity and better adherence to instructions.",
		contextLength: 131072, maxCompletion: 4096,
	},
	"GigaChat-Max": {
		description:   "A premium model for the most demanding tasks, requiring maximum precision, creativity, and context understanding.",
		contextLength: 32768, maxCompletion: 8192,
	},
	"GigaChat-2-Max": {
		description:   "A premium model for the most demanding tasks, requiring maximum precision, creativity, and context understanding.",
		contextLength: 131072, maxCompletion: 8192,
	},
}

// ModelMapper normalizes GigaChat's /models response against a known-model
// table; GigaChat-Plus and anything else unrecognized is skipped.
type ModelMapper struct{}

func NewModelMapper() ModelMapper { return ModelMapper{} }

func (ModelMapper) NormalizeModels(raw []byte) ([]core.ProviderModel, error) {
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}

	var out []core.ProviderModel
	for _, m := range list.Data {
		meta, ok := modelMeta[m.ID]
		if !ok {
			continue
		}
		out = append(out, core.ProviderModel{
			ModelID:       m.ID,
			Name:          m.ID,
			Description:   meta.description,
			ContextLength: meta.contextLength,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "gigachat"},
			Capabilities: core.Capabilities{
				ContextLength:       meta.contextLength,
				MaxCompletionTokens: meta.maxCompletion,
				IsToolCalls:         true,
			},
		})
	}
	return out, nil
}

func (ModelMapper) StaticModels() []core.ProviderModel { return nil }
