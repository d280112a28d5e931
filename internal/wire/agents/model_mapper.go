// Package agents provides the wire and model mappers for the in-house
// "Agents" provider — an OpenAI-compatible upstream with a hard-coded
// model list (no /models endpoint of its own).
package agents

import (
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/wire/openaicompat"
)

// Mapper is the Agents wire mapper: plain OpenAI shape, no extras.
type Mapper struct {
	openaicompat.Mapper
}

func New() Mapper {
	return Mapper{openaicompat.Mapper{ReasoningStyle: "field"}}
}

// ModelMapper returns the Agents provider's fixed model list.
type ModelMapper struct{}

func NewModelMapper() ModelMapper { return ModelMapper{} }

func (ModelMapper) NormalizeModels(raw []byte) ([]core.ProviderModel, error) {
	return ModelMapper{}.StaticModels(), nil
}

func (ModelMapper) StaticModels() []core.ProviderModel {
	return []core.ProviderModel{
		{
			ModelID:       "deepseek-r1:70b-32k",
			Name:          "DeepSeek R1 70B (32K ctx)",
			Description:   "DeepSeek R1 70B is a powerful large language model with extended context length of 32K tokens. It excels at complex reasoning, coding, and analysis tasks.",
			ContextLength: 32768,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "llama"},
			Capabilities:  core.Capabilities{ContextLength: 32768, MaxCompletionTokens: 4096},
		},
		{
			ModelID:       "qwen2.5-coder:32b-instruct-q8_0-32k",
			Name:          "Qwen 2.5 Coder 32B (32K ctx)",
			Description:   "Qwen 2.5 Coder 32B is a specialized coding model with extended context length of 32K tokens. It excels at programming tasks across multiple languages and frameworks.",
			ContextLength: 32768,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "qwen2"},
			Capabilities:  core.Capabilities{ContextLength: 32768, MaxCompletionTokens: 4096},
		},
		{
			ModelID:       "llama3.2-vision:90b-32k",
			Name:          "Llama 3.2-Vision 90B (32K ctx)",
			Description:   "Llama 3.2-Vision 90B is a powerful multimodal model that excels at visual recognition, image reasoning, captioning, and answering questions about images.",
			ContextLength: 32768,
			Architecture:  core.Architecture{Modality: "image+text->text", Tokenizer: "llama"},
			Capabilities:  core.Capabilities{ContextLength: 32768, MaxCompletionTokens: 4096, IsVision: true},
		},
	}
}
