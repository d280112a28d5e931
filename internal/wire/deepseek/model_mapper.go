package deepseek

import "github.com/olegische/llmrouter/internal/core"

// ModelMapper hard-codes metadata for DeepSeek's two supported models —
// DeepSeek has no model-metadata endpoint worth trusting, so capability
// data (context length, reasoning support) is known statically instead of
// parsed from the /models list.
type ModelMapper struct{}

func NewModelMapper() ModelMapper { return ModelMapper{} }

func (ModelMapper) NormalizeModels(raw []byte) ([]core.ProviderModel, error) {
	return ModelMapper{}.StaticModels(), nil
}

func (ModelMapper) StaticModels() []core.ProviderModel {
	return []core.ProviderModel{
		{
			ModelID:       "deepseek-chat",
			Name:          "DeepSeek: DeepSeek V3",
			Description:   "A versatile chat model with strong general capabilities and extended context length.",
			ContextLength: 65536,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "deepseek"},
			Capabilities:  core.Capabilities{ContextLength: 65536, MaxCompletionTokens: 8192, IsToolCalls: true},
		},
		{
			ModelID:       "deepseek-reasoner",
			Name:          "DeepSeek: DeepSeek R1",
			Description:   "An advanced reasoning model optimized for complex problem-solving with chain-of-thought capabilities.",
			ContextLength: 65536,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "deepseek"},
			Capabilities:  core.Capabilities{ContextLength: 65536, MaxCompletionTokens: 8192, IsToolCalls: true},
		},
	}
}
