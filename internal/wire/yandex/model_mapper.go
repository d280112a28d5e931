package yandex

import "github.com/olegische/llmrouter/internal/core"

// ModelMapper hard-codes Yandex's model list — Yandex exposes no models
// API.
type ModelMapper struct{}

func NewModelMapper() ModelMapper { return ModelMapper{} }

func (ModelMapper) NormalizeModels(raw []byte) ([]core.ProviderModel, error) {
	return ModelMapper{}.StaticModels(), nil
}

func (ModelMapper) StaticModels() []core.ProviderModel {
	return []core.ProviderModel{
		{
			ModelID:       "yandexgpt5-pro:latest",
			Name:          "YandexGPT5 Pro",
			Description:   "YandexGPT Pro 5 model with 32K context window.",
			ContextLength: 32768,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "yandex"},
			Capabilities:  core.Capabilities{ContextLength: 32768, MaxCompletionTokens: 4096, IsToolCalls: true},
		},
		{
			ModelID:       "yandexgpt5.1-pro:rc",
			Name:          "YandexGPT Pro 5.1",
			Description:   "YandexGPT Pro 5.1 RC model with 32K context window.",
			ContextLength: 32768,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "yandex"},
			Capabilities:  core.Capabilities{ContextLength: 32768, MaxCompletionTokens: 4096, IsToolCalls: true},
		},
		{
			ModelID:       "yandexgpt-lite5:latest",
			Name:          "YandexGPT Lite 5",
			Description:   "YandexGPT Lite 5 model with 32K context window.",
			ContextLength: 32768,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "yandex"},
			Capabilities:  core.Capabilities{ContextLength: 32768, MaxCompletionTokens: 4096},
		},
		{
			ModelID:       "aliceai-llm:latest",
			Name:          "Alice AI LLM",
			Description:   "Alice AI LLM text generation model.",
			ContextLength: 32768,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: "yandex"},
			Capabilities:  core.Capabilities{ContextLength: 32768, MaxCompletionTokens: 4096},
		},
	}
}
