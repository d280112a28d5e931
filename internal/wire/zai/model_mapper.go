package zai

import "github.com/olegische/llmrouter/internal/core"

type zaiModelSpec struct {
	modelID       string
	name          string
	description   string
	contextLength int
	maxCompletion int
	isVision      bool
}

// zaiModels is Z.AI's published model list, kept static since Z.AI exposes
// no /models endpoint.
var zaiModels = []zaiModelSpec{
	{"glm-5", "GLM-5", "Flagship foundation model for agentic engineering", 131072, 131072, false},
	{"glm-4.7", "GLM-4.7", "Advanced GLM-4.7 series model", 131072, 131072, false},
	{"glm-4.7-flash", "GLM-4.7 Flash", "Fast GLM-4.7 model", 131072, 131072, false},
	{"glm-4.7-flashx", "GLM-4.7 FlashX", "Ultra-fast GLM-4.7 model", 131072, 131072, false},
	{"glm-4.6", "GLM-4.6", "GLM-4.6 text model", 131072, 131072, false},
	{"glm-4.5", "GLM-4.5", "GLM-4.5 text model", 98304, 98304, false},
	{"glm-4.5-air", "GLM-4.5 Air", "Lightweight GLM-4.5 model", 98304, 98304, false},
	{"glm-4.5-x", "GLM-4.5 X", "Extended GLM-4.5 model", 98304, 98304, false},
	{"glm-4.5-airx", "GLM-4.5 AirX", "Lightweight extended GLM-4.5 model", 98304, 98304, false},
	{"glm-4.5-flash", "GLM-4.5 Flash", "Fast GLM-4.5 model", 98304, 98304, false},
	{"glm-4-32b-0414-128k", "GLM-4 32B 128K", "GLM-4 32B with 128K context", 131072, 16384, false},
	{"glm-4.6v", "GLM-4.6V", "Multimodal vision model with 128K context", 131072, 32768, true},
	{"glm-4.6v-flash", "GLM-4.6V Flash", "Fast multimodal vision model", 131072, 32768, true},
	{"glm-4.6v-flashx", "GLM-4.6V FlashX", "Ultra-fast multimodal vision model", 131072, 32768, true},
	{"glm-4.5v", "GLM-4.5V", "Multimodal vision model", 98304, 16384, true},
	{"autoglm-phone-multilingual", "AutoGLM Phone Multilingual", "Mobile intelligent assistant model", 4096, 4096, true},
}

// ModelMapper returns Z.AI's hard-coded model list — Z.AI has no models
// API.
type ModelMapper struct{}

func NewModelMapper() ModelMapper { return ModelMapper{} }

func (ModelMapper) NormalizeModels(raw []byte) ([]core.ProviderModel, error) {
	return ModelMapper{}.StaticModels(), nil
}

func (ModelMapper) StaticModels() []core.ProviderModel {
	out := make([]core.ProviderModel, 0, len(zaiModels))
	for _, m := range zaiModels {
		modality := "text->text"
		if m.isVision {
			modality = "text->image"
		}
		out = append(out, core.ProviderModel{
			ModelID:       m.modelID,
			Name:          m.name,
			Description:   m.description,
			ContextLength: m.contextLength,
			Architecture:  core.Architecture{Modality: modality, Tokenizer: "glm"},
			Capabilities: core.Capabilities{
				ContextLength:       m.contextLength,
				MaxCompletionTokens: m.maxCompletion,
				IsToolCalls:         true,
				IsVision:            m.isVision,
			},
		})
	}
	return out
}
