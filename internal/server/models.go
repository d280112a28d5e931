package server

import (
	"encoding/json"
	"net/http"
)

// openAIModel is one entry of the OpenAI-compatible /v1/models listing.
type openAIModel struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type openAIModelsResponse struct {
	Object string        `json:"object"`
	Data   []openAIModel `json:"data"`
}

// modelPricing is always zeroed: the catalog doesn't carry per-token
// pricing, only the billing service does, and that's looked up by model id
// at request time rather than published in the listing.
type modelPricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

type modelArchitecture struct {
	Modality  string `json:"modality,omitempty"`
	Tokenizer string `json:"tokenizer,omitempty"`
}

type modelProvider struct {
	ID string `json:"id"`
}

type modelLimits struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
}

// modelResponse is one entry of the gateway's native /api/v1/models
// listing, shaped after the LLM-Gateway dialect rather than OpenAI's.
type modelResponse struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	ContextLength     int               `json:"context_length,omitempty"`
	Pricing           modelPricing      `json:"pricing"`
	Architecture      modelArchitecture `json:"architecture"`
	TopProvider       modelProvider     `json:"top_provider"`
	PerRequestLimits  modelLimits       `json:"per_request_limits"`
}

type modelsResponse struct {
	Data []modelResponse `json:"data"`
}

// handleModels serves both model-listing shapes off the same catalog
// (C2) read, picking OpenAI's flatter shape or the gateway's native shape
// by the same ENABLE_OPENAI_COMPATIBLE_API toggle that selects the
// chat-completions dialect.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.catalog.GetModels(r.Context())
	if err != nil {
		s.writeJSONError(w, asAppError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if s.cfg.Features.OpenAICompatible {
		out := openAIModelsResponse{Object: "list", Data: make([]openAIModel, 0, len(models))}
		for _, m := range models {
			out.Data = append(out.Data, openAIModel{
				ID:      m.ExternalModelID,
				Object:  "model",
				OwnedBy: m.ProviderID,
			})
		}
		_ = json.NewEncoder(w).Encode(out)
		return
	}

	out := modelsResponse{Data: make([]modelResponse, 0, len(models))}
	for _, m := range models {
		out.Data = append(out.Data, modelResponse{
			ID:            m.ExternalModelID,
			Name:          m.Name,
			Description:   m.Description,
			ContextLength: m.ContextLength,
			Architecture: modelArchitecture{
				Modality:  m.Architecture.Modality,
				Tokenizer: m.Architecture.Tokenizer,
			},
			TopProvider: modelProvider{ID: m.ProviderID},
			PerRequestLimits: modelLimits{
				CompletionTokens: m.Capabilities.MaxCompletionTokens,
			},
		})
	}
	_ = json.NewEncoder(w).Encode(out)
}
