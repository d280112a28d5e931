package openaicompat

import (
	"encoding/json"
	"strings"

	"github.com/olegische/llmrouter/internal/core"
)

// rawModelList is the common "{"data": [...]}" shape shared by every
// OpenAI-compatible models endpoint (DeepSeek, OpenRouter, XRouter, the
// Ollama-via-proxy shape).
type rawModelList struct {
	Data []rawModel `json:"data"`
}

type rawModel struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	ContextLength   int                `json:"context_length"`
	Architecture    rawArchitecture    `json:"architecture"`
	TopProvider     rawTopProvider     `json:"top_provider"`
	PerRequestLimit rawPerRequestLimit `json:"per_request_limits"`
}

type rawArchitecture struct {
	InstructType string `json:"instruct_type"`
	Modality     string `json:"modality"`
	Tokenizer    string `json:"tokenizer"`
}

type rawTopProvider struct {
	ContextLength       int  `json:"context_length"`
	MaxCompletionTokens int  `json:"max_completion_tokens"`
	IsModerated         bool `json:"is_moderated"`
}

type rawPerRequestLimit struct {
	CompletionTokens int `json:"completion_tokens"`
}

// ModelListOptions parametrizes NormalizeOpenAIStyleModels per provider:
// whitelist filtering (OpenRouter/OpenRouter-proxy), tool-call capability
// defaults, and tokenizer fallback.
type ModelListOptions struct {
	// Allow, when non-nil, restricts the output to model ids present in
	// the set (true value). A nil Allow means "expose everything".
	Allow map[string]bool

	// IsToolCalls is the capabilities.is_tool_calls value to set on every
	// returned model — OpenRouter/OpenRouter-proxy mark their whitelisted
	// models tool-call-capable unconditionally; other providers leave it
	// false until a per-model override is known.
	IsToolCalls bool

	// DefaultTokenizer is used when the upstream's architecture.tokenizer
	// is empty and DefaultTokenizerFunc is nil.
	DefaultTokenizer string

	// DefaultTokenizerFunc, when set, picks the fallback tokenizer per
	// model id (OpenRouter infers "anthropic"/"google" from the id).
	// Takes precedence over DefaultTokenizer.
	DefaultTokenizerFunc func(modelID string) string
}

// IsVisionModality reports whether a modality string (e.g.
// "image+text->text") indicates vision support.
func IsVisionModality(modality string) bool {
	return strings.Contains(strings.ToLower(modality), "image")
}

// NormalizeOpenAIStyleModels converts a "{"data": [...]}" models response
// into internal ProviderModels, the shape DeepSeek/OpenRouter/OpenRouter-
// proxy/XRouter all share.
func NormalizeOpenAIStyleModels(raw []byte, opts ModelListOptions) ([]core.ProviderModel, error) {
	var list rawModelList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}

	var out []core.ProviderModel
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		if opts.Allow != nil && !opts.Allow[m.ID] {
			continue
		}

		contextLength := m.ContextLength
		if contextLength <= 0 {
			contextLength = m.TopProvider.ContextLength
		}
		if contextLength <= 0 {
			contextLength = 4096
		}

		maxCompletion := m.PerRequestLimit.CompletionTokens
		if maxCompletion <= 0 {
			maxCompletion = m.TopProvider.MaxCompletionTokens
		}
		if maxCompletion <= 0 {
			maxCompletion = 4096
		}

		modality := m.Architecture.Modality
		if modality == "" {
			modality = "text->text"
		}
		tokenizer := m.Architecture.Tokenizer
		if tokenizer == "" {
			if opts.DefaultTokenizerFunc != nil {
				tokenizer = opts.DefaultTokenizerFunc(m.ID)
			} else {
				tokenizer = opts.DefaultTokenizer
			}
		}

		name := m.Name
		if name == "" {
			name = m.ID
		}

		out = append(out, core.ProviderModel{
			ModelID:       m.ID,
			Name:          name,
			Description:   m.Description,
			ContextLength: contextLength,
			Architecture: core.Architecture{
				Modality:  modality,
				Tokenizer: tokenizer,
			},
			Capabilities: core.Capabilities{
				ContextLength:       contextLength,
				MaxCompletionTokens: maxCompletion,
				IsToolCalls:         opts.IsToolCalls,
				IsVision:            IsVisionModality(modality),
			},
		})
	}
	return out, nil
}
