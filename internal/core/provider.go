package core

import "context"

// Provider is the single capability set every upstream LLM backend
// implements. The handler chain and chat completion service depend only on
// this interface — they never know which concrete wire format or driver
// is behind it. Concrete drivers are selected by provider_id at
// construction time in the registry, not by any type switch here.
type Provider interface {
	// Name returns the provider identifier ("deepseek", "gigachat", ...),
	// used for logging, metrics labels, and ProviderModel.ProviderID.
	Name() string

	// CreateCompletion always streams internally: non-streaming upstream
	// APIs are adapted into a one-element channel by the driver. The
	// returned channel is closed when the stream ends or the context is
	// cancelled; a nil error here means the HTTP/SSE connection was
	// established, not that the full response already succeeded — a
	// mid-stream failure arrives as a StreamResult whose Err is set.
	CreateCompletion(ctx context.Context, req *ChatRequest) (<-chan StreamResult, error)

	// GetModels returns the provider's full model catalog, already
	// normalized into ProviderModel by the provider's model mapper.
	GetModels(ctx context.Context) ([]ProviderModel, error)

	// GetModel resolves a single upstream model id (not an external id) to
	// its ProviderModel.
	GetModel(ctx context.Context, modelID string) (*ProviderModel, error)

	// Close releases the provider's HTTP client and any other resources.
	// Safe to call multiple times.
	Close() error
}

// StreamResult carries either a normalized chunk or a terminal error from a
// provider driver's internal stream. Exactly one of Chunk/Err is set.
type StreamResult struct {
	Chunk *StreamChunk
	Err   error
}

// ProviderBinding is produced by the registry (C1) for one request: the
// concrete credentials and base URL to use, plus any provider-specific
// parameters (e.g. Yandex's folder id, the Ollama server URL).
type ProviderBinding struct {
	ProviderID   string
	ProviderName string
	Credentials  Credentials
	BaseURL      string
	Parameters   map[string]string
}

// Credentials is a small closed union of the credential shapes the
// gateway's providers need: a bearer API key, or GigaChat's
// login/password-or-service-token pair.
type Credentials struct {
	APIKey   string
	Login    string
	Password string
}

// Architecture describes a model's modality and tokenizer, used for
// capability inference (e.g. vision support).
type Architecture struct {
	Modality  string `json:"modality,omitempty"`
	Tokenizer string `json:"tokenizer,omitempty"`
}

// Capabilities describes what a model supports, derived per-provider by
// the model mapper.
type Capabilities struct {
	ContextLength       int  `json:"context_length,omitempty"`
	MaxCompletionTokens int  `json:"max_completion_tokens,omitempty"`
	IsToolCalls         bool `json:"is_tool_calls"`
	IsVision            bool `json:"is_vision"`
}

// ProviderModel is one catalog entry, as returned by the model catalog
// (C2) to callers. ExternalModelID is what the caller sees and sends back
// in future requests; ModelID is what the upstream sees.
type ProviderModel struct {
	ModelID         string       `json:"model_id"`
	ExternalModelID string       `json:"external_model_id"`
	ProviderID      string       `json:"provider_id"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	ContextLength   int          `json:"context_length,omitempty"`
	Architecture    Architecture `json:"architecture"`
	Capabilities    Capabilities `json:"capabilities"`
}
