package core

import "time"

// RequestContext is created once per inbound request and threaded through
// every handler-chain stage. It exclusively owns the provider request and
// final response; stream chunks yielded out to the HTTP surface are
// transferred out and not retained here.
type RequestContext struct {
	// RequestID is non-empty for the lifetime of the context. If the
	// caller supplied one it is preserved verbatim; otherwise a UUIDv4 is
	// generated on creation.
	RequestID string

	// APIKey and UserID identify the caller, populated from request-scoped
	// state set by the (external) auth middleware.
	APIKey string
	UserID string
	Origin string

	// Dialect names the inbound/outbound wire shape this request is fixed
	// to for its lifetime ("openai_chat", "openai_responses",
	// "gigachat_v1", "gigachat_v2", "llm_gateway").
	Dialect string

	// OriginalRequest is the caller's request in its native dialect,
	// before normalization. Immutable after Transform.
	OriginalRequest any

	// Request is the normalized internal chat-completion request. Filled
	// by the transform stage.
	Request *ChatRequest

	// Binding is filled after C1 resolves the caller's model id.
	Binding *ProviderBinding

	// Model is the catalog entry resolved for this request (may be nil if
	// the catalog has no entry for an ad-hoc/Ollama model).
	Model *ProviderModel

	// EstimatedTokens is the pessimistic pre-call estimate produced by the
	// tokenize stage.
	EstimatedTokens *TokenCount

	// AmountHeld and TransactionID are set by the limit-check stage when
	// billing is enabled. TransactionID doubles as GenerationID once a
	// hold exists.
	AmountHeld    *float64
	TransactionID string

	// GenerationID is the id used for the Generation record posted at
	// finalize time. When billing is disabled it is a locally generated
	// "gen_<uuid>" id produced immediately by the transform stage;
	// otherwise it equals TransactionID.
	GenerationID string

	// FinalResponse is the terminal artifact of the completion stage: for
	// streaming requests the terminal StreamChunk, for non-streaming
	// requests the assembled ChatResponse. Exactly one of the two is set,
	// mirrored by Artifact's own shape.
	FinalResponse *Artifact

	// AccumulatedText is the streamed text collected across all chunks,
	// used for audit/billing meta even though it is not itself billed.
	AccumulatedText string

	// IncludeUsage mirrors the caller's stream_options.include_usage.
	IncludeUsage bool

	// CacheWrite is set by the transform stage when any message content
	// part carries a cache_control hint.
	CacheWrite bool

	// StartedAt is used to compute request duration for the Generation
	// record and the "slow request" log threshold.
	StartedAt time.Time

	// Metadata is a free-form bag for adapter/driver-specific state that
	// doesn't warrant its own field (e.g. the OpenRouter-proxy's resolved
	// tunnel URL).
	Metadata map[string]any
}

// NewRequestContext allocates a context with a fresh RequestID when
// callerRequestID is empty, per the spec's request-id invariant.
func NewRequestContext(callerRequestID string, newID func() string) *RequestContext {
	id := callerRequestID
	if id == "" {
		id = newID()
	}
	return &RequestContext{
		RequestID: id,
		StartedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// SetMeta stores a metadata value.
func (c *RequestContext) SetMeta(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
}

// Meta retrieves a metadata value.
func (c *RequestContext) Meta(key string) (any, bool) {
	v, ok := c.Metadata[key]
	return v, ok
}

// Cleanup clears heavy fields once a request's lifecycle ends, so the
// context can be garbage collected promptly even if something else still
// holds a reference (e.g. a closure captured by a deferred log call).
func (c *RequestContext) Cleanup() {
	c.Request = nil
	c.FinalResponse = nil
	c.AccumulatedText = ""
	c.Metadata = nil
}
