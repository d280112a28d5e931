package core

// Usage is the normalized token accounting for one request, used both for
// the response payload and as the input to billing finalization.
type Usage struct {
	PromptTokens            int                      `json:"prompt_tokens"`
	CompletionTokens        int                      `json:"completion_tokens"`
	TotalTokens             int                      `json:"total_tokens"`
	PromptTokensDetails     *PromptTokensDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`
	Cost                    *float64                 `json:"cost,omitempty"`
}

type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

type CompletionTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

// Richer reports whether u has a strictly larger TotalTokens than other
// (true when other is nil, false when u is nil). The completion stage does
// not call it: it keeps the last non-nil usage it sees.
func (u *Usage) Richer(other *Usage) bool {
	if other == nil {
		return true
	}
	if u == nil {
		return false
	}
	return u.TotalTokens > other.TotalTokens
}

// Delta is the incremental content of one streamed choice.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// StreamChoice is one choice within a streamed chunk.
type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// StreamChunk is the internal representation of one SSE frame from a
// provider driver, already normalized to the internal shape regardless of
// upstream wire format.
type StreamChunk struct {
	ID         string         `json:"id"`
	Created    int64          `json:"created"`
	Model      string         `json:"model"`
	ProviderID string         `json:"provider_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Object     string         `json:"object"`
	Choices    []StreamChoice `json:"choices"`
	Usage      *Usage         `json:"usage,omitempty"`

	// NativeUsage is a slot for the upstream's own usage payload, kept out
	// of the JSON encoding. No driver sets it and no stage reads it; the
	// completion stage takes usage from Usage.
	NativeUsage *Usage `json:"-"`
}

// IsTerminal reports whether this chunk is the terminal chunk of its
// stream: it carries both a finish_reason and usage. Per-provider
// termination state machines (core.TerminalDetector) decide this more
// precisely when a provider splits finish_reason and usage across two
// chunks; IsTerminal is the single-chunk shortcut for providers where both
// always arrive together (GigaChat after [DONE], etc).
func (c *StreamChunk) IsTerminal() bool {
	if c.Usage == nil {
		return false
	}
	for _, ch := range c.Choices {
		if ch.FinishReason != nil {
			return true
		}
	}
	return false
}

// ChatChoice is one choice within a non-streamed response.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse is the internal non-streaming chat-completion response.
type ChatResponse struct {
	ID         string       `json:"id"`
	Created    int64        `json:"created"`
	Model      string       `json:"model"`
	ProviderID string       `json:"provider_id,omitempty"`
	Choices    []ChatChoice `json:"choices"`
	Usage      Usage        `json:"usage"`
	Object     string       `json:"object"`
}

// Artifact is the sum type yielded by the chat completion service: either
// a complete non-streaming response or one stream chunk. Exactly one field
// is non-nil.
type Artifact struct {
	Response *ChatResponse
	Chunk    *StreamChunk
}

// TokenCount is an estimated or actual token accounting, keyed by model
// and provider, produced by the tokenize stage and consumed by billing.
type TokenCount struct {
	Model           string         `json:"model"`
	Provider        string         `json:"provider"`
	Input           int            `json:"input"`
	Output          int            `json:"output"`
	Total           int            `json:"total"`
	CacheHit        bool           `json:"cache_hit,omitempty"`
	InputCached     int            `json:"input_cached,omitempty"`
	OutputReasoning int            `json:"output_reasoning,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
}
