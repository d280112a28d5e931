package core

// Role values used on Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a chat-completion request, in the internal shape
// every dialect adapter normalizes into and every wire mapper translates
// out of.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content,omitempty"`

	// Name disambiguates multiple tool/function identities in a
	// conversation (OpenAI function-calling convention).
	Name string `json:"name,omitempty"`

	// ToolCalls is populated on assistant messages that invoked tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message back to the ToolCall.ID that
	// requested it. Adapters never rewrite this value (spec invariant).
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a single function invocation, in request or response
// position. Arguments may arrive incrementally in streaming deltas, in
// which case Function.Arguments holds just the fragment for this delta.
type ToolCall struct {
	ID    string       `json:"id,omitempty"`
	Type  string       `json:"type,omitempty"` // always "function" today
	Index *int         `json:"index,omitempty"`
	Func  ToolCallFunc `json:"function"`
}

type ToolCallFunc struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Tool describes a callable function the model may invoke.
type Tool struct {
	Type     string       `json:"type"` // "function"
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolChoice controls whether/which tool the model must call. It is either
// a bare string ("auto", "none", "required") or an object naming a
// specific function; callers set exactly one of the two fields.
type ToolChoice struct {
	Mode     string        `json:"-"`
	Function *ToolFunction `json:"-"`
}

// ReasoningConfig carries the caller's requested reasoning effort,
// normalized from either OpenAI's reasoning_effort or OpenRouter's
// reasoning.effort shape.
type ReasoningConfig struct {
	Effort string `json:"effort,omitempty"` // "low" | "medium" | "high"
}

// UsageOpts controls whether usage accounting is requested on the stream
// (OpenAI's stream_options.include_usage).
type UsageOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatRequest is the internal chat-completion request shape every dialect
// adapter produces and every wire mapper consumes.
type ChatRequest struct {
	Model            string           `json:"model"`
	Messages         []Message        `json:"messages"`
	Temperature      *float64         `json:"temperature,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
	TopK             *int             `json:"top_k,omitempty"`
	MaxTokens        int              `json:"max_tokens,omitempty"`
	Stream           bool             `json:"stream"`
	Tools            []Tool           `json:"tools,omitempty"`
	ToolChoice       *ToolChoice      `json:"tool_choice,omitempty"`
	Reasoning        *ReasoningConfig `json:"reasoning,omitempty"`
	Stop             []string         `json:"stop,omitempty"`
	FrequencyPenalty *float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64         `json:"presence_penalty,omitempty"`
	UsageOpts        *UsageOpts       `json:"usage_opts,omitempty"`
}

// Clone returns a deep-enough copy of req for mutation inside a wire mapper
// (messages slice and tools slice are copied; Content values are immutable
// so sharing them is safe).
func (r *ChatRequest) Clone() *ChatRequest {
	cp := *r
	cp.Messages = append([]Message(nil), r.Messages...)
	cp.Tools = append([]Tool(nil), r.Tools...)
	cp.Stop = append([]string(nil), r.Stop...)
	return &cp
}
