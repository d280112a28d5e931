package core

// WireMapper translates between the internal chat-completion shape and one
// upstream's wire format. One implementation per provider family lives
// under internal/wire/<provider>.
type WireMapper interface {
	// EncodeRequest serializes an internal request into the upstream's
	// JSON request body. Internally, every upstream call is streamed
	// (stream=true) regardless of the caller's original request.
	EncodeRequest(req *ChatRequest) ([]byte, error)

	// ParseSSELine decodes one upstream SSE line. ok is false for blank
	// lines, comments, or lines that don't carry a data frame. done is
	// true for the upstream's own end-of-stream sentinel (e.g. OpenAI's
	// "data: [DONE]"). ParseSSELine does not decode JSON and has no error
	// result: invalid JSON in a frame surfaces as DecodeChunk's error, and
	// the driver skips that frame rather than aborting the stream.
	ParseSSELine(line []byte) (frame []byte, ok bool, done bool)

	// DecodeChunk turns one upstream SSE data frame into zero or more
	// internal StreamChunks (zero when the frame carries no user-visible
	// delta, e.g. Anthropic's ping events in spirit — most OpenAI-shaped
	// upstreams always produce exactly one).
	DecodeChunk(frame []byte, state *MapperState) ([]StreamChunk, error)

	// DecodeResponse turns a non-streaming upstream JSON body into an
	// internal ChatResponse, used by drivers whose upstream has no native
	// streaming mode.
	DecodeResponse(body []byte) (*ChatResponse, error)
}

// MapperState is per-request mutable state some wire mappers need across
// calls to DecodeChunk (e.g. Yandex's previous-cumulative-text buffer).
// It is owned by the driver instance handling one request, never shared
// across requests or stored in a package-level map — see the gateway's
// concurrency notes on avoiding the "per-request state in a process-wide
// map" leak.
type MapperState struct {
	// PreviousText is Yandex's cumulative-text-so-far buffer.
	PreviousText string

	// SeenFinishReason records whether any earlier chunk carried a
	// finish_reason, needed by the OpenAI-compatible terminal rule ("a
	// chunk carrying usage after some earlier chunk carried
	// finish_reason").
	SeenFinishReason bool

	// ToolCallIDs synthesizes stable ids for upstreams that don't return
	// one (Yandex).
	ToolCallIDs map[int]string
}

// ModelMapper normalizes a provider's model list into internal
// ProviderModels. Some providers (Yandex, Z.AI, Agents) have no models API
// and hard-code their list instead of calling NormalizeModels with upstream
// JSON.
type ModelMapper interface {
	// NormalizeModels converts raw upstream model-list JSON (nil for
	// providers with a static list) into ProviderModels with ModelID
	// filled but ExternalModelID left blank — the catalog (C2) fills
	// ExternalModelID once it knows the provider prefix / Ollama server.
	NormalizeModels(raw []byte) ([]ProviderModel, error)

	// StaticModels returns the hard-coded model list for providers with no
	// models API. Returns nil for providers that implement NormalizeModels
	// against a real upstream instead.
	StaticModels() []ProviderModel
}
