// Package llmgateway implements the C5 dialect adapter for the gateway's
// own native wire shape: an OpenAI-like request that additionally accepts
// a bare "prompt" string instead of "messages", and a response that
// carries the resolved "provider" id alongside each choice's
// native_finish_reason, per
// original_source/src/router/chat_completion/models/llm_gateway/*.py.
package llmgateway

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/dialect"
)

type request struct {
	Model            string          `json:"model"`
	Prompt           string          `json:"prompt,omitempty"`
	Messages         []message       `json:"messages,omitempty"`
	Usage            *struct {
		Include bool `json:"include"`
	} `json:"usage,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	TopP               *float64        `json:"top_p,omitempty"`
	TopK               *int            `json:"top_k,omitempty"`
	Stream             bool            `json:"stream"`
	Stop               json.RawMessage `json:"stop,omitempty"`
	MaxTokens          *int            `json:"max_tokens,omitempty"`
	Tools              []core.Tool     `json:"tools,omitempty"`
	ToolChoice         json.RawMessage `json:"tool_choice,omitempty"`
	Reasoning          *struct {
		Effort string `json:"effort"`
	} `json:"reasoning,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

type message struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []core.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// Adapter implements dialect.Adapter for the native LLM-Gateway shape.
type Adapter struct{}

func New() Adapter { return Adapter{} }

func (Adapter) ParseRequest(body []byte) (*core.ChatRequest, any, error) {
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, apperr.BadRequest("invalid JSON body: " + err.Error())
	}
	if req.Model == "" {
		return nil, nil, apperr.BadRequest("model is required")
	}
	if req.Prompt == "" && len(req.Messages) == 0 {
		return nil, nil, apperr.BadRequest("one of prompt or messages is required")
	}
	if req.Prompt != "" && len(req.Messages) > 0 {
		return nil, nil, apperr.BadRequest("prompt and messages are mutually exclusive")
	}

	out := &core.ChatRequest{
		Model:            req.Model,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		Stream:           req.Stream,
		MaxTokens:        derefInt(req.MaxTokens),
		Tools:            req.Tools,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
	if req.Stop != nil {
		out.Stop = decodeStop(req.Stop)
	}
	if req.Usage != nil {
		out.UsageOpts = &core.UsageOpts{IncludeUsage: req.Usage.Include}
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		out.Reasoning = &core.ReasoningConfig{Effort: req.Reasoning.Effort}
	}
	if req.ToolChoice != nil {
		tc, err := decodeToolChoice(req.ToolChoice)
		if err != nil {
			return nil, nil, apperr.BadRequest("invalid tool_choice: " + err.Error())
		}
		out.ToolChoice = tc
	}

	if req.Prompt != "" {
		out.Messages = []core.Message{{Role: core.RoleUser, Content: core.TextContent(req.Prompt)}}
	} else {
		for _, m := range req.Messages {
			msg := core.Message{Role: m.Role, Name: m.Name, ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID}
			if len(m.Content) > 0 {
				content, err := decodeContent(m.Content)
				if err != nil {
					return nil, nil, apperr.BadRequest("invalid message content: " + err.Error())
				}
				msg.Content = content
			}
			out.Messages = append(out.Messages, msg)
		}
	}

	return out, &req, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func decodeStop(raw json.RawMessage) []string {
	var single string
	if json.Unmarshal(raw, &single) == nil {
		return []string{single}
	}
	var many []string
	if json.Unmarshal(raw, &many) == nil {
		return many
	}
	return nil
}

func decodeToolChoice(raw json.RawMessage) (*core.ToolChoice, error) {
	var mode string
	if err := json.Unmarshal(raw, &mode); err == nil {
		return &core.ToolChoice{Mode: mode}, nil
	}
	var obj struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return &core.ToolChoice{Function: &core.ToolFunction{Name: obj.Function.Name}}, nil
}

func decodeContent(raw json.RawMessage) (core.Content, error) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return core.TextContent(s), nil
	}
	var parts []core.ContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, err
	}
	return core.PartsContent(parts), nil
}

type responseChoice struct {
	Index              int           `json:"index"`
	Message            core.Message  `json:"message"`
	FinishReason       string        `json:"finish_reason"`
	NativeFinishReason string        `json:"native_finish_reason,omitempty"`
}

type response struct {
	ID       string           `json:"id"`
	Created  int64            `json:"created"`
	Model    string           `json:"model"`
	Provider string           `json:"provider,omitempty"`
	Object   string           `json:"object"`
	Choices  []responseChoice `json:"choices"`
	Usage    core.Usage       `json:"usage"`
}

func (Adapter) WriteResponse(w io.Writer, resp *core.ChatResponse, rc *core.RequestContext) error {
	out := response{
		ID:       resp.ID,
		Created:  resp.Created,
		Model:    resp.Model,
		Provider: resp.ProviderID,
		Object:   resp.Object,
		Usage:    resp.Usage,
	}
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, responseChoice{
			Index:              c.Index,
			Message:            c.Message,
			FinishReason:       c.FinishReason,
			NativeFinishReason: c.FinishReason,
		})
	}
	return json.NewEncoder(w).Encode(out)
}

type streamChoice struct {
	Index              int        `json:"index"`
	Delta              core.Delta `json:"delta"`
	FinishReason       *string    `json:"finish_reason"`
	NativeFinishReason *string    `json:"native_finish_reason,omitempty"`
}

type streamChunk struct {
	ID       string         `json:"id"`
	Created  int64          `json:"created"`
	Model    string         `json:"model"`
	Provider string         `json:"provider,omitempty"`
	Object   string         `json:"object"`
	Choices  []streamChoice `json:"choices"`
	Usage    *core.Usage    `json:"usage,omitempty"`
}

func (Adapter) WriteStreamChunk(w io.Writer, chunk *core.StreamChunk, rc *core.RequestContext) (bool, error) {
	out := streamChunk{
		ID:       chunk.ID,
		Created:  chunk.Created,
		Model:    chunk.Model,
		Provider: chunk.ProviderID,
		Object:   chunk.Object,
		Usage:    chunk.Usage,
	}
	for _, c := range chunk.Choices {
		out.Choices = append(out.Choices, streamChoice{
			Index:              c.Index,
			Delta:              c.Delta,
			FinishReason:       c.FinishReason,
			NativeFinishReason: c.FinishReason,
		})
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return false, err
	}
	if chunk.IsTerminal() {
		_, err := io.WriteString(w, "data: [DONE]\n\n")
		return true, err
	}
	return false, nil
}

func (Adapter) WriteStreamError(w io.Writer, e *apperr.Error) error {
	raw, err := json.Marshal(dialect.NewErrorEnvelope(e))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return err
	}
	_, err = io.WriteString(w, "data: [DONE]\n\n")
	return err
}
