// Package openaichat implements the C5 dialect adapter for
// /v1/chat/completions: a near-identity pass-through of the OpenAI chat
// completion wire shape, with reasoning_effort/reasoning normalized into
// core.ReasoningConfig and stripped back out again on the way home.
package openaichat

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
	Messages         []message       `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	N                *int            `json:"n,omitempty"`
	Stream           bool            `json:"stream"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	MaxCompletion    *int            `json:"max_completion_tokens,omitempty"`
	Stop             json.RawMessage `json:"stop,omitempty"`
	Tools            []core.Tool     `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	LogitBias        map[string]int  `json:"logit_bias,omitempty"`
	User             string          `json:"user,omitempty"`
	ReasoningEffort  string          `json:"reasoning_effort,omitempty"`
	Reasoning        *struct {
		Effort string `json:"effort"`
	} `json:"reasoning,omitempty"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
}

type message struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []core.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// Adapter implements dialect.Adapter for the OpenAI chat-completions shape.
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
	if len(req.Messages) == 0 {
		return nil, nil, apperr.BadRequest("messages must not be empty")
	}

	out := &core.ChatRequest{
		Model:            req.Model,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		Stream:           req.Stream,
		Tools:            req.Tools,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
	if req.MaxCompletion != nil {
		out.MaxTokens = *req.MaxCompletion
	} else if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Stop != nil {
		out.Stop = decodeStop(req.Stop)
	}
	if req.StreamOptions != nil {
		out.UsageOpts = &core.UsageOpts{IncludeUsage: req.StreamOptions.IncludeUsage}
	}
	if req.ToolChoice != nil {
		tc, err := decodeToolChoice(req.ToolChoice)
		if err != nil {
			return nil, nil, apperr.BadRequest("invalid tool_choice: " + err.Error())
		}
		out.ToolChoice = tc
	}

	effort := req.ReasoningEffort
	if effort == "" && req.Reasoning != nil {
		effort = req.Reasoning.Effort
	}
	if effort != "" {
		out.Reasoning = &core.ReasoningConfig{Effort: effort}
	}

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

	return out, &req, nil
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
		Type     string `json:"type"`
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

func (Adapter) WriteResponse(w io.Writer, resp *core.ChatResponse, rc *core.RequestContext) error {
	return json.NewEncoder(w).Encode(resp)
}

func (Adapter) WriteStreamChunk(w io.Writer, chunk *core.StreamChunk, rc *core.RequestContext) (bool, error) {
	raw, err := json.Marshal(chunk)
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
