// Package openaicompat implements the generic OpenAI-compatible wire
// mapper (§4.C3.1) shared by DeepSeek, OpenRouter, Z.AI, Ollama, and
// XRouter, each of which layers small extras on top via embedding.
package openaicompat

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/olegische/llmrouter/internal/core"
)

// wireMessage is one message in the OpenAI-compatible request/response
// wire shape.
type wireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Index    *int             `json:"index,omitempty"`
	Function wireToolCallFunc `json:"function"`
}

type wireToolCallFunc struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type wireContentPart struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ImageURL     *wireImageURL     `json:"image_url,omitempty"`
	CacheControl *wireCacheControl `json:"cache_control,omitempty"`
}

type wireImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type wireCacheControl struct {
	Type string `json:"type"`
}

type wireRequest struct {
	Model            string          `json:"model"`
	Messages         []wireMessage   `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	TopK             *int            `json:"top_k,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	Stream           bool            `json:"stream"`
	Tools            json.RawMessage `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	ReasoningEffort  string          `json:"reasoning_effort,omitempty"`
	StreamOptions    *streamOptions  `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireUsage struct {
	PromptTokens            int                   `json:"prompt_tokens"`
	CompletionTokens        int                   `json:"completion_tokens"`
	TotalTokens             int                   `json:"total_tokens"`
	PromptTokensDetails     *wirePromptDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *wireCompletionDetails `json:"completion_tokens_details,omitempty"`
}

type wirePromptDetails struct {
	CachedTokens int `json:"cached_tokens,omitempty"`
}

type wireCompletionDetails struct {
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

type wireDelta struct {
	Role             string         `json:"role,omitempty"`
	Content          string         `json:"content,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	Reasoning        string         `json:"reasoning,omitempty"`
	ToolCalls        []wireToolCall `json:"tool_calls,omitempty"`
}

type wireStreamChoice struct {
	Index        int       `json:"index"`
	Delta        wireDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type wireStreamChunk struct {
	ID      string             `json:"id"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Object  string             `json:"object"`
	Choices []wireStreamChoice `json:"choices"`
	Usage   *wireUsage         `json:"usage,omitempty"`
}

type wireChatChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireChatResponse struct {
	ID      string           `json:"id"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Object  string           `json:"object"`
	Choices []wireChatChoice `json:"choices"`
	Usage   *wireUsage       `json:"usage,omitempty"`
}

// Mapper is the generic OpenAI-compatible wire mapper. Embed it to add
// provider-specific extras (see wire/deepseek, wire/zai).
type Mapper struct {
	// ReasoningStyle controls how ReasoningConfig.Effort is serialized:
	// "field" emits top-level reasoning_effort (OpenAI), "object" emits
	// reasoning:{effort} (OpenRouter-style). Empty means omit reasoning
	// entirely.
	ReasoningStyle string
}

func (m Mapper) EncodeRequest(req *core.ChatRequest) ([]byte, error) {
	wr := wireRequest{
		Model:            req.Model,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		Stop:             req.Stop,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stream:           true,
	}
	if req.MaxTokens > 0 {
		wr.MaxTokens = &req.MaxTokens
	}
	if req.UsageOpts != nil {
		wr.StreamOptions = &streamOptions{IncludeUsage: req.UsageOpts.IncludeUsage}
	} else {
		wr.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	for _, msg := range req.Messages {
		wr.Messages = append(wr.Messages, encodeMessage(msg))
	}

	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		switch m.ReasoningStyle {
		case "field":
			wr.ReasoningEffort = req.Reasoning.Effort
		case "object":
			raw, _ := json.Marshal(map[string]string{"effort": req.Reasoning.Effort})
			return encodeWithReasoningObject(wr, req, raw)
		}
	}

	if len(req.Tools) > 0 {
		raw, err := json.Marshal(req.Tools)
		if err != nil {
			return nil, err
		}
		wr.Tools = raw
	}
	if req.ToolChoice != nil {
		raw, err := encodeToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		wr.ToolChoice = raw
	}

	return json.Marshal(wr)
}

// encodeToolChoice renders a core.ToolChoice in the OpenAI wire shape: a
// bare string for "auto"/"none"/"required", or
// {"type":"function","function":{"name":...}} when a specific function is
// named.
func encodeToolChoice(tc *core.ToolChoice) ([]byte, error) {
	if tc.Function != nil {
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.Function.Name},
		})
	}
	mode := tc.Mode
	if mode == "" {
		mode = "auto"
	}
	return json.Marshal(mode)
}

// encodeWithReasoningObject is only reached for the "object" reasoning
// style; it re-marshals with an extra top-level "reasoning" key since
// wireRequest has no field for it (OpenRouter-only shape).
func encodeWithReasoningObject(wr wireRequest, req *core.ChatRequest, reasoningRaw []byte) ([]byte, error) {
	if len(req.Tools) > 0 {
		raw, err := json.Marshal(req.Tools)
		if err != nil {
			return nil, err
		}
		wr.Tools = raw
	}
	if req.ToolChoice != nil {
		raw, err := encodeToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		wr.ToolChoice = raw
	}
	base, err := json.Marshal(wr)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	merged["reasoning"] = reasoningRaw
	return json.Marshal(merged)
}

func encodeMessage(msg core.Message) wireMessage {
	wm := wireMessage{Role: msg.Role, Name: msg.Name, ToolCallID: msg.ToolCallID}
	wm.Content = encodeContent(msg.Content)
	for _, tc := range msg.ToolCalls {
		wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
			ID:    tc.ID,
			Type:  tc.Type,
			Index: tc.Index,
			Function: wireToolCallFunc{
				Name:      tc.Func.Name,
				Arguments: tc.Func.Arguments,
			},
		})
	}
	return wm
}

func encodeContent(c core.Content) json.RawMessage {
	switch v := c.(type) {
	case nil:
		return nil
	case core.TextContent:
		raw, _ := json.Marshal(string(v))
		return raw
	case core.PartsContent:
		var parts []wireContentPart
		for _, p := range v {
			wp := wireContentPart{Type: p.Type, Text: p.Text}
			if p.ImageURL != nil {
				wp.ImageURL = &wireImageURL{URL: p.ImageURL.URL, Detail: p.ImageURL.Detail}
			}
			if p.CacheControl != nil {
				wp.CacheControl = &wireCacheControl{Type: p.CacheControl.Type}
			}
			parts = append(parts, wp)
		}
		raw, _ := json.Marshal(parts)
		return raw
	default:
		return nil
	}
}

// ParseSSELine implements the generic "data: <json>" framing shared by
// every OpenAI-compatible upstream.
func (Mapper) ParseSSELine(line []byte) (frame []byte, ok bool, done bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || bytes.HasPrefix(line, []byte(":")) {
		return nil, false, false
	}
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false, false
	}
	payload := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
	if string(payload) == "[DONE]" {
		return nil, false, true
	}
	return payload, true, false
}

func (m Mapper) DecodeChunk(frame []byte, state *core.MapperState) ([]core.StreamChunk, error) {
	var wc wireStreamChunk
	if err := json.Unmarshal(frame, &wc); err != nil {
		return nil, err
	}

	var usage *core.Usage
	if wc.Usage != nil {
		usage = decodeUsage(wc.Usage)
	}

	chunk := core.StreamChunk{
		ID:      wc.ID,
		Created: wc.Created,
		Model:   wc.Model,
		Object:  "chat.completion.chunk",
		Usage:   usage,
	}

	for _, c := range wc.Choices {
		role := c.Delta.Role
		if role == "" {
			role = core.RoleAssistant
		}
		reasoning := c.Delta.Reasoning
		if reasoning == "" {
			reasoning = c.Delta.ReasoningContent
		}
		delta := core.Delta{
			Role:      role,
			Content:   c.Delta.Content,
			Reasoning: reasoning,
		}
		for _, tc := range c.Delta.ToolCalls {
			delta.ToolCalls = append(delta.ToolCalls, core.ToolCall{
				ID:    tc.ID,
				Type:  defaultStr(tc.Type, "function"),
				Index: tc.Index,
				Func:  core.ToolCallFunc{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
			})
		}
		if c.FinishReason != nil {
			state.SeenFinishReason = true
		}
		chunk.Choices = append(chunk.Choices, core.StreamChoice{
			Index:        c.Index,
			Delta:        delta,
			FinishReason: c.FinishReason,
		})
	}

	return []core.StreamChunk{chunk}, nil
}

func (Mapper) DecodeResponse(body []byte) (*core.ChatResponse, error) {
	var wr wireChatResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, err
	}
	resp := &core.ChatResponse{
		ID:      wr.ID,
		Created: wr.Created,
		Model:   wr.Model,
		Object:  "chat.completion",
	}
	if u := decodeUsage(wr.Usage); u != nil {
		resp.Usage = *u
	}
	for _, c := range wr.Choices {
		resp.Choices = append(resp.Choices, core.ChatChoice{
			Index:        c.Index,
			Message:      decodeMessage(c.Message),
			FinishReason: c.FinishReason,
		})
	}
	return resp, nil
}

func decodeMessage(wm wireMessage) core.Message {
	msg := core.Message{Role: wm.Role, Name: wm.Name, ToolCallID: wm.ToolCallID}
	if len(wm.Content) > 0 {
		var s string
		if json.Unmarshal(wm.Content, &s) == nil {
			msg.Content = core.TextContent(s)
		}
	}
	for _, tc := range wm.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
			ID:    tc.ID,
			Type:  defaultStr(tc.Type, "function"),
			Index: tc.Index,
			Func:  core.ToolCallFunc{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
		})
	}
	return msg
}

func decodeUsage(wu *wireUsage) *core.Usage {
	if wu == nil {
		return nil
	}
	u := &core.Usage{
		PromptTokens:     wu.PromptTokens,
		CompletionTokens: wu.CompletionTokens,
		TotalTokens:      wu.TotalTokens,
	}
	if wu.PromptTokensDetails != nil {
		u.PromptTokensDetails = &core.PromptTokensDetails{CachedTokens: wu.PromptTokensDetails.CachedTokens}
	}
	if wu.CompletionTokensDetails != nil {
		u.CompletionTokensDetails = &core.CompletionTokensDetails{ReasoningTokens: wu.CompletionTokensDetails.ReasoningTokens}
	}
	return u
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// HasFinishAndUsage reports, for an already-decoded chunk, whether any
// choice carries a finish_reason and whether the chunk carries usage. The
// openaicompat driver computes the same pair inline rather than calling it.
func HasFinishAndUsage(chunk core.StreamChunk) (hasFinish, hasUsage bool) {
	hasUsage = chunk.Usage != nil
	for _, c := range chunk.Choices {
		if c.FinishReason != nil {
			hasFinish = true
		}
	}
	return hasFinish, hasUsage
}

// TrimModelPrefix strips a "<provider>/" prefix some upstreams don't
// expect to see echoed back (rarely needed, kept for symmetry with model
// mapper normalization).
func TrimModelPrefix(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}
