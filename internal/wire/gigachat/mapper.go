// Package gigachat implements the GigaChat wire mapper (§4.C3.2): system
// message merging, tool_call/function_call translation, and GigaChat's own
// finish-reason and usage field naming.
package gigachat

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/olegische/llmrouter/internal/core"
)

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

type wireFunctionCallChoice struct {
	Name             string `json:"name,omitempty"`
	PartialArguments any    `json:"partial_arguments,omitempty"`
}

type wireMessage struct {
	Role             string            `json:"role"`
	Content          string            `json:"content"`
	Name             string            `json:"name,omitempty"`
	FunctionCall     *wireFunctionCall `json:"function_call,omitempty"`
	FunctionsStateID string            `json:"functions_state_id,omitempty"`
}

type wireRequest struct {
	Model        string         `json:"model"`
	Messages     []wireMessage  `json:"messages"`
	Temperature  *float64       `json:"temperature,omitempty"`
	TopP         *float64       `json:"top_p,omitempty"`
	Stream       bool           `json:"stream"`
	MaxTokens    int            `json:"max_tokens,omitempty"`
	Functions    []wireFunction `json:"functions,omitempty"`
	FunctionCall any            `json:"function_call,omitempty"`
}

type wireUsage struct {
	PromptTokens          int `json:"prompt_tokens"`
	CompletionTokens      int `json:"completion_tokens"`
	TotalTokens           int `json:"total_tokens"`
	PrecachedPromptTokens int `json:"precached_prompt_tokens,omitempty"`
}

type wireDelta struct {
	Role             string            `json:"role,omitempty"`
	Content          string            `json:"content,omitempty"`
	FunctionCall     *wireFunctionCall `json:"function_call,omitempty"`
	FunctionsStateID string            `json:"functions_state_id,omitempty"`
}

type wireStreamChoice struct {
	Index        int       `json:"index"`
	Delta        wireDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type wireStreamResponse struct {
	Created int64              `json:"created"`
	Choices []wireStreamChoice `json:"choices"`
	Usage   *wireUsage         `json:"usage,omitempty"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireResponse struct {
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage,omitempty"`
}

// Mapper is the GigaChat wire mapper.
type Mapper struct{}

func New() Mapper { return Mapper{} }

func (Mapper) EncodeRequest(req *core.ChatRequest) ([]byte, error) {
	wr := wireRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      true,
		MaxTokens:   req.MaxTokens,
	}

	wr.Messages = buildMessages(req.Messages)
	wr.Functions = mapTools(req.Tools)
	wr.FunctionCall = mapToolChoice(req.ToolChoice)

	return json.Marshal(wr)
}

// buildMessages merges system messages into one turn at the position of
// the first, and drops assistant "preamble" messages sitting between a
// tool_call and its matching tool response.
func buildMessages(messages []core.Message) []wireMessage {
	merged, ok := mergeSystemMessages(messages)

	var out []wireMessage
	injectedSystem := false
	var pendingToolCallID string

	for i, msg := range messages {
		if msg.Role == core.RoleSystem {
			if !injectedSystem && ok {
				out = append(out, merged)
				injectedSystem = true
			}
			continue
		}

		if isPreambleAssistantMessage(messages, i, pendingToolCallID) {
			continue
		}

		wm, trackedToolCallID := buildMessage(msg)
		if trackedToolCallID != "" {
			pendingToolCallID = trackedToolCallID
		}
		if msg.Role == core.RoleTool && msg.ToolCallID == pendingToolCallID {
			pendingToolCallID = ""
		}

		out = append(out, wm)
	}
	return out
}

func mergeSystemMessages(messages []core.Message) (wireMessage, bool) {
	var parts []string
	var firstName string
	seenFirst := false
	for _, msg := range messages {
		if msg.Role != core.RoleSystem {
			continue
		}
		text := core.TextOf(msg.Content)
		if msg.Name != "" {
			text = "[" + msg.Name + "] " + text
		}
		if !seenFirst {
			firstName = msg.Name
			seenFirst = true
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return wireMessage{}, false
	}
	return wireMessage{Role: core.RoleSystem, Content: strings.Join(parts, "\n\n"), Name: firstName}, true
}

// isPreambleAssistantMessage reports whether messages[idx] is an assistant
// turn with no tool call, sitting between an outstanding tool call and its
// matching tool response — GigaChat doesn't expect commentary there.
func isPreambleAssistantMessage(messages []core.Message, idx int, pendingToolCallID string) bool {
	msg := messages[idx]
	if msg.Role != core.RoleAssistant || len(msg.ToolCalls) > 0 || pendingToolCallID == "" {
		return false
	}
	for _, future := range messages[idx+1:] {
		if future.Role == core.RoleTool && future.ToolCallID == pendingToolCallID {
			return true
		}
		if future.Role == core.RoleAssistant || future.Role == core.RoleUser {
			break
		}
	}
	return false
}

func buildMessage(msg core.Message) (wireMessage, string) {
	role := msg.Role
	if role == core.RoleTool {
		role = "function"
	}
	wm := wireMessage{Role: role, Content: core.TextOf(msg.Content)}
	if role == "function" || msg.Name != "" {
		wm.Name = msg.Name
	}

	var trackedToolCallID string
	if msg.Role == core.RoleAssistant && len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		wm.Content = ""
		wm.FunctionCall = &wireFunctionCall{Name: tc.Func.Name, Arguments: parseArguments(tc.Func.Arguments)}
		wm.FunctionsStateID = tc.ID
		trackedToolCallID = tc.ID
	}
	return wm, trackedToolCallID
}

// parseArguments renders tool-call arguments as a parsed JSON object when
// possible, falling back to the raw string (GigaChat accepts either).
func parseArguments(raw string) any {
	var parsed map[string]any
	if json.Unmarshal([]byte(raw), &parsed) == nil {
		return parsed
	}
	return raw
}

func mapTools(tools []core.Tool) []wireFunction {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireFunction, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireFunction{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	return out
}

func mapToolChoice(tc *core.ToolChoice) any {
	if tc == nil {
		return nil
	}
	switch tc.Mode {
	case "none", "auto":
		return tc.Mode
	}
	if tc.Function != nil {
		return wireFunctionCallChoice{Name: tc.Function.Name}
	}
	return nil
}

// ParseSSELine implements the "data: <json>" framing GigaChat shares with
// the OpenAI-compatible upstreams.
func (Mapper) ParseSSELine(line []byte) (frame []byte, ok bool, done bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
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

func (Mapper) DecodeChunk(frame []byte, state *core.MapperState) ([]core.StreamChunk, error) {
	var wr wireStreamResponse
	if err := json.Unmarshal(frame, &wr); err != nil {
		return nil, err
	}

	chunk := core.StreamChunk{
		Created: wr.Created,
		Object:  "chat.completion.chunk",
		Usage:   decodeUsage(wr.Usage),
	}

	for _, c := range wr.Choices {
		role := c.Delta.Role
		if role == "" {
			role = core.RoleAssistant
		}

		delta := core.Delta{Role: role, Content: c.Delta.Content}
		if c.Delta.FunctionCall != nil {
			delta.Content = ""
			delta.ToolCalls = functionCallToToolCalls(c.Delta.FunctionCall, c.Delta.FunctionsStateID)
		}

		finishReason := c.FinishReason
		if finishReason != nil && *finishReason == "function_call" {
			mapped := "tool_calls"
			finishReason = &mapped
		}
		if finishReason != nil {
			state.SeenFinishReason = true
		}

		chunk.Choices = append(chunk.Choices, core.StreamChoice{
			Index:        c.Index,
			Delta:        delta,
			FinishReason: finishReason,
		})
	}

	return []core.StreamChunk{chunk}, nil
}

func (Mapper) DecodeResponse(body []byte) (*core.ChatResponse, error) {
	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, err
	}
	resp := &core.ChatResponse{Created: wr.Created, Model: wr.Model, Object: "chat.completion"}
	if u := decodeUsage(wr.Usage); u != nil {
		resp.Usage = *u
	}
	for _, c := range wr.Choices {
		msg := core.Message{Role: c.Message.Role, Content: core.TextContent(c.Message.Content), Name: c.Message.Name}
		finishReason := c.FinishReason
		if c.Message.FunctionCall != nil {
			msg.Content = core.TextContent("")
			msg.ToolCalls = functionCallToToolCalls(c.Message.FunctionCall, c.Message.FunctionsStateID)
			if finishReason == "function_call" {
				finishReason = "tool_calls"
			}
		}
		resp.Choices = append(resp.Choices, core.ChatChoice{Index: c.Index, Message: msg, FinishReason: finishReason})
	}
	return resp, nil
}

func functionCallToToolCalls(fc *wireFunctionCall, functionsStateID string) []core.ToolCall {
	id := functionsStateID
	if id == "" {
		id = "gc_call_" + uuid.NewString()
	}
	var args string
	switch v := fc.Arguments.(type) {
	case string:
		args = v
	case nil:
		args = ""
	default:
		raw, _ := json.Marshal(v)
		args = string(raw)
	}
	return []core.ToolCall{{
		ID:   id,
		Type: "function",
		Func: core.ToolCallFunc{Name: fc.Name, Arguments: args},
	}}
}

func decodeUsage(wu *wireUsage) *core.Usage {
	if wu == nil {
		return nil
	}
	u := &core.Usage{PromptTokens: wu.PromptTokens, CompletionTokens: wu.CompletionTokens, TotalTokens: wu.TotalTokens}
	if wu.PrecachedPromptTokens > 0 {
		u.PromptTokensDetails = &core.PromptTokensDetails{CachedTokens: wu.PrecachedPromptTokens}
	}
	return u
}
