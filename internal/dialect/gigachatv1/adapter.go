// Package gigachatv1 implements the C5 dialect adapter for GigaChat Chat
// API v1 compatibility (/api/v1/gigachat/completions): per-message
// function_call/function_name fields instead of OpenAI's tool_calls
// array, and a single alternatives[] answer instead of choices[], grounded
// on original_source/src/api/routes/gigachat_completions.py's
// _map_v1_messages/_map_to_v1_response.
package gigachatv1

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/dialect"
	"github.com/google/uuid"
)

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type message struct {
	Role             string        `json:"role"`
	Content          string        `json:"content"`
	FunctionName     string        `json:"function_name,omitempty"`
	FunctionCall     *functionCall `json:"function_call,omitempty"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	Call             *struct {
		Name string `json:"name"`
	} `json:"call,omitempty"`
}

type function struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  string `json:"parameters,omitempty"`
}

type options struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	MaxTokens       *int     `json:"max_tokens,omitempty"`
	Stream          bool     `json:"stream,omitempty"`
	ReasoningEffort string   `json:"reasoning_effort,omitempty"`
}

type request struct {
	Model     string     `json:"model"`
	Messages  []message  `json:"messages"`
	Functions []function `json:"functions,omitempty"`
	Options   options    `json:"options"`
}

// Adapter implements dialect.Adapter for GigaChat Chat API v1.
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

	out := &core.ChatRequest{
		Model:       req.Model,
		Temperature: req.Options.Temperature,
		TopP:        req.Options.TopP,
		Stream:      req.Options.Stream,
		MaxTokens:   derefInt(req.Options.MaxTokens),
	}
	if req.Options.ReasoningEffort != "" && req.Options.ReasoningEffort != "off" {
		out.Reasoning = &core.ReasoningConfig{Effort: req.Options.ReasoningEffort}
	}
	if len(req.Functions) > 0 {
		out.Tools = mapFunctionsToTools(req.Functions)
	}
	if tc := pickExplicitToolChoice(req.Messages); tc != nil {
		out.ToolChoice = tc
	}

	pendingCallID := map[string]string{}
	for _, m := range req.Messages {
		switch m.Role {
		case core.RoleSystem, core.RoleUser:
			out.Messages = append(out.Messages, core.Message{Role: m.Role, Content: core.TextContent(m.Content)})

		case core.RoleAssistant:
			msg := core.Message{Role: core.RoleAssistant, Content: core.TextContent(m.Content)}
			if m.FunctionCall != nil && m.FunctionCall.Name != "" {
				callID := "call_" + uuid.New().String()
				pendingCallID[m.FunctionCall.Name] = callID
				msg.Content = core.TextContent("")
				msg.ToolCalls = []core.ToolCall{{
					ID:   callID,
					Type: "function",
					Func: core.ToolCallFunc{Name: m.FunctionCall.Name, Arguments: m.FunctionCall.Arguments},
				}}
			}
			out.Messages = append(out.Messages, msg)

		case "function":
			callID := pendingCallID[m.FunctionName]
			if callID == "" {
				callID = "call_" + uuid.New().String()
			}
			out.Messages = append(out.Messages, core.Message{
				Role:       core.RoleTool,
				ToolCallID: callID,
				Name:       m.FunctionName,
				Content:    core.TextContent(m.Content),
			})

		default:
			out.Messages = append(out.Messages, core.Message{Role: core.RoleUser, Content: core.TextContent(m.Content)})
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

func mapFunctionsToTools(fns []function) []core.Tool {
	tools := make([]core.Tool, 0, len(fns))
	for _, fn := range fns {
		params := map[string]any{}
		if fn.Parameters != "" {
			_ = json.Unmarshal([]byte(fn.Parameters), &params)
		}
		tools = append(tools, core.Tool{
			Type: "function",
			Function: core.ToolFunction{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func pickExplicitToolChoice(messages []message) *core.ToolChoice {
	for _, m := range messages {
		if m.Call != nil && m.Call.Name != "" {
			return &core.ToolChoice{Function: &core.ToolFunction{Name: m.Call.Name}}
		}
	}
	return nil
}

func mapFinishReason(reason string) string {
	if reason == "tool_calls" {
		return "function_call"
	}
	if reason == "" {
		return "stop"
	}
	return reason
}

type usage struct {
	PromptTokens                       int `json:"prompt_tokens"`
	CompletionTokens                   int `json:"completion_tokens"`
	TotalTokens                        int `json:"total_tokens"`
	SystemTokens                       int `json:"system_tokens"`
	FunctionSuggesterTokens            int `json:"function_suggester_tokens"`
	PrecachedPromptTokens              int `json:"precached_prompt_tokens"`
	UnaccountedFunctionSuggesterTokens int `json:"unaccounted_function_suggester_tokens"`
	DeveloperSystemTokens              int `json:"developer_system_tokens"`
}

func toUsage(u core.Usage) usage {
	cached := 0
	if u.PromptTokensDetails != nil {
		cached = u.PromptTokensDetails.CachedTokens
	}
	return usage{
		PromptTokens:          u.PromptTokens,
		CompletionTokens:      u.CompletionTokens,
		TotalTokens:           u.TotalTokens,
		PrecachedPromptTokens: cached,
	}
}

type modelInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type alternative struct {
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
	Index        int     `json:"index"`
}

type answer struct {
	Alternatives   []alternative     `json:"alternatives"`
	Usage          usage             `json:"usage"`
	ModelInfo      modelInfo         `json:"model_info"`
	Timestamp      int64             `json:"timestamp"`
	AdditionalData map[string]string `json:"additional_data"`
}

type response struct {
	Answer answer `json:"answer"`
}

func assistantToV1Message(m core.Message) message {
	out := message{Role: core.RoleAssistant, Content: core.TextOf(m.Content)}
	if len(m.ToolCalls) > 0 {
		tc := m.ToolCalls[0]
		out.FunctionCall = &functionCall{Name: tc.Func.Name, Arguments: tc.Func.Arguments}
	}
	return out
}

func (Adapter) WriteResponse(w io.Writer, resp *core.ChatResponse, rc *core.RequestContext) error {
	out := response{Answer: answer{
		Usage:          toUsage(resp.Usage),
		ModelInfo:      modelInfo{Name: resp.Model, Version: "v1"},
		Timestamp:      resp.Created,
		AdditionalData: map[string]string{},
	}}
	for _, c := range resp.Choices {
		out.Answer.Alternatives = append(out.Answer.Alternatives, alternative{
			Message:      assistantToV1Message(c.Message),
			FinishReason: mapFinishReason(c.FinishReason),
			Index:        c.Index,
		})
	}
	return json.NewEncoder(w).Encode(out)
}

func deltaToV1Message(d core.Delta) message {
	out := message{Role: d.Role, Content: d.Content, ReasoningContent: d.Reasoning}
	if out.Role == "" {
		out.Role = core.RoleAssistant
	}
	if len(d.ToolCalls) > 0 {
		tc := d.ToolCalls[0]
		out.FunctionCall = &functionCall{Name: tc.Func.Name, Arguments: tc.Func.Arguments}
	}
	return out
}

func (Adapter) WriteStreamChunk(w io.Writer, chunk *core.StreamChunk, rc *core.RequestContext) (bool, error) {
	out := response{Answer: answer{
		Usage:          usage{},
		ModelInfo:      modelInfo{Name: chunk.Model, Version: "v1"},
		Timestamp:      chunk.Created,
		AdditionalData: map[string]string{},
	}}
	if chunk.Usage != nil {
		out.Answer.Usage = toUsage(*chunk.Usage)
	}
	for _, c := range chunk.Choices {
		finish := ""
		if c.FinishReason != nil {
			finish = *c.FinishReason
		}
		out.Answer.Alternatives = append(out.Answer.Alternatives, alternative{
			Message:      deltaToV1Message(c.Delta),
			FinishReason: mapFinishReason(finish),
			Index:        c.Index,
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
