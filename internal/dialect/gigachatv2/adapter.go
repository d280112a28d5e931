// Package gigachatv2 implements the C5 dialect adapter for GigaChat Chat
// API v2 compatibility (/api/v2/gigachat/completions): content is a list
// of typed items (text/function_call/function_result) per message rather
// than v1's flat string+function_call fields, grounded on
// original_source/src/api/routes/gigachat_completions.py's
// _map_v2_messages/_map_to_v2_response.
package gigachatv2

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/dialect"
)

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type functionResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

type contentItem struct {
	Text           string          `json:"text,omitempty"`
	FunctionCall   *functionCall   `json:"function_call,omitempty"`
	FunctionResult *functionResult `json:"function_result,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentItem `json:"content,omitempty"`
	Call    *struct {
		Name string `json:"name"`
	} `json:"call,omitempty"`
}

type function struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  string `json:"parameters,omitempty"`
}

type reasoning struct {
	Effort string `json:"effort,omitempty"`
}

type options struct {
	Temperature *float64   `json:"temperature,omitempty"`
	TopP        *float64   `json:"top_p,omitempty"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	Stream      bool       `json:"stream,omitempty"`
	Reasoning   *reasoning `json:"reasoning,omitempty"`
}

type request struct {
	Model     string     `json:"model"`
	Messages  []message  `json:"messages"`
	Functions []function `json:"functions,omitempty"`
	Options   options    `json:"options"`
}

// Adapter implements dialect.Adapter for GigaChat Chat API v2.
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
	if req.Options.Reasoning != nil && req.Options.Reasoning.Effort != "" {
		out.Reasoning = &core.ReasoningConfig{Effort: req.Options.Reasoning.Effort}
	}
	if len(req.Functions) > 0 {
		out.Tools = mapFunctionsToTools(req.Functions)
	}
	if tc := pickExplicitToolChoice(req.Messages); tc != nil {
		out.ToolChoice = tc
	}

	pendingCallID := map[string]string{}
	for _, m := range req.Messages {
		text := extractText(m.Content)
		role := m.Role
		switch role {
		case core.RoleSystem, core.RoleUser, core.RoleAssistant:
		case "reasoning":
			role = core.RoleAssistant
		default:
			role = core.RoleUser
		}
		if text != "" {
			out.Messages = append(out.Messages, core.Message{Role: role, Content: core.TextContent(text)})
		}

		for _, item := range m.Content {
			if item.FunctionCall != nil && item.FunctionCall.Name != "" {
				callID := "call_" + uuid.New().String()
				pendingCallID[item.FunctionCall.Name] = callID
				out.Messages = append(out.Messages, core.Message{
					Role:    core.RoleAssistant,
					Content: core.TextContent(""),
					ToolCalls: []core.ToolCall{{
						ID:   callID,
						Type: "function",
						Func: core.ToolCallFunc{Name: item.FunctionCall.Name, Arguments: item.FunctionCall.Arguments},
					}},
				})
			}
			if item.FunctionResult != nil && item.FunctionResult.Name != "" {
				callID := pendingCallID[item.FunctionResult.Name]
				if callID == "" {
					callID = "call_" + uuid.New().String()
				}
				out.Messages = append(out.Messages, core.Message{
					Role:       core.RoleTool,
					ToolCallID: callID,
					Name:       item.FunctionResult.Name,
					Content:    core.TextContent(item.FunctionResult.Result),
				})
			}
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

func extractText(items []contentItem) string {
	text := ""
	for _, it := range items {
		if it.Text != "" {
			text += it.Text
		}
	}
	return text
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
	Messages     []message `json:"messages"`
	FinishReason string    `json:"finish_reason"`
	Index        int       `json:"index"`
	TokenIDs     []int     `json:"token_ids"`
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

func assistantToV2Messages(m core.Message) []message {
	var items []contentItem
	if text := core.TextOf(m.Content); text != "" {
		items = append(items, contentItem{Text: text})
	}
	for _, tc := range m.ToolCalls {
		if tc.Func.Name == "" {
			continue
		}
		items = append(items, contentItem{FunctionCall: &functionCall{Name: tc.Func.Name, Arguments: tc.Func.Arguments}})
	}
	return []message{{Role: core.RoleAssistant, Content: items}}
}

func deltaToV2Messages(d core.Delta) []message {
	var items []contentItem
	if d.Content != "" {
		items = append(items, contentItem{Text: d.Content})
	}
	for _, tc := range d.ToolCalls {
		if tc.Func.Name == "" {
			continue
		}
		items = append(items, contentItem{FunctionCall: &functionCall{Name: tc.Func.Name, Arguments: tc.Func.Arguments}})
	}
	role := d.Role
	if role == "" {
		role = core.RoleAssistant
	}
	out := []message{{Role: role, Content: items}}
	if d.Reasoning != "" {
		out = append(out, message{Role: "reasoning", Content: []contentItem{{Text: d.Reasoning}}})
	}
	return out
}

func (Adapter) WriteResponse(w io.Writer, resp *core.ChatResponse, rc *core.RequestContext) error {
	out := response{Answer: answer{
		Usage:          toUsage(resp.Usage),
		ModelInfo:      modelInfo{Name: resp.Model, Version: "v2"},
		Timestamp:      resp.Created,
		AdditionalData: map[string]string{},
	}}
	for _, c := range resp.Choices {
		out.Answer.Alternatives = append(out.Answer.Alternatives, alternative{
			Messages:     assistantToV2Messages(c.Message),
			FinishReason: mapFinishReason(c.FinishReason),
			Index:        c.Index,
			TokenIDs:     []int{},
		})
	}
	return json.NewEncoder(w).Encode(out)
}

func (Adapter) WriteStreamChunk(w io.Writer, chunk *core.StreamChunk, rc *core.RequestContext) (bool, error) {
	out := response{Answer: answer{
		Usage:          usage{},
		ModelInfo:      modelInfo{Name: chunk.Model, Version: "v2"},
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
			Messages:     deltaToV2Messages(c.Delta),
			FinishReason: mapFinishReason(finish),
			Index:        c.Index,
			TokenIDs:     []int{},
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
