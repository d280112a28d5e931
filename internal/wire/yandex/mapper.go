// Package yandex implements the YandexGPT wire mapper (§4.C3.3): modelUri
// construction, per-message single-shape conversion, and cumulative-to-
// delta text diffing.
package yandex

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
)

// modelMapping translates a caller-facing model id into the <model>/<tag>
// suffix of a Yandex modelUri.
var modelMapping = map[string]string{
	"yandexgpt5-pro:latest":  "yandexgpt/latest",
	"yandexgpt5.1-pro:rc":    "yandexgpt/rc",
	"yandexgpt-lite5:latest": "yandexgpt-lite/latest",
	"aliceai-llm:latest":     "aliceai-llm/latest",
}

type wireToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireTool struct {
	Function wireToolFunction `json:"function"`
}

type wireToolChoice struct {
	Mode         string `json:"mode,omitempty"`
	FunctionName string `json:"functionName,omitempty"`
}

type wireFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type wireToolCallList struct {
	ToolCalls []wireToolCallEntry `json:"toolCalls"`
}

type wireToolCallEntry struct {
	FunctionCall wireFunctionCall `json:"functionCall"`
}

type wireFunctionResult struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type wireToolResultList struct {
	ToolResults []wireToolResultEntry `json:"toolResults"`
}

type wireToolResultEntry struct {
	FunctionResult wireFunctionResult `json:"functionResult"`
}

type wireMessage struct {
	Role           string              `json:"role"`
	Text           string              `json:"text,omitempty"`
	ToolCallList   *wireToolCallList   `json:"toolCallList,omitempty"`
	ToolResultList *wireToolResultList `json:"toolResultList,omitempty"`
}

type wireReasoningOptions struct {
	Mode string `json:"mode"`
}

type wireCompletionOptions struct {
	Stream           bool                  `json:"stream"`
	Temperature      float64               `json:"temperature"`
	MaxTokens        int                   `json:"maxTokens,omitempty"`
	ReasoningOptions *wireReasoningOptions `json:"reasoningOptions,omitempty"`
}

type wireRequest struct {
	ModelURI          string                `json:"modelUri"`
	Messages          []wireMessage         `json:"messages"`
	CompletionOptions wireCompletionOptions `json:"completionOptions"`
	Tools             []wireTool            `json:"tools,omitempty"`
	ToolChoice        *wireToolChoice       `json:"toolChoice,omitempty"`
}

type wireCompletionTokensDetails struct {
	ReasoningTokens string `json:"reasoningTokens,omitempty"`
}

type wireUsage struct {
	InputTextTokens         string                       `json:"inputTextTokens"`
	CompletionTokens        string                       `json:"completionTokens"`
	TotalTokens             string                       `json:"totalTokens"`
	CompletionTokensDetails *wireCompletionTokensDetails `json:"completionTokensDetails,omitempty"`
}

type wireAlternativeMessage struct {
	Role         string            `json:"role"`
	Text         string            `json:"text,omitempty"`
	ToolCallList *wireToolCallList `json:"toolCallList,omitempty"`
}

type wireAlternative struct {
	Status  string                  `json:"status"`
	Message wireAlternativeMessage `json:"message"`
}

type wireResult struct {
	Alternatives []wireAlternative `json:"alternatives"`
	Usage        *wireUsage        `json:"usage,omitempty"`
}

type wireResponse struct {
	Result wireResult `json:"result"`
}

const (
	statusFinal     = "ALTERNATIVE_STATUS_FINAL"
	statusToolCalls = "ALTERNATIVE_STATUS_TOOL_CALLS"
)

// Mapper is the Yandex wire mapper. It is bound to one resolved provider
// binding (folder id) at construction, per request, rather than keeping a
// process-wide map.
type Mapper struct {
	FolderID string
}

func New(folderID string) Mapper {
	return Mapper{FolderID: folderID}
}

func (m Mapper) modelURI(modelID string) (string, error) {
	if m.FolderID == "" {
		return "", apperr.Internal("yandex folder id not configured", nil)
	}
	name, ok := modelMapping[strings.ToLower(modelID)]
	if !ok {
		return "", apperr.BadRequest("unsupported yandex model: " + modelID)
	}
	return "gpt://" + m.FolderID + "/" + name, nil
}

func (m Mapper) EncodeRequest(req *core.ChatRequest) ([]byte, error) {
	uri, err := m.modelURI(req.Model)
	if err != nil {
		return nil, err
	}

	temperature := 0.3
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	wr := wireRequest{
		ModelURI: uri,
		Messages: convertMessages(req.Messages),
		CompletionOptions: wireCompletionOptions{
			Stream:      true,
			Temperature: temperature,
			MaxTokens:   req.MaxTokens,
		},
	}

	if req.Reasoning != nil {
		wr.CompletionOptions.ReasoningOptions = &wireReasoningOptions{Mode: "ENABLED_HIDDEN"}
	}

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			wr.Tools = append(wr.Tools, wireTool{Function: wireToolFunction{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			}})
		}
	}

	if req.ToolChoice != nil {
		if req.ToolChoice.Function != nil && req.ToolChoice.Function.Name != "" {
			wr.ToolChoice = &wireToolChoice{FunctionName: req.ToolChoice.Function.Name}
		} else {
			mode := strings.ToUpper(req.ToolChoice.Mode)
			if mode == "NONE" || mode == "AUTO" || mode == "REQUIRED" {
				wr.ToolChoice = &wireToolChoice{Mode: mode}
			}
		}
	}

	return json.Marshal(wr)
}

// convertMessages converts internal messages to Yandex's single-of shape,
// dropping assistant preamble turns between a tool_call and its matching
// tool response (same heuristic as GigaChat).
func convertMessages(messages []core.Message) []wireMessage {
	var out []wireMessage
	var pendingToolCallID string

	for i, msg := range messages {
		if isPreambleAssistantMessage(messages, i, pendingToolCallID) {
			continue
		}

		var wm *wireMessage
		switch msg.Role {
		case core.RoleUser, core.RoleSystem:
			wm = &wireMessage{Role: msg.Role, Text: core.TextOf(msg.Content)}
		case core.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				wm = &wireMessage{Role: msg.Role, ToolCallList: toolCallList(msg.ToolCalls)}
				pendingToolCallID = msg.ToolCalls[0].ID
			} else if text := core.TextOf(msg.Content); strings.TrimSpace(text) != "" {
				wm = &wireMessage{Role: msg.Role, Text: text}
			}
		case core.RoleTool:
			wm = &wireMessage{Role: core.RoleUser, ToolResultList: toolResultList(msg.Name, core.TextOf(msg.Content))}
			if msg.ToolCallID == pendingToolCallID {
				pendingToolCallID = ""
			}
		}

		if wm != nil {
			out = append(out, *wm)
		}
	}
	return out
}

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

func toolCallList(calls []core.ToolCall) *wireToolCallList {
	entries := make([]wireToolCallEntry, 0, len(calls))
	for _, tc := range calls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Func.Arguments), &args)
		entries = append(entries, wireToolCallEntry{FunctionCall: wireFunctionCall{Name: tc.Func.Name, Arguments: args}})
	}
	return &wireToolCallList{ToolCalls: entries}
}

func toolResultList(name, content string) *wireToolResultList {
	return &wireToolResultList{ToolResults: []wireToolResultEntry{{
		FunctionResult: wireFunctionResult{Name: name, Content: content},
	}}}
}

// ParseSSELine handles Yandex's "data: <json>" framing. Yandex never sends
// a terminal [DONE] marker; termination is detected from alternative.status
// in DecodeChunk instead.
func (Mapper) ParseSSELine(line []byte) (frame []byte, ok bool, done bool) {
	s := strings.TrimSpace(string(line))
	if s == "" {
		return nil, false, false
	}
	if strings.HasPrefix(s, "data:") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "data:"))
	}
	if s == "" {
		return nil, false, false
	}
	return []byte(s), true, false
}

func (Mapper) DecodeChunk(frame []byte, state *core.MapperState) ([]core.StreamChunk, error) {
	var wr wireResponse
	if err := json.Unmarshal(frame, &wr); err != nil {
		return nil, err
	}
	if len(wr.Result.Alternatives) == 0 {
		return nil, nil
	}
	alt := wr.Result.Alternatives[0]

	usage := decodeUsage(wr.Result.Usage)

	var choice core.StreamChoice
	switch alt.Status {
	case statusToolCalls:
		var toolCalls []core.ToolCall
		if alt.Message.ToolCallList != nil {
			for i, tc := range alt.Message.ToolCallList.ToolCalls {
				idx := i
				args, _ := json.Marshal(tc.FunctionCall.Arguments)
				toolCalls = append(toolCalls, core.ToolCall{
					ID:    "ya_call_" + uuid.NewString(),
					Type:  "function",
					Index: &idx,
					Func:  core.ToolCallFunc{Name: tc.FunctionCall.Name, Arguments: string(args)},
				})
			}
		}
		finish := "tool_calls"
		choice = core.StreamChoice{
			Index:        0,
			Delta:        core.Delta{Role: core.RoleAssistant, ToolCalls: toolCalls},
			FinishReason: &finish,
		}
		state.SeenFinishReason = true
		state.PreviousText = ""

	default:
		currentText := alt.Message.Text
		previousText := state.PreviousText
		deltaText := currentText
		if previousText != "" && strings.HasPrefix(currentText, previousText) {
			deltaText = currentText[len(previousText):]
		}
		state.PreviousText = currentText

		role := alt.Message.Role
		if role == "" {
			role = core.RoleAssistant
		}

		var finishReason *string
		if alt.Status == statusFinal {
			f := "stop"
			finishReason = &f
			state.SeenFinishReason = true
			state.PreviousText = ""
		}

		choice = core.StreamChoice{
			Index:        0,
			Delta:        core.Delta{Role: role, Content: deltaText},
			FinishReason: finishReason,
		}
	}

	return []core.StreamChunk{{
		Object:  "chat.completion.chunk",
		Choices: []core.StreamChoice{choice},
		Usage:   usage,
	}}, nil
}

func decodeUsage(wu *wireUsage) *core.Usage {
	if wu == nil {
		return nil
	}
	u := &core.Usage{
		PromptTokens:     atoi(wu.InputTextTokens),
		CompletionTokens: atoi(wu.CompletionTokens),
		TotalTokens:      atoi(wu.TotalTokens),
	}
	if wu.CompletionTokensDetails != nil && wu.CompletionTokensDetails.ReasoningTokens != "" {
		u.CompletionTokensDetails = &core.CompletionTokensDetails{ReasoningTokens: atoi(wu.CompletionTokensDetails.ReasoningTokens)}
	}
	return u
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// DecodeResponse assembles a non-streaming response by running the whole
// body through DecodeChunk once — Yandex's non-stream and final-stream-
// chunk shapes are identical.
func (m Mapper) DecodeResponse(body []byte) (*core.ChatResponse, error) {
	state := &core.MapperState{}
	chunks, err := m.DecodeChunk(body, state)
	if err != nil {
		return nil, err
	}
	resp := &core.ChatResponse{Object: "chat.completion"}
	for _, c := range chunks {
		for _, ch := range c.Choices {
			finishReason := ""
			if ch.FinishReason != nil {
				finishReason = *ch.FinishReason
			}
			resp.Choices = append(resp.Choices, core.ChatChoice{
				Index: ch.Index,
				Message: core.Message{
					Role:      ch.Delta.Role,
					Content:   core.TextContent(ch.Delta.Content),
					ToolCalls: ch.Delta.ToolCalls,
				},
				FinishReason: finishReason,
			})
		}
		if c.Usage != nil {
			resp.Usage = *c.Usage
		}
	}
	return resp, nil
}
