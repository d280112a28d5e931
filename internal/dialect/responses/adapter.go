// Package responses implements the C5 dialect adapter for the OpenAI
// Responses API shape (/v1/responses, /api/v1/responses): a single
// "input" (string or item list, including function_call/
// function_call_output items) instead of "messages", and an
// event-stream protocol (response.created, response.output_item.added,
// response.output_text.delta, ...) instead of raw chat-completion
// chunks, grounded on
// original_source/src/api/routes/responses.py.
//
// Unlike the other dialect adapters, an Adapter here carries per-request
// stream state (aggregated text, buffered tool-call arguments, the
// synthetic response/item ids) — New must be called once per request, not
// shared across requests.
package responses

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/dialect"
)

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type inputItem struct {
	Type string `json:"type,omitempty"`

	// Plain message item fields.
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`

	// function_call item fields.
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output item fields.
	Output json.RawMessage `json:"output,omitempty"`
}

type request struct {
	Model           string          `json:"model"`
	Input           json.RawMessage `json:"input"`
	Instructions    string          `json:"instructions,omitempty"`
	Stream          bool            `json:"stream,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	MaxOutputTokens *int            `json:"max_output_tokens,omitempty"`
	Tools           []core.Tool     `json:"tools,omitempty"`
	ToolChoice      json.RawMessage `json:"tool_choice,omitempty"`
	Reasoning       *struct {
		Effort string `json:"effort"`
	} `json:"reasoning,omitempty"`
}

// Adapter implements dialect.Adapter for the Responses API. Construct one
// per request with New.
type Adapter struct {
	req *request

	responseID string
	itemID     string
	createdAt  int64

	aggregatedText string
	outputCount    int
	pending        map[string]*pendingToolCall
	emittedCreated bool
	finished       bool
}

type pendingToolCall struct {
	id        string
	name      string
	arguments string
	emitted   bool
}

func New() *Adapter {
	return &Adapter{pending: map[string]*pendingToolCall{}}
}

func (a *Adapter) ParseRequest(body []byte) (*core.ChatRequest, any, error) {
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, apperr.BadRequest("invalid JSON body: " + err.Error())
	}
	if req.Model == "" {
		return nil, nil, apperr.BadRequest("model is required")
	}
	a.req = &req

	messages, err := buildMessages(&req)
	if err != nil {
		return nil, nil, err
	}

	out := &core.ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		Tools:       req.Tools,
	}
	if req.MaxOutputTokens != nil {
		out.MaxTokens = *req.MaxOutputTokens
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		out.Reasoning = &core.ReasoningConfig{Effort: req.Reasoning.Effort}
	}
	if req.ToolChoice != nil {
		tc, err := decodeToolChoice(req.ToolChoice)
		if err == nil {
			out.ToolChoice = tc
		}
	}

	return out, &req, nil
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

// buildMessages normalizes request.input (bare string or item list) into
// internal messages, folding function_call/function_call_output items into
// assistant tool_calls / tool-role messages and merging every system/
// developer item into one leading system message.
func buildMessages(req *request) ([]core.Message, error) {
	var messages []core.Message
	if req.Instructions != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: core.TextContent(req.Instructions)})
	}

	var plainInput string
	if json.Unmarshal(req.Input, &plainInput) == nil {
		messages = append(messages, core.Message{Role: core.RoleUser, Content: core.TextContent(plainInput)})
		return mergeSystemMessages(messages), nil
	}

	var items []inputItem
	if err := json.Unmarshal(req.Input, &items); err != nil {
		return nil, apperr.BadRequest("invalid input: " + err.Error())
	}

	callIDToName := map[string]string{}
	for _, item := range items {
		if item.Type == "function_call" && item.CallID != "" && item.Name != "" {
			callIDToName[item.CallID] = item.Name
		}
	}

	for _, item := range items {
		switch item.Type {
		case "function_call":
			if item.CallID == "" || item.Name == "" {
				continue
			}
			messages = append(messages, core.Message{
				Role: core.RoleAssistant,
				ToolCalls: []core.ToolCall{{
					ID:   item.CallID,
					Type: "function",
					Func: core.ToolCallFunc{Name: item.Name, Arguments: item.Arguments},
				}},
			})

		case "function_call_output":
			if item.CallID == "" {
				continue
			}
			messages = append(messages, core.Message{
				Role:       core.RoleTool,
				ToolCallID: item.CallID,
				Name:       callIDToName[item.CallID],
				Content:    core.TextContent(normalizeToolOutput(item.Output)),
			})

		default:
			role := item.Role
			if role == "" {
				continue
			}
			if role == "developer" {
				role = core.RoleSystem
			}
			if role != core.RoleSystem && role != core.RoleUser && role != core.RoleAssistant {
				continue
			}
			messages = append(messages, core.Message{Role: role, Content: core.TextContent(extractText(item.Content))})
		}
	}

	return mergeSystemMessages(messages), nil
}

func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var parts []contentPart
	if json.Unmarshal(raw, &parts) == nil {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Text)
		}
		return b.String()
	}
	return ""
}

func normalizeToolOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		var probe any
		if json.Unmarshal([]byte(s), &probe) == nil {
			if _, ok := probe.(map[string]any); ok {
				return s
			}
		}
		wrapped, _ := json.Marshal(map[string]string{"output": s})
		return string(wrapped)
	}
	return string(raw)
}

// mergeSystemMessages folds every system-role message into one, placed at
// the position of the first one, joined by a blank line.
func mergeSystemMessages(messages []core.Message) []core.Message {
	var merged []core.Message
	var systemParts []string
	firstSystemIndex := -1

	for _, m := range messages {
		if m.Role != core.RoleSystem {
			merged = append(merged, m)
			continue
		}
		if firstSystemIndex == -1 {
			firstSystemIndex = len(merged)
		}
		if text := core.TextOf(m.Content); text != "" {
			systemParts = append(systemParts, text)
		}
	}

	if firstSystemIndex == -1 {
		return merged
	}

	combined := core.Message{Role: core.RoleSystem, Content: core.TextContent(strings.Join(systemParts, "\n\n"))}
	out := make([]core.Message, 0, len(merged)+1)
	out = append(out, merged[:firstSystemIndex]...)
	out = append(out, combined)
	out = append(out, merged[firstSystemIndex:]...)
	return out
}

// --- non-streaming response ---

type outputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outputMessage struct {
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Status  string       `json:"status"`
	Role    string       `json:"role"`
	Content []outputText `json:"content"`
}

type outputFunctionCall struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type usageDetails struct {
	CachedTokens    *int `json:"cached_tokens,omitempty"`
	ReasoningTokens *int `json:"reasoning_tokens,omitempty"`
}

type responsesUsage struct {
	InputTokens         int           `json:"input_tokens"`
	OutputTokens        int           `json:"output_tokens"`
	TotalTokens         int           `json:"total_tokens"`
	InputTokensDetails  *usageDetails `json:"input_tokens_details,omitempty"`
	OutputTokensDetails *usageDetails `json:"output_tokens_details,omitempty"`
}

type responsesResponse struct {
	ID              string          `json:"id"`
	Object          string          `json:"object"`
	CreatedAt       int64           `json:"created_at"`
	Status          string          `json:"status"`
	Model           string          `json:"model"`
	Output          []any           `json:"output"`
	Usage           *responsesUsage `json:"usage,omitempty"`
	Instructions    string          `json:"instructions,omitempty"`
	MaxOutputTokens *int            `json:"max_output_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	Tools           []core.Tool     `json:"tools,omitempty"`
	OutputText      string          `json:"output_text,omitempty"`
}

func buildUsage(u core.Usage) *responsesUsage {
	ru := &responsesUsage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
	if u.PromptTokensDetails != nil {
		ru.InputTokensDetails = &usageDetails{CachedTokens: &u.PromptTokensDetails.CachedTokens}
	}
	if u.CompletionTokensDetails != nil {
		ru.OutputTokensDetails = &usageDetails{ReasoningTokens: &u.CompletionTokensDetails.ReasoningTokens}
	}
	return ru
}

func (a *Adapter) baseResponse(status string) responsesResponse {
	return responsesResponse{
		ID:              a.responseID,
		Object:          "response",
		CreatedAt:       a.createdAt,
		Status:          status,
		Model:           a.req.Model,
		Instructions:    a.req.Instructions,
		MaxOutputTokens: a.req.MaxOutputTokens,
		Temperature:     a.req.Temperature,
		TopP:            a.req.TopP,
		Tools:           a.req.Tools,
	}
}

func (a *Adapter) WriteResponse(w io.Writer, resp *core.ChatResponse, rc *core.RequestContext) error {
	a.responseID = "resp_" + uuid.New().String()
	a.itemID = "msg_" + uuid.New().String()
	a.createdAt = resp.Created

	out := a.baseResponse("completed")
	out.Usage = buildUsage(resp.Usage)

	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		text := core.TextOf(msg.Content)
		out.Output = append(out.Output, outputMessage{
			Type: "message", ID: a.itemID, Status: "completed", Role: core.RoleAssistant,
			Content: []outputText{{Type: "output_text", Text: text}},
		})
		out.OutputText = text

		for i, tc := range msg.ToolCalls {
			if tc.Func.Name == "" {
				continue
			}
			callID := tc.ID
			if callID == "" {
				callID = fmt.Sprintf("call_%d", i)
			}
			out.Output = append(out.Output, outputFunctionCall{
				Type: "function_call", ID: "fc_" + callID, CallID: callID,
				Name: tc.Func.Name, Arguments: tc.Func.Arguments,
			})
		}
	}

	return json.NewEncoder(w).Encode(out)
}

// --- streaming ---

func (a *Adapter) writeEvent(w io.Writer, eventType string, data map[string]any) error {
	data["type"] = eventType
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, raw)
	return err
}

func (a *Adapter) ensureStarted(w io.Writer) error {
	if a.emittedCreated {
		return nil
	}
	a.emittedCreated = true
	a.responseID = "resp_" + uuid.New().String()
	a.itemID = "msg_" + uuid.New().String()

	created := a.baseResponse("in_progress")
	if err := a.writeEvent(w, "response.created", map[string]any{"response": created}); err != nil {
		return err
	}
	if err := a.writeEvent(w, "response.in_progress", map[string]any{"response": created}); err != nil {
		return err
	}
	item := outputMessage{Type: "message", ID: a.itemID, Status: "in_progress", Role: core.RoleAssistant, Content: []outputText{{Type: "output_text", Text: ""}}}
	return a.writeEvent(w, "response.output_item.added", map[string]any{"output_index": 0, "item": item})
}

func toolCallKey(tc core.ToolCall) string {
	if tc.Index != nil {
		return fmt.Sprintf("idx:%d", *tc.Index)
	}
	return "id:" + tc.ID
}

// WriteStreamChunk emits Responses-shaped SSE events for one internal
// chunk, buffering tool-call argument fragments until finish_reason
// arrives (the compatibility shim for providers, e.g. DeepSeek, that
// stream function arguments token-by-token through chat-completion
// deltas rather than native Responses argument-delta events).
func (a *Adapter) WriteStreamChunk(w io.Writer, chunk *core.StreamChunk, rc *core.RequestContext) (bool, error) {
	if a.finished {
		return true, nil
	}
	a.createdAt = chunk.Created
	if err := a.ensureStarted(w); err != nil {
		return false, err
	}

	finishSeen := false
	for _, c := range chunk.Choices {
		if c.FinishReason != nil {
			finishSeen = true
		}
		for _, tc := range c.Delta.ToolCalls {
			key := toolCallKey(tc)
			pending, ok := a.pending[key]
			if !ok {
				pending = &pendingToolCall{}
				a.pending[key] = pending
			}
			if tc.ID != "" {
				pending.id = tc.ID
			}
			if tc.Func.Name != "" {
				pending.name = tc.Func.Name
			}
			pending.arguments += tc.Func.Arguments
		}
		if c.Delta.Content == "" {
			continue
		}
		a.aggregatedText += c.Delta.Content
		if err := a.writeEvent(w, "response.output_text.delta", map[string]any{
			"output_index": 0, "item_id": a.itemID, "content_index": 0, "delta": c.Delta.Content,
		}); err != nil {
			return false, err
		}
	}

	if finishSeen {
		if err := a.emitPendingToolCalls(w); err != nil {
			return false, err
		}
		return true, a.emitCompletion(w)
	}
	return false, nil
}

func (a *Adapter) emitPendingToolCalls(w io.Writer) error {
	for _, pending := range a.pending {
		if pending.emitted || pending.name == "" {
			continue
		}
		pending.emitted = true
		callID := pending.id
		if callID == "" {
			a.outputCount++
			callID = fmt.Sprintf("call_%d", a.outputCount)
		}
		item := outputFunctionCall{Type: "function_call", ID: "fc_" + callID, CallID: callID, Name: pending.name, Arguments: pending.arguments}
		a.outputCount++
		if err := a.writeEvent(w, "response.output_item.added", map[string]any{"output_index": a.outputCount, "item": item}); err != nil {
			return err
		}
		if err := a.writeEvent(w, "response.output_item.done", map[string]any{"output_index": a.outputCount, "item": item}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) emitCompletion(w io.Writer) error {
	a.finished = true
	finalItem := outputMessage{Type: "message", ID: a.itemID, Status: "completed", Role: core.RoleAssistant, Content: []outputText{{Type: "output_text", Text: a.aggregatedText}}}

	if err := a.writeEvent(w, "response.output_text.done", map[string]any{
		"output_index": 0, "item_id": a.itemID, "content_index": 0, "text": a.aggregatedText,
	}); err != nil {
		return err
	}
	if err := a.writeEvent(w, "response.output_item.done", map[string]any{"output_index": 0, "item": finalItem}); err != nil {
		return err
	}

	completed := a.baseResponse("completed")
	completed.OutputText = a.aggregatedText
	completed.Output = []any{finalItem}
	if err := a.writeEvent(w, "response.completed", map[string]any{"response": completed}); err != nil {
		return err
	}
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}

func (a *Adapter) WriteStreamError(w io.Writer, e *apperr.Error) error {
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
