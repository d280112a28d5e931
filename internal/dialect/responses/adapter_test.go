package responses

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
)

func TestParseRequest_PlainStringInput(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","input":"hello there"}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, core.RoleUser, req.Messages[0].Role)
	assert.Equal(t, core.TextContent("hello there"), req.Messages[0].Content)
}

func TestParseRequest_MissingModel(t *testing.T) {
	_, _, err := New().ParseRequest([]byte(`{"input":"hi"}`))
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).Code)
}

func TestParseRequest_InstructionsBecomeLeadingSystemMessage(t *testing.T) {
	body := []byte(`{"model":"m","instructions":"be terse","input":"hi"}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, core.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, core.TextContent("be terse"), req.Messages[0].Content)
}

func TestParseRequest_ItemListWithFunctionCallAndOutput(t *testing.T) {
	body := []byte(`{
		"model":"m",
		"input":[
			{"role":"user","content":"weather?"},
			{"type":"function_call","call_id":"call_1","name":"get_weather","arguments":"{}"},
			{"type":"function_call_output","call_id":"call_1","output":"22C"}
		]
	}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 3)

	assert.Equal(t, core.RoleAssistant, req.Messages[1].Role)
	require.Len(t, req.Messages[1].ToolCalls, 1)
	assert.Equal(t, "call_1", req.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "get_weather", req.Messages[1].ToolCalls[0].Func.Name)

	assert.Equal(t, core.RoleTool, req.Messages[2].Role)
	assert.Equal(t, "call_1", req.Messages[2].ToolCallID)
	assert.Equal(t, "get_weather", req.Messages[2].Name)
}

func TestParseRequest_DeveloperRoleMapsToSystem(t *testing.T) {
	body := []byte(`{"model":"m","input":[{"role":"developer","content":"be terse"},{"role":"user","content":"hi"}]}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, core.RoleSystem, req.Messages[0].Role)
}

func TestParseRequest_MultipleSystemSourcesAreMerged(t *testing.T) {
	body := []byte(`{
		"model":"m",
		"instructions":"first",
		"input":[{"role":"developer","content":"second"},{"role":"user","content":"hi"}]
	}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, core.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, core.TextContent("first\n\nsecond"), req.Messages[0].Content)
	assert.Equal(t, core.RoleUser, req.Messages[1].Role)
}

func TestParseRequest_ReasoningEffort(t *testing.T) {
	body := []byte(`{"model":"o1","input":"hi","reasoning":{"effort":"high"}}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	require.NotNil(t, req.Reasoning)
	assert.Equal(t, "high", req.Reasoning.Effort)
}

func TestParseRequest_ToolChoiceFunctionObject(t *testing.T) {
	body := []byte(`{"model":"m","input":"hi","tool_choice":{"type":"function","function":{"name":"lookup"}}}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	require.NotNil(t, req.ToolChoice)
	require.NotNil(t, req.ToolChoice.Function)
	assert.Equal(t, "lookup", req.ToolChoice.Function.Name)
}

func TestWriteResponse_TextAndToolCallOutput(t *testing.T) {
	var buf bytes.Buffer
	resp := &core.ChatResponse{
		Created: 1700000000,
		Choices: []core.ChatChoice{{
			Index: 0,
			Message: core.Message{
				Role:    core.RoleAssistant,
				Content: core.TextContent("the weather is nice"),
				ToolCalls: []core.ToolCall{
					{ID: "call_1", Type: "function", Func: core.ToolCallFunc{Name: "get_weather", Arguments: `{"city":"Moscow"}`}},
				},
			},
			FinishReason: "stop",
		}},
		Usage: core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	a := New()
	require.NoError(t, a.WriteResponse(&buf, resp, &core.RequestContext{}))
	out := buf.String()

	assert.Contains(t, out, `"status":"completed"`)
	assert.Contains(t, out, `"output_text":"the weather is nice"`)
	assert.Contains(t, out, `"type":"message"`)
	assert.Contains(t, out, `"type":"function_call"`)
	assert.Contains(t, out, `"call_id":"call_1"`)
	assert.Contains(t, out, `"name":"get_weather"`)
	assert.Contains(t, out, `"input_tokens":10`)
	assert.Contains(t, out, `"output_tokens":5`)
}

func TestWriteStreamChunk_EmitsCreatedOnFirstChunkOnly(t *testing.T) {
	a := New()
	var buf1, buf2 bytes.Buffer

	chunk1 := &core.StreamChunk{Created: 1700000000, Choices: []core.StreamChoice{{Index: 0, Delta: core.Delta{Content: "hi"}}}}
	done, err := a.WriteStreamChunk(&buf1, chunk1, &core.RequestContext{})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Contains(t, buf1.String(), "response.created")
	assert.Contains(t, buf1.String(), "response.output_item.added")
	assert.Contains(t, buf1.String(), "response.output_text.delta")

	chunk2 := &core.StreamChunk{Created: 1700000000, Choices: []core.StreamChoice{{Index: 0, Delta: core.Delta{Content: " there"}}}}
	done, err = a.WriteStreamChunk(&buf2, chunk2, &core.RequestContext{})
	require.NoError(t, err)
	assert.False(t, done)
	assert.NotContains(t, buf2.String(), "response.created")
	assert.Contains(t, buf2.String(), "response.output_text.delta")
}

func TestWriteStreamChunk_FinishEmitsCompletionAndAggregatesText(t *testing.T) {
	a := New()
	var buf bytes.Buffer

	_, err := a.WriteStreamChunk(&buf, &core.StreamChunk{Choices: []core.StreamChoice{{Index: 0, Delta: core.Delta{Content: "hi"}}}}, &core.RequestContext{})
	require.NoError(t, err)
	buf.Reset()

	fr := "stop"
	done, err := a.WriteStreamChunk(&buf, &core.StreamChunk{Choices: []core.StreamChoice{{Index: 0, Delta: core.Delta{Content: " there"}, FinishReason: &fr}}}, &core.RequestContext{})
	require.NoError(t, err)
	assert.True(t, done)
	out := buf.String()
	assert.Contains(t, out, "response.output_text.done")
	assert.Contains(t, out, "response.completed")
	assert.Contains(t, out, `"text":"hi there"`)
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
}

func TestWriteStreamChunk_BuffersToolCallArgumentsUntilFinish(t *testing.T) {
	a := New()
	var buf bytes.Buffer
	idx := 0

	_, err := a.WriteStreamChunk(&buf, &core.StreamChunk{
		Choices: []core.StreamChoice{{Index: 0, Delta: core.Delta{ToolCalls: []core.ToolCall{
			{Index: &idx, ID: "call_1", Func: core.ToolCallFunc{Name: "get_weather", Arguments: `{"city":`}},
		}}}},
	}, &core.RequestContext{})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "function_call")

	buf.Reset()
	_, err = a.WriteStreamChunk(&buf, &core.StreamChunk{
		Choices: []core.StreamChoice{{Index: 0, Delta: core.Delta{ToolCalls: []core.ToolCall{
			{Index: &idx, Func: core.ToolCallFunc{Arguments: `"Moscow"}`}},
		}}}},
	}, &core.RequestContext{})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "function_call")

	buf.Reset()
	fr := "tool_calls"
	done, err := a.WriteStreamChunk(&buf, &core.StreamChunk{
		Choices: []core.StreamChoice{{Index: 0, FinishReason: &fr}},
	}, &core.RequestContext{})
	require.NoError(t, err)
	assert.True(t, done)
	out := buf.String()
	assert.Contains(t, out, "response.output_item.added")
	assert.Contains(t, out, `"call_id":"call_1"`)
	assert.Contains(t, out, `"arguments":"{\"city\":\"Moscow\"}"`)
}

func TestWriteStreamChunk_AfterFinishedIsNoop(t *testing.T) {
	a := New()
	var buf bytes.Buffer
	fr := "stop"
	_, err := a.WriteStreamChunk(&buf, &core.StreamChunk{Choices: []core.StreamChoice{{Index: 0, FinishReason: &fr}}}, &core.RequestContext{})
	require.NoError(t, err)

	buf.Reset()
	done, err := a.WriteStreamChunk(&buf, &core.StreamChunk{Choices: []core.StreamChoice{{Index: 0, Delta: core.Delta{Content: "late"}}}}, &core.RequestContext{})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, buf.String())
}

func TestWriteStreamError(t *testing.T) {
	var buf bytes.Buffer
	err := New().WriteStreamError(&buf, apperr.Unauthorized("token is not active"))
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "authentication_error")
	assert.Contains(t, out, "data: [DONE]")
}
