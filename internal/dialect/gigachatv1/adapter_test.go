package gigachatv1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/core"
)

func TestParseRequest_Basic(t *testing.T) {
	body := []byte(`{"model":"GigaChat","messages":[{"role":"user","content":"hi"}],"options":{"temperature":0.5}}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "GigaChat", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, core.RoleUser, req.Messages[0].Role)
}

func TestParseRequest_FunctionCallBecomesToolCall(t *testing.T) {
	body := []byte(`{
		"model":"GigaChat",
		"messages":[
			{"role":"user","content":"weather?"},
			{"role":"assistant","content":"","function_call":{"name":"get_weather","arguments":"{\"city\":\"Moscow\"}"}},
			{"role":"function","function_name":"get_weather","content":"22C"}
		],
		"functions":[{"name":"get_weather","description":"lookup weather"}]
	}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 3)

	assistant := req.Messages[1]
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "get_weather", assistant.ToolCalls[0].Func.Name)
	callID := assistant.ToolCalls[0].ID
	assert.NotEmpty(t, callID)

	toolMsg := req.Messages[2]
	assert.Equal(t, core.RoleTool, toolMsg.Role)
	assert.Equal(t, callID, toolMsg.ToolCallID)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, "get_weather", req.Tools[0].Function.Name)
}

func TestParseRequest_ReasoningEffortOffIsIgnored(t *testing.T) {
	body := []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}],"options":{"reasoning_effort":"off"}}`)
	req, _, err := New().ParseRequest(body)
	require.NoError(t, err)
	assert.Nil(t, req.Reasoning)
}

func TestParseRequest_MissingModel(t *testing.T) {
	_, _, err := New().ParseRequest([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.Error(t, err)
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, "function_call", mapFinishReason("tool_calls"))
	assert.Equal(t, "stop", mapFinishReason(""))
	assert.Equal(t, "length", mapFinishReason("length"))
}

func TestWriteResponse_AlternativesShape(t *testing.T) {
	var buf bytes.Buffer
	resp := &core.ChatResponse{
		Model:   "GigaChat",
		Choices: []core.ChatChoice{{Index: 0, Message: core.Message{Role: core.RoleAssistant, Content: core.TextContent("hi")}, FinishReason: "tool_calls"}},
	}
	require.NoError(t, New().WriteResponse(&buf, resp, &core.RequestContext{}))
	out := buf.String()
	assert.Contains(t, out, `"alternatives"`)
	assert.Contains(t, out, `"finish_reason":"function_call"`)
}

func TestWriteStreamChunk_Terminal(t *testing.T) {
	var buf bytes.Buffer
	fr := "stop"
	chunk := &core.StreamChunk{
		Model:   "GigaChat",
		Choices: []core.StreamChoice{{Index: 0, FinishReason: &fr}},
		Usage:   &core.Usage{TotalTokens: 4},
	}
	done, err := New().WriteStreamChunk(&buf, chunk, &core.RequestContext{})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, buf.String(), "data: [DONE]")
}
