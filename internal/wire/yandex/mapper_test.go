package yandex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
)

func TestEncodeRequest_UnsupportedModelReturnsBadRequest(t *testing.T) {
	req := &core.ChatRequest{Model: "not-a-real-model", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}}
	_, err := New("folder1").EncodeRequest(req)
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).Code)
}

func TestEncodeRequest_BuildsModelURI(t *testing.T) {
	req := &core.ChatRequest{Model: "yandexgpt5-pro:latest", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}}
	raw, err := New("folder1").EncodeRequest(req)
	require.NoError(t, err)
	var out wireRequest
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "gpt://folder1/yandexgpt/latest", out.ModelURI)
}

func TestEncodeRequest_MissingFolderID(t *testing.T) {
	req := &core.ChatRequest{Model: "yandexgpt5-pro:latest", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}}
	_, err := New("").EncodeRequest(req)
	require.Error(t, err)
	assert.Equal(t, 500, apperr.As(err).Code)
}

func TestEncodeRequest_ToolMessageBecomesUserToolResult(t *testing.T) {
	req := &core.ChatRequest{
		Model: "yandexgpt5-pro:latest",
		Messages: []core.Message{
			{Role: core.RoleUser, Content: core.TextContent("weather?")},
			{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "c1", Func: core.ToolCallFunc{Name: "get_weather", Arguments: `{}`}}}},
			{Role: core.RoleTool, ToolCallID: "c1", Name: "get_weather", Content: core.TextContent("22C")},
		},
	}
	raw, err := New("folder1").EncodeRequest(req)
	require.NoError(t, err)
	var out wireRequest
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Messages, 3)
	assert.Equal(t, core.RoleUser, out.Messages[2].Role)
	require.NotNil(t, out.Messages[2].ToolResultList)
	assert.Equal(t, "get_weather", out.Messages[2].ToolResultList.ToolResults[0].FunctionResult.Name)
}

func TestDecodeChunk_CumulativeTextProducesIncrementalDelta(t *testing.T) {
	state := &core.MapperState{}

	frame1 := []byte(`{"result":{"alternatives":[{"status":"ALTERNATIVE_STATUS_PARTIAL","message":{"role":"assistant","text":"Hello"}}]}}`)
	chunks1, err := Mapper{}.DecodeChunk(frame1, state)
	require.NoError(t, err)
	assert.Equal(t, "Hello", chunks1[0].Choices[0].Delta.Content)

	frame2 := []byte(`{"result":{"alternatives":[{"status":"ALTERNATIVE_STATUS_PARTIAL","message":{"role":"assistant","text":"Hello there"}}]}}`)
	chunks2, err := Mapper{}.DecodeChunk(frame2, state)
	require.NoError(t, err)
	assert.Equal(t, " there", chunks2[0].Choices[0].Delta.Content)
	assert.Nil(t, chunks2[0].Choices[0].FinishReason)
}

func TestDecodeChunk_FinalStatusSetsFinishReasonAndResetsState(t *testing.T) {
	state := &core.MapperState{PreviousText: "Hello"}
	frame := []byte(`{"result":{"alternatives":[{"status":"ALTERNATIVE_STATUS_FINAL","message":{"role":"assistant","text":"Hello there"}}],"usage":{"inputTextTokens":"3","completionTokens":"2","totalTokens":"5"}}}`)
	chunks, err := Mapper{}.DecodeChunk(frame, state)
	require.NoError(t, err)
	require.NotNil(t, chunks[0].Choices[0].FinishReason)
	assert.Equal(t, "stop", *chunks[0].Choices[0].FinishReason)
	assert.True(t, state.SeenFinishReason)
	assert.Equal(t, "", state.PreviousText)
	require.NotNil(t, chunks[0].Usage)
	assert.Equal(t, 5, chunks[0].Usage.TotalTokens)
}

func TestDecodeChunk_ToolCallsStatusEmitsToolCallDelta(t *testing.T) {
	state := &core.MapperState{}
	frame := []byte(`{"result":{"alternatives":[{"status":"ALTERNATIVE_STATUS_TOOL_CALLS","message":{"role":"assistant","toolCallList":{"toolCalls":[{"functionCall":{"name":"get_weather","arguments":{"city":"Moscow"}}}]}}}]}}`)
	chunks, err := Mapper{}.DecodeChunk(frame, state)
	require.NoError(t, err)
	require.Len(t, chunks[0].Choices[0].Delta.ToolCalls, 1)
	assert.Equal(t, "get_weather", chunks[0].Choices[0].Delta.ToolCalls[0].Func.Name)
	require.NotNil(t, chunks[0].Choices[0].FinishReason)
	assert.Equal(t, "tool_calls", *chunks[0].Choices[0].FinishReason)
}

func TestDecodeResponse_AssemblesFromSingleBody(t *testing.T) {
	body := []byte(`{"result":{"alternatives":[{"status":"ALTERNATIVE_STATUS_FINAL","message":{"role":"assistant","text":"done"}}],"usage":{"inputTextTokens":"1","completionTokens":"1","totalTokens":"2"}}}`)
	resp, err := New("folder1").DecodeResponse(body)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, core.TextContent("done"), resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 2, resp.Usage.TotalTokens)
}

func TestParseSSELine_NoDoneMarkerEverTerminates(t *testing.T) {
	_, ok, done := Mapper{}.ParseSSELine([]byte(`data: {"result":{}}`))
	assert.True(t, ok)
	assert.False(t, done)
}
