package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/core"
)

func TestEncodeRequest_BasicFields(t *testing.T) {
	temp := 0.5
	req := &core.ChatRequest{
		Model:       "gpt-4",
		Messages:    []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}},
		Temperature: &temp,
		MaxTokens:   128,
	}
	raw, err := Mapper{}.EncodeRequest(req)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "gpt-4", out["model"])
	assert.Equal(t, true, out["stream"])
	assert.Equal(t, float64(128), out["max_tokens"])
}

func TestEncodeRequest_ReasoningStyleField(t *testing.T) {
	req := &core.ChatRequest{
		Model:     "o1",
		Messages:  []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}},
		Reasoning: &core.ReasoningConfig{Effort: "high"},
	}
	raw, err := Mapper{ReasoningStyle: "field"}.EncodeRequest(req)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "high", out["reasoning_effort"])
	assert.NotContains(t, out, "reasoning")
}

func TestEncodeRequest_ReasoningStyleObject(t *testing.T) {
	req := &core.ChatRequest{
		Model:     "m",
		Messages:  []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}},
		Reasoning: &core.ReasoningConfig{Effort: "low"},
	}
	raw, err := Mapper{ReasoningStyle: "object"}.EncodeRequest(req)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.NotContains(t, out, "reasoning_effort")
	reasoning, ok := out["reasoning"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "low", reasoning["effort"])
}

func TestEncodeRequest_ToolChoiceModeAndFunction(t *testing.T) {
	req := &core.ChatRequest{
		Model:      "m",
		Messages:   []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}},
		ToolChoice: &core.ToolChoice{Mode: "required"},
	}
	raw, err := Mapper{}.EncodeRequest(req)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "required", out["tool_choice"])

	req2 := &core.ChatRequest{
		Model:      "m",
		Messages:   []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}},
		ToolChoice: &core.ToolChoice{Function: &core.ToolFunction{Name: "lookup"}},
	}
	raw2, err := Mapper{}.EncodeRequest(req2)
	require.NoError(t, err)
	var out2 map[string]any
	require.NoError(t, json.Unmarshal(raw2, &out2))
	tc, ok := out2["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "function", tc["type"])
}

func TestEncodeRequest_MultipartContentWithCacheControl(t *testing.T) {
	req := &core.ChatRequest{
		Model: "m",
		Messages: []core.Message{{
			Role: core.RoleUser,
			Content: core.PartsContent{
				{Type: "text", Text: "hi", CacheControl: &core.CacheControl{Type: "ephemeral"}},
			},
		}},
	}
	raw, err := Mapper{}.EncodeRequest(req)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"cache_control":{"type":"ephemeral"}`)
}

func TestParseSSELine(t *testing.T) {
	m := Mapper{}

	frame, ok, done := m.ParseSSELine([]byte(`data: {"id":"1"}`))
	assert.True(t, ok)
	assert.False(t, done)
	assert.Equal(t, `{"id":"1"}`, string(frame))

	_, ok, done = m.ParseSSELine([]byte(`data: [DONE]`))
	assert.False(t, ok)
	assert.True(t, done)

	_, ok, done = m.ParseSSELine([]byte(`: comment`))
	assert.False(t, ok)
	assert.False(t, done)

	_, ok, done = m.ParseSSELine([]byte(``))
	assert.False(t, ok)
	assert.False(t, done)
}

func TestDecodeChunk_DefaultsRoleAndToolCallType(t *testing.T) {
	frame := []byte(`{"id":"c1","choices":[{"index":0,"delta":{"content":"hi","tool_calls":[{"id":"t1","function":{"name":"f","arguments":"{}"}}]}}]}`)
	chunks, err := Mapper{}.DecodeChunk(frame, &core.MapperState{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].Choices, 1)
	assert.Equal(t, core.RoleAssistant, chunks[0].Choices[0].Delta.Role)
	require.Len(t, chunks[0].Choices[0].Delta.ToolCalls, 1)
	assert.Equal(t, "function", chunks[0].Choices[0].Delta.ToolCalls[0].Type)
}

func TestDecodeChunk_ReasoningContentFallsBackWhenReasoningEmpty(t *testing.T) {
	frame := []byte(`{"id":"c1","choices":[{"index":0,"delta":{"reasoning_content":"thinking..."}}]}`)
	chunks, err := Mapper{}.DecodeChunk(frame, &core.MapperState{})
	require.NoError(t, err)
	assert.Equal(t, "thinking...", chunks[0].Choices[0].Delta.Reasoning)
}

func TestDecodeChunk_SetsSeenFinishReasonOnState(t *testing.T) {
	state := &core.MapperState{}
	fr := "stop"
	_ = fr
	frame := []byte(`{"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`)
	_, err := Mapper{}.DecodeChunk(frame, state)
	require.NoError(t, err)
	assert.True(t, state.SeenFinishReason)
}

func TestDecodeResponse_BasicShape(t *testing.T) {
	body := []byte(`{
		"id":"resp-1","model":"gpt-4","created":1700000000,
		"choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5,"prompt_tokens_details":{"cached_tokens":1}}
	}`)
	resp, err := Mapper{}.DecodeResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, core.TextContent("hi"), resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	require.NotNil(t, resp.Usage.PromptTokensDetails)
	assert.Equal(t, 1, resp.Usage.PromptTokensDetails.CachedTokens)
}

func TestHasFinishAndUsage(t *testing.T) {
	fr := "stop"
	chunk := core.StreamChunk{
		Usage:   &core.Usage{TotalTokens: 1},
		Choices: []core.StreamChoice{{FinishReason: &fr}},
	}
	hasFinish, hasUsage := HasFinishAndUsage(chunk)
	assert.True(t, hasFinish)
	assert.True(t, hasUsage)

	hasFinish2, hasUsage2 := HasFinishAndUsage(core.StreamChunk{})
	assert.False(t, hasFinish2)
	assert.False(t, hasUsage2)
}

func TestTrimModelPrefix(t *testing.T) {
	assert.Equal(t, "gpt-4", TrimModelPrefix("openai/gpt-4"))
	assert.Equal(t, "gpt-4", TrimModelPrefix("gpt-4"))
}
