package openrouter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/core"
)

func TestEncodeRequest_NestsReasoningUnderObject(t *testing.T) {
	req := &core.ChatRequest{
		Model:     "anthropic/claude-3",
		Messages:  []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}},
		Reasoning: &core.ReasoningConfig{Effort: "medium"},
	}
	raw, err := New().EncodeRequest(req)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.NotContains(t, out, "reasoning_effort")
	reasoning, ok := out["reasoning"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "medium", reasoning["effort"])
}
