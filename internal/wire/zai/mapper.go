// Package zai adapts the generic OpenAI-compatible wire mapper for Z.AI,
// which wants a "thinking" object instead of reasoning_effort.
package zai

import (
	"encoding/json"

	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/wire/openaicompat"
)

// Mapper is the Z.AI wire mapper: OpenAI-shaped, honoring the internal
// reasoning config by adding thinking:{type:"enabled"} to the request
// instead of reasoning_effort.
type Mapper struct {
	openaicompat.Mapper
}

func New() Mapper {
	// ReasoningStyle left empty: Z.AI's reasoning toggle is injected
	// separately below, not via the generic reasoning_effort/reasoning
	// field styles.
	return Mapper{openaicompat.Mapper{}}
}

type thinking struct {
	Type string `json:"type"`
}

func (m Mapper) EncodeRequest(req *core.ChatRequest) ([]byte, error) {
	base, err := m.Mapper.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if req.Reasoning == nil || req.Reasoning.Effort == "" {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(thinking{Type: "enabled"})
	if err != nil {
		return nil, err
	}
	merged["thinking"] = raw
	return json.Marshal(merged)
}
