// Package deepseek adapts the generic OpenAI-compatible wire mapper for
// DeepSeek's two extras: reasoning_content deltas and cached-token usage
// accounting.
package deepseek

import (
	"encoding/json"

	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/wire/openaicompat"
)

// Mapper is the DeepSeek wire mapper. reasoning_content → reasoning is
// already handled generically by openaicompat.Mapper.DecodeChunk; the only
// extra here is prompt_cache_hit_tokens → prompt_tokens_details.cached_tokens,
// which DeepSeek reports as a top-level usage field instead of nesting it.
type Mapper struct {
	openaicompat.Mapper
}

// New builds a DeepSeek wire mapper. DeepSeek uses OpenAI's flat
// reasoning_effort field.
func New() Mapper {
	return Mapper{openaicompat.Mapper{ReasoningStyle: "field"}}
}

type usageExtra struct {
	PromptCacheHitTokens int `json:"prompt_cache_hit_tokens"`
}

func (m Mapper) DecodeChunk(frame []byte, state *core.MapperState) ([]core.StreamChunk, error) {
	chunks, err := m.Mapper.DecodeChunk(frame, state)
	if err != nil {
		return nil, err
	}
	var extra struct {
		Usage *usageExtra `json:"usage"`
	}
	if json.Unmarshal(frame, &extra) == nil && extra.Usage != nil && extra.Usage.PromptCacheHitTokens > 0 {
		for i := range chunks {
			if chunks[i].Usage == nil {
				continue
			}
			if chunks[i].Usage.PromptTokensDetails == nil {
				chunks[i].Usage.PromptTokensDetails = &core.PromptTokensDetails{}
			}
			chunks[i].Usage.PromptTokensDetails.CachedTokens = extra.Usage.PromptCacheHitTokens
		}
	}
	return chunks, nil
}

func (m Mapper) DecodeResponse(body []byte) (*core.ChatResponse, error) {
	resp, err := m.Mapper.DecodeResponse(body)
	if err != nil {
		return nil, err
	}
	var extra struct {
		Usage *usageExtra `json:"usage"`
	}
	if json.Unmarshal(body, &extra) == nil && extra.Usage != nil && extra.Usage.PromptCacheHitTokens > 0 {
		if resp.Usage.PromptTokensDetails == nil {
			resp.Usage.PromptTokensDetails = &core.PromptTokensDetails{}
		}
		resp.Usage.PromptTokensDetails.CachedTokens = extra.Usage.PromptCacheHitTokens
	}
	return resp, nil
}
