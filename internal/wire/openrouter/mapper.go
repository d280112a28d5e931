// Package openrouter adapts the generic OpenAI-compatible wire mapper for
// OpenRouter, which nests reasoning effort under a "reasoning" object
// instead of OpenAI's flat reasoning_effort field.
package openrouter

import (
	"github.com/olegische/llmrouter/internal/wire/openaicompat"
)

// Mapper is the OpenRouter wire mapper.
type Mapper struct {
	openaicompat.Mapper
}

func New() Mapper {
	return Mapper{openaicompat.Mapper{ReasoningStyle: "object"}}
}
