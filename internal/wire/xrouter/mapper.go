// Package xrouter adapts the generic OpenAI-compatible wire mapper for the
// in-house XRouter upstream, which speaks plain OpenAI shape with no
// extras.
package xrouter

import "github.com/olegische/llmrouter/internal/wire/openaicompat"

// Mapper is the XRouter wire mapper.
type Mapper struct {
	openaicompat.Mapper
}

func New() Mapper {
	return Mapper{openaicompat.Mapper{ReasoningStyle: "field"}}
}
