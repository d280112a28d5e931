// Package ollama adapts the generic OpenAI-compatible wire mapper for
// Ollama's OpenAI-compatible endpoint. The one Ollama-specific behavior —
// synthesizing a zero-usage terminal chunk after [DONE] since Ollama never
// reports usage — lives in internal/driver/openaicompat, which owns
// terminal-chunk synthesis for every provider sharing this wire shape.
package ollama

import "github.com/olegische/llmrouter/internal/wire/openaicompat"

// Mapper is the Ollama wire mapper.
type Mapper struct {
	openaicompat.Mapper
}

func New() Mapper {
	return Mapper{openaicompat.Mapper{}}
}
