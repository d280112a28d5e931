package chain

import (
	"context"
	"iter"

	"github.com/olegische/llmrouter/internal/core"
)

// charsPerToken is a deliberately crude token/char ratio. Tokenize only
// needs a pessimistic upper bound to size a billing hold against — not an
// exact count — so a fixed ratio stands in for a real tokenizer rather
// than pulling in a model-specific BPE implementation no upstream in this
// gateway shares anyway.
const charsPerToken = 4

// defaultMaxOutputTokens is the pessimistic output-token ceiling used when
// the caller didn't cap max_tokens, so the hold is sized against the
// worst case rather than undercounting an open-ended generation.
const defaultMaxOutputTokens = 4096

// Tokenize is the second chain stage: it produces a pessimistic
// core.TokenCount estimate consumed by limitcheck to size a billing hold.
type Tokenize struct{}

func (Tokenize) Name() string { return "tokenize" }

func (Tokenize) CanHandle(*core.RequestContext) bool { return true }

func (Tokenize) Handle(ctx context.Context, rc *core.RequestContext, provider core.Provider, in iter.Seq2[core.Artifact, error]) iter.Seq2[core.Artifact, error] {
	return func(yield func(core.Artifact, error) bool) {
		if !forward(yield, in) {
			return
		}

		var chars int
		for _, m := range rc.Request.Messages {
			chars += len(core.TextOf(m.Content))
		}
		for _, t := range rc.Request.Tools {
			chars += len(t.Function.Name) + len(t.Function.Description)
		}

		output := rc.Request.MaxTokens
		if output <= 0 {
			output = defaultMaxOutputTokens
		}
		input := chars/charsPerToken + 1

		rc.EstimatedTokens = &core.TokenCount{
			Model:  rc.Request.Model,
			Input:  input,
			Output: output,
			Total:  input + output,
		}
	}
}
