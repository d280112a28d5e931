package chain

import (
	"context"
	"iter"
	"time"

	"github.com/olegische/llmrouter/internal/billing"
	"github.com/olegische/llmrouter/internal/core"
)

// UsageRecord is the fifth and final chain stage, run only when
// ENABLE_LLM_BILLING is set: once the completion stage's artifacts are
// exhausted it finalizes the hold opened by limitcheck against the actual
// usage observed, then posts the usage and generation records. It forwards
// every artifact from completion unchanged — billing bookkeeping is a side
// effect after the stream ends, never something that delays or alters what
// the caller sees.
type UsageRecord struct {
	Billing billing.Client
	Enabled bool
}

func (*UsageRecord) Name() string { return "usagerecord" }

func (u *UsageRecord) CanHandle(*core.RequestContext) bool { return u.Enabled }

func (u *UsageRecord) Handle(ctx context.Context, rc *core.RequestContext, provider core.Provider, in iter.Seq2[core.Artifact, error]) iter.Seq2[core.Artifact, error] {
	return func(yield func(core.Artifact, error) bool) {
		ok := forward(yield, in)
		if !ok || rc.FinalResponse == nil {
			// Either the consumer stopped early or the request failed before
			// completion produced a terminal artifact — the billing service's
			// own hold expiry handles reclaiming an abandoned hold, per
			// billing.Client.ReleaseHold's doc comment.
			return
		}

		tokens := finalTokenCount(rc)
		extID := externalModelID(rc)

		cost, _ := u.Billing.CalculateCost(ctx, extID, tokens)
		_ = u.Billing.FinalizeHoldWithTokens(ctx, rc.TransactionID, tokens, cost)
		_ = u.Billing.CreateUsage(ctx, billing.UsageRecord{
			TransactionID:   rc.TransactionID,
			UserID:          rc.UserID,
			ExternalModelID: extID,
			Tokens:          tokens,
			Cost:            cost,
		})

		duration := time.Since(rc.StartedAt)
		_ = u.Billing.CreateGeneration(ctx, billing.GenerationRecord{
			GenerationID:    rc.GenerationID,
			UserID:          rc.UserID,
			ExternalModelID: extID,
			Streamed:        rc.Request.Stream,
			FinishReason:    finalFinishReason(rc),
			Duration:        duration,
			TokensPerSecond: tokensPerSecond(tokens, duration),
		})
	}
}

// finalTokenCount derives the actual core.TokenCount from whichever shape
// FinalResponse holds — a full response for non-streaming requests, the
// terminal chunk's usage for streaming ones.
func finalTokenCount(rc *core.RequestContext) core.TokenCount {
	var u core.Usage
	switch {
	case rc.FinalResponse.Response != nil:
		u = rc.FinalResponse.Response.Usage
	case rc.FinalResponse.Chunk != nil && rc.FinalResponse.Chunk.Usage != nil:
		u = *rc.FinalResponse.Chunk.Usage
	}

	tc := core.TokenCount{
		Model:  rc.Request.Model,
		Input:  u.PromptTokens,
		Output: u.CompletionTokens,
		Total:  u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		tc.InputCached = u.PromptTokensDetails.CachedTokens
		tc.CacheHit = tc.InputCached > 0
	}
	if u.CompletionTokensDetails != nil {
		tc.OutputReasoning = u.CompletionTokensDetails.ReasoningTokens
	}
	return tc
}

func finalFinishReason(rc *core.RequestContext) string {
	switch {
	case rc.FinalResponse.Response != nil && len(rc.FinalResponse.Response.Choices) > 0:
		return rc.FinalResponse.Response.Choices[0].FinishReason
	case rc.FinalResponse.Chunk != nil:
		for _, c := range rc.FinalResponse.Chunk.Choices {
			if c.FinishReason != nil {
				return *c.FinishReason
			}
		}
	}
	return ""
}

func tokensPerSecond(tokens core.TokenCount, duration time.Duration) float64 {
	seconds := duration.Seconds()
	if seconds <= 0 || tokens.Output <= 0 {
		return 0
	}
	return float64(tokens.Output) / seconds
}
