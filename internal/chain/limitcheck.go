package chain

import (
	"context"
	"iter"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/billing"
	"github.com/olegische/llmrouter/internal/core"
)

// LimitCheck is the third chain stage, run only when ENABLE_LLM_BILLING is
// set: it converts the tokenize stage's pessimistic estimate into a
// billing hold, failing the request with apperr.InsufficientFunds when the
// billing service reports no funds available.
type LimitCheck struct {
	Billing billing.Client
	Enabled bool
}

func (*LimitCheck) Name() string { return "limitcheck" }

func (l *LimitCheck) CanHandle(*core.RequestContext) bool { return l.Enabled }

func (l *LimitCheck) Handle(ctx context.Context, rc *core.RequestContext, provider core.Provider, in iter.Seq2[core.Artifact, error]) iter.Seq2[core.Artifact, error] {
	return func(yield func(core.Artifact, error) bool) {
		if !forward(yield, in) {
			return
		}

		hold, err :=l.Billing.ProcessCostWithTokens(ctx, rc.UserID, externalModelID(rc), *rc.EstimatedTokens)
		if err != nil {
			yield(core.Artifact{}, err)
			return
		}
		if hold.AmountHeld == nil {
			yield(core.Artifact{}, apperr.InsufficientFunds("Insufficient funds for request processing"))
			return
		}

		rc.AmountHeld = hold.AmountHeld
		rc.TransactionID = hold.TransactionID
		rc.GenerationID = hold.TransactionID
	}
}
