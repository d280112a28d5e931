// Package chain implements the handler chain (C6): the fixed sequence of
// stages — transform, tokenize, limitcheck, completion, usagerecord — that
// turns a resolved request context into a stream of artifacts. Grounded on
// the teacher's handler.go, which ran its steps as a flat sequence inside
// one ServeHTTP method; here each step is promoted to its own Handler so
// the sequence is an explicit, inspectable list rather than inline control
// flow.
package chain

import (
	"context"
	"iter"

	"github.com/olegische/llmrouter/internal/core"
)

// Handler is one stage of the chain. CanHandle gates the stage at
// construction-time granularity (a feature toggle, not a per-request
// decision) — billing-dependent stages report false when
// ENABLE_LLM_BILLING is off, so Executor skips them entirely. Handle
// receives the artifacts produced by every earlier stage and returns the
// artifacts for every later stage; stages that run before the provider
// call (transform, tokenize, limitcheck) ignore in and forward it
// untouched, since nothing has been produced yet.
type Handler interface {
	Name() string
	CanHandle(rc *core.RequestContext) bool
	Handle(ctx context.Context, rc *core.RequestContext, provider core.Provider, in iter.Seq2[core.Artifact, error]) iter.Seq2[core.Artifact, error]
}

// Executor runs a fixed, ordered list of Handlers over one request.
type Executor struct {
	Handlers []Handler
}

// NewExecutor builds an Executor from an explicit stage list, in the order
// they run.
func NewExecutor(handlers ...Handler) *Executor {
	return &Executor{Handlers: handlers}
}

func empty(func(core.Artifact, error) bool) {}

// Run composes every handler able to run for rc into one lazy sequence. The
// composition is pull-based: nothing inside any stage executes until the
// caller (internal/chatservice) ranges over the returned sequence, at which
// point each stage's side effects run in chain order as control flows
// through the nested yields.
func (e *Executor) Run(ctx context.Context, rc *core.RequestContext, provider core.Provider) iter.Seq2[core.Artifact, error] {
	var seq iter.Seq2[core.Artifact, error] = empty
	for _, h := range e.Handlers {
		if !h.CanHandle(rc) {
			continue
		}
		seq = h.Handle(ctx, rc, provider, seq)
	}
	return seq
}

// forward passes in through unchanged, stopping early on either a consumer
// requesting no more values or the input itself carrying an error (later
// stages don't get a chance to run once a stage has failed).
func forward(yield func(core.Artifact, error) bool, in iter.Seq2[core.Artifact, error]) bool {
	for a, err := range in {
		if !yield(a, err) {
			return false
		}
		if err != nil {
			return false
		}
	}
	return true
}

// externalModelID recovers the caller-facing model id stashed by the
// transform stage, used by limitcheck/usagerecord for billing calls that
// must key off what the caller sent, not the upstream-clean model id that
// replaces rc.Request.Model.
func externalModelID(rc *core.RequestContext) string {
	if v, ok := rc.Meta("external_model_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return rc.Request.Model
}
