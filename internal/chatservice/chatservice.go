// Package chatservice implements the chat completion service (C7): the
// thin orchestration layer binding one resolved core.Provider and the
// configured handler chain to a single core.RequestContext, exposed to
// internal/server as a Go 1.23 range-over-func iterator.
package chatservice

import (
	"context"
	"iter"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/chain"
	"github.com/olegische/llmrouter/internal/config"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/driver"
)

var errNoBinding = apperr.Internal("chatservice: completion invoked before model resolution", nil)

// Service binds model resolution, provider construction, and the handler
// chain into one entry point.
type Service struct {
	cfg      *config.Config
	executor *chain.Executor
}

// New builds a Service over the given configuration and chain.
func New(cfg *config.Config, executor *chain.Executor) *Service {
	return &Service{cfg: cfg, executor: executor}
}

// CreateChatCompletion runs rc through the chain. The chain's own transform
// stage resolves rc.Binding from rc.Request.Model as the first thing it
// does once the returned iterator starts being ranged over, so the
// concrete driver can't be built up front — CreateChatCompletion hands the
// chain a lazyProvider that defers driver.Build until the chain's
// completion stage actually calls CreateCompletion, by which point
// rc.Binding is populated. It guarantees the underlying driver's Close
// runs exactly once, whether the iterator is fully drained, abandoned
// early by its consumer, or ended by an error.
func (s *Service) CreateChatCompletion(ctx context.Context, rc *core.RequestContext) iter.Seq2[core.Artifact, error] {
	lazy := &lazyProvider{cfg: s.cfg, rc: rc}
	return func(yield func(core.Artifact, error) bool) {
		defer lazy.Close()
		for artifact, err := range s.executor.Run(ctx, rc, lazy) {
			if !yield(artifact, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// lazyProvider satisfies core.Provider but defers constructing the real
// driver until rc.Binding has been resolved by the chain's transform
// stage. Every method after that point simply forwards to the built
// driver.
type lazyProvider struct {
	cfg   *config.Config
	rc    *core.RequestContext
	inner core.Provider
}

func (l *lazyProvider) ensure() (core.Provider, error) {
	if l.inner != nil {
		return l.inner, nil
	}
	if l.rc.Binding == nil {
		return nil, errNoBinding
	}
	p, err := driver.Build(*l.rc.Binding, l.cfg)
	if err != nil {
		return nil, err
	}
	l.inner = p
	return p, nil
}

func (l *lazyProvider) Name() string {
	if l.rc.Binding == nil {
		return ""
	}
	return l.rc.Binding.ProviderName
}

func (l *lazyProvider) CreateCompletion(ctx context.Context, req *core.ChatRequest) (<-chan core.StreamResult, error) {
	p, err := l.ensure()
	if err != nil {
		return nil, err
	}
	return p.CreateCompletion(ctx, req)
}

func (l *lazyProvider) GetModels(ctx context.Context) ([]core.ProviderModel, error) {
	p, err := l.ensure()
	if err != nil {
		return nil, err
	}
	return p.GetModels(ctx)
}

func (l *lazyProvider) GetModel(ctx context.Context, modelID string) (*core.ProviderModel, error) {
	p, err := l.ensure()
	if err != nil {
		return nil, err
	}
	return p.GetModel(ctx, modelID)
}

func (l *lazyProvider) Close() error {
	if l.inner == nil {
		return nil
	}
	return l.inner.Close()
}
