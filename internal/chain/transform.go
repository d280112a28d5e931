package chain

import (
	"context"
	"iter"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/billing"
	"github.com/olegische/llmrouter/internal/core"
)

// Resolver is the C1 capability transform needs: turning the caller's
// external model id into a provider binding plus the clean upstream model
// id. Satisfied by *registry.Registry.
type Resolver interface {
	Resolve(externalModelID string) (core.ProviderBinding, string, error)
}

// Transform is the first chain stage: it resolves the caller's model id
// against the registry, flags cache-write requests, and mints a
// billing-disabled GenerationID up front so every request has one even if
// limitcheck never runs. Per spec §4.C6, Transform's normalization of the
// dialect's wire shape into core.ChatRequest already happened in the C5
// adapter's ParseRequest — this stage only does the C1 resolution and
// bookkeeping that needs the normalized request to already exist.
type Transform struct {
	Resolver Resolver
}

func (t *Transform) Name() string { return "transform" }

func (t *Transform) CanHandle(*core.RequestContext) bool { return true }

func (t *Transform) Handle(ctx context.Context, rc *core.RequestContext, provider core.Provider, in iter.Seq2[core.Artifact, error]) iter.Seq2[core.Artifact, error] {
	return func(yield func(core.Artifact, error) bool) {
		if err := validateRequest(rc.Request); err != nil {
			yield(core.Artifact{}, err)
			return
		}

		externalModelID := rc.Request.Model
		binding, modelID, err := t.Resolver.Resolve(externalModelID)
		if err != nil {
			yield(core.Artifact{}, err)
			return
		}

		rc.Binding = &binding
		rc.Request.Model = modelID
		rc.SetMeta("external_model_id", externalModelID)

		for _, m := range rc.Request.Messages {
			if core.HasCacheControl(m.Content) {
				rc.CacheWrite = true
				break
			}
		}

		if rc.GenerationID == "" {
			rc.GenerationID = billing.NewGenerationID()
		}

		forward(yield, in)
	}
}

// validateRequest enforces the sampling-parameter ranges every provider
// expects a normalized request to already satisfy, plus that every
// message carries a recognized role.
func validateRequest(req *core.ChatRequest) error {
	for _, m := range req.Messages {
		switch m.Role {
		case core.RoleSystem, core.RoleUser, core.RoleAssistant, core.RoleTool:
		default:
			return apperr.BadRequest("unsupported message role: " + m.Role)
		}
	}

	if req.Temperature != nil {
		if *req.Temperature < 0.0 || *req.Temperature > 2.0 {
			return apperr.BadRequest("temperature must be between 0.0 and 2.0")
		}
	}

	if req.TopP != nil {
		if *req.TopP <= 0.0 || *req.TopP > 1.0 {
			return apperr.BadRequest("top_p must be between 0.0 and 1.0")
		}
	}

	if req.FrequencyPenalty != nil {
		if *req.FrequencyPenalty < -2.0 || *req.FrequencyPenalty > 2.0 {
			return apperr.BadRequest("frequency_penalty must be between -2.0 and 2.0")
		}
	}

	if req.PresencePenalty != nil {
		if *req.PresencePenalty < -2.0 || *req.PresencePenalty > 2.0 {
			return apperr.BadRequest("presence_penalty must be between -2.0 and 2.0")
		}
	}

	return nil
}
