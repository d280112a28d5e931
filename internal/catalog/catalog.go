// Package catalog implements the model catalog (C2): cached, normalized
// model listings aggregated across enabled providers.
package catalog

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/cache"
	"github.com/olegische/llmrouter/internal/core"
)

// TTL policy by provider kind, per spec §4.C2.
const (
	DefaultTTL  = 24 * time.Hour
	ProxyTTL    = 5 * time.Minute
	StaticTTL   = time.Hour
)

// proxyProviders are providers whose model list may change frequently
// enough to warrant a short TTL.
var proxyProviders = map[string]bool{
	"openrouter_proxy": true,
}

// staticListProviders are providers with no models API; their model
// mapper always returns a hard-coded list.
var staticListProviders = map[string]bool{
	"yandex": true,
	"zai":    true,
	"agents": true,
}

func ttlFor(providerID string) time.Duration {
	switch {
	case proxyProviders[providerID]:
		return ProxyTTL
	case staticListProviders[providerID]:
		return StaticTTL
	default:
		return DefaultTTL
	}
}

// ProviderSource is what the catalog needs from a provider driver to build
// its model list: either a live upstream call or a baked-in static list.
type ProviderSource interface {
	GetModels(ctx context.Context) ([]core.ProviderModel, error)
}

// Catalog aggregates provider model lists behind a TTL cache.
type Catalog struct {
	cache     cache.Cache
	providers map[string]ProviderSource
	// externalIDFormat renders the external model id for a provider,
	// varying for Ollama ("<provider>@<server>/<model>") and OpenAI-
	// compatible fallback mode (bare id) vs the default "<provider>/<model>".
	externalIDFormat map[string]func(modelID string) string
}

// New builds a Catalog over the given providers, keyed by provider id.
// externalIDFormat may be nil for a provider to use the default
// "<provider>/<model>" shape.
func New(c cache.Cache, providers map[string]ProviderSource, externalIDFormat map[string]func(string) string) *Catalog {
	if externalIDFormat == nil {
		externalIDFormat = map[string]func(string) string{}
	}
	return &Catalog{cache: c, providers: providers, externalIDFormat: externalIDFormat}
}

func (c *Catalog) externalID(providerID, modelID string) string {
	if f, ok := c.externalIDFormat[providerID]; ok {
		return f(modelID)
	}
	return providerID + "/" + modelID
}

// GetModels aggregates the model list across every configured provider.
func (c *Catalog) GetModels(ctx context.Context) ([]core.ProviderModel, error) {
	var all []core.ProviderModel
	for providerID := range c.providers {
		models, err := c.getProviderModels(ctx, providerID)
		if err != nil {
			return nil, err
		}
		all = append(all, models...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ExternalModelID < all[j].ExternalModelID })
	return all, nil
}

// GetModel resolves one external model id to its catalog entry.
func (c *Catalog) GetModel(ctx context.Context, externalModelID string) (*core.ProviderModel, error) {
	parts := strings.SplitN(externalModelID, "/", 2)
	if len(parts) != 2 {
		return nil, apperr.BadRequest("malformed external model id: " + externalModelID)
	}
	providerID := parts[0]
	if strings.Contains(providerID, "@") {
		providerID = strings.SplitN(providerID, "@", 2)[0]
	}

	models, err := c.getProviderModels(ctx, providerID)
	if err != nil {
		return nil, err
	}
	target := strings.ToLower(externalModelID)
	for i := range models {
		if strings.ToLower(models[i].ExternalModelID) == target {
			return &models[i], nil
		}
	}
	return nil, apperr.NotFound("unknown model: " + externalModelID)
}

func (c *Catalog) getProviderModels(ctx context.Context, providerID string) ([]core.ProviderModel, error) {
	key := "models:" + providerID

	var cached []core.ProviderModel
	if hit, err := c.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	source, ok := c.providers[providerID]
	if !ok {
		return nil, apperr.Forbidden("provider disabled: " + providerID)
	}

	models, err := source.GetModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching models for %s: %w", providerID, err)
	}

	for i := range models {
		models[i].ProviderID = providerID
		models[i].ExternalModelID = c.externalID(providerID, models[i].ModelID)
	}

	_ = c.cache.Set(ctx, key, models, ttlFor(providerID))
	return models, nil
}

var (
	collapseWhitespace = regexp.MustCompile(`\s+`)
	collapseDashes     = regexp.MustCompile(`-+`)
)

// Normalize lowercases a model id, replaces whitespace runs with a single
// "-", collapses repeated "-" runs, and trims leading/trailing "-". It is
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(modelID string) string {
	s := strings.ToLower(modelID)
	s = collapseWhitespace.ReplaceAllString(s, "-")
	s = collapseDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}
