// Package registry implements the provider registry and config resolution
// (C1): mapping an external model id to a concrete provider binding.
package registry

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/config"
	"github.com/olegische/llmrouter/internal/core"
)

// Registry resolves external model ids into provider bindings using the
// gateway's static provider table and the loaded configuration.
type Registry struct {
	cfg *config.Config

	// openAICompatibleFallback, when set, is the provider id every request
	// is routed to regardless of its "<provider>/" prefix — the
	// ENABLE_OPENAI_COMPATIBLE_API mode.
	openAICompatibleFallback string
}

// New builds a Registry from loaded configuration. fallbackProviderID is
// the provider used in OpenAI-compatible fallback mode; pass "" when
// ENABLE_OPENAI_COMPATIBLE_API is false.
func New(cfg *config.Config, fallbackProviderID string) *Registry {
	return &Registry{cfg: cfg, openAICompatibleFallback: fallbackProviderID}
}

// ListEnabledProviders returns the set of provider ids with Enabled=true in
// configuration.
func (r *Registry) ListEnabledProviders() map[string]bool {
	out := make(map[string]bool)
	for id, p := range r.cfg.Providers {
		if p.Enabled {
			out[id] = true
		}
	}
	return out
}

// Resolve parses externalModelID and returns the provider binding plus the
// model id the upstream should see.
func (r *Registry) Resolve(externalModelID string) (core.ProviderBinding, string, error) {
	if r.openAICompatibleFallback != "" {
		return r.resolveKnownProvider(r.openAICompatibleFallback, externalModelID)
	}

	if strings.Contains(externalModelID, "@") {
		return r.resolveOllama(externalModelID)
	}

	parts := strings.SplitN(externalModelID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return core.ProviderBinding{}, "", apperr.BadRequest("malformed external model id: " + externalModelID)
	}
	providerID, modelID := parts[0], parts[1]

	if !config.IsKnownProvider(providerID) {
		return core.ProviderBinding{}, "", apperr.BadRequest("unknown provider in external model id: " + providerID)
	}

	return r.resolveKnownProvider(providerID, modelID)
}

func (r *Registry) resolveKnownProvider(providerID, modelID string) (core.ProviderBinding, string, error) {
	pc, ok := r.cfg.Providers[providerID]
	if !ok || !pc.Enabled {
		return core.ProviderBinding{}, "", apperr.Forbidden("provider disabled: " + providerID)
	}

	binding := core.ProviderBinding{
		ProviderID:   providerID,
		ProviderName: providerID,
		BaseURL:      pc.BaseURL,
		Credentials: core.Credentials{
			APIKey:   pc.APIKey,
			Login:    pc.Login,
			Password: pc.Password,
		},
		Parameters: map[string]string{},
	}

	if providerID == "yandex" {
		if pc.FolderID == "" {
			return core.ProviderBinding{}, "", apperr.Internal("yandex folder id not configured", nil)
		}
		binding.Parameters["folder_id"] = pc.FolderID
	}

	if providerID == "openrouter_proxy" {
		binding.Parameters["proxy_user"] = pc.ProxyUser
		binding.Parameters["proxy_password"] = pc.ProxyPassword
		binding.Parameters["proxy_http_socks5_port"] = pc.ProxyHTTPSocks5
		binding.Parameters["proxy_scheme"] = pc.ProxyScheme
	}

	return binding, modelID, nil
}

// resolveOllama handles the "ollama@host[:port]/model" form, matching the
// host against the configured (base_url, api_key) pairs.
func (r *Registry) resolveOllama(externalModelID string) (core.ProviderBinding, string, error) {
	pc, ok := r.cfg.Providers["ollama"]
	if !ok || !pc.Enabled {
		return core.ProviderBinding{}, "", apperr.Forbidden("provider disabled: ollama")
	}

	// Expected shape: ollama@<server[:port]>/<model>
	rest := strings.TrimPrefix(externalModelID, "ollama@")
	if rest == externalModelID {
		return core.ProviderBinding{}, "", apperr.BadRequest("malformed ollama external model id: " + externalModelID)
	}
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return core.ProviderBinding{}, "", apperr.BadRequest("malformed ollama external model id: " + externalModelID)
	}
	server, modelID := rest[:idx], rest[idx+1:]
	if server == "" || modelID == "" {
		return core.ProviderBinding{}, "", apperr.BadRequest("malformed ollama external model id: " + externalModelID)
	}

	serverURL := normalizeOllamaServer(server)

	var apiKey string
	for i, base := range pc.BaseURLs {
		if normalizeOllamaServer(base) == serverURL {
			if i < len(pc.APIKeys) {
				apiKey = pc.APIKeys[i]
			}
			break
		}
	}

	return core.ProviderBinding{
		ProviderID:   "ollama",
		ProviderName: "ollama",
		BaseURL:      serverURL,
		Credentials:  core.Credentials{APIKey: apiKey},
		Parameters:   map[string]string{"server": server},
	}, modelID, nil
}

// normalizeOllamaServer ensures server carries an explicit scheme, defaulting
// to http://, so config entries and request-supplied servers compare equal
// regardless of whether either side included a scheme.
func normalizeOllamaServer(server string) string {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return server
	}
	if u.Port() == "" {
		return u.Scheme + "://" + u.Hostname()
	}
	return u.Scheme + "://" + u.Hostname() + ":" + u.Port()
}

// ParsePort parses s as a decimal integer with strconv.Atoi, reporting false
// when it is not one. Nothing in the module calls it.
func ParsePort(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
