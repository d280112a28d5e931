// Package main is the entry point for the llmrouter gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olegische/llmrouter/internal/authz"
	"github.com/olegische/llmrouter/internal/billing"
	"github.com/olegische/llmrouter/internal/cache"
	"github.com/olegische/llmrouter/internal/catalog"
	"github.com/olegische/llmrouter/internal/chain"
	"github.com/olegische/llmrouter/internal/chatservice"
	"github.com/olegische/llmrouter/internal/config"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/driver"
	"github.com/olegische/llmrouter/internal/logging"
	"github.com/olegische/llmrouter/internal/metrics"
	"github.com/olegische/llmrouter/internal/registry"
	"github.com/olegische/llmrouter/internal/server"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ExtraFields: cfg.Logging.ExtraFields,
	})
	ctx := logging.Into(context.Background(), logger)

	reg := metrics.New()

	fallback := ""
	if cfg.Features.OpenAICompatible {
		fallback = openAICompatibleProvider(cfg)
	}
	modelRegistry := registry.New(cfg, fallback)

	cat, err := buildCatalog(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build model catalog")
	}

	az := buildAuthz(cfg)

	var billingClient billing.Client
	if cfg.Features.Billing {
		httpClient := billing.NewHTTPClient(cfg.Billing.ServiceURL, cfg.Billing.APIKey, cfg.Timeouts.Provider)
		billingClient = billing.NewDegradingClient(httpClient, reg)
	}

	executor := chain.Build(cfg, modelRegistry, billingClient)
	chatSvc := chatservice.New(cfg, executor)

	srv := server.New(cfg, chatSvc, cat, az, reg)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("llmrouter listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openAICompatibleProvider picks the single provider ENABLE_OPENAI_COMPATIBLE_API
// routes every request to: the first enabled provider from this fixed
// preference order.
func openAICompatibleProvider(cfg *config.Config) string {
	for _, id := range []string{"openrouter", "deepseek", "xrouter", "zai", "agents"} {
		if p, ok := cfg.Providers[id]; ok && p.Enabled {
			return id
		}
	}
	return ""
}

// buildAuthz assembles the authorization chain per the feature toggles:
// AllowAllAuthorizer when auth is off entirely, otherwise the real HTTP
// introspection client for users plus a static service-key check layered
// in front of it when service auth is also enabled.
func buildAuthz(cfg *config.Config) authz.Chain {
	if !cfg.Features.Auth {
		return authz.Chain{User: authz.AllowAllAuthorizer{}}
	}

	az := authz.Chain{User: authz.NewHTTPAuthorizer(cfg.Auth.UserURL, cfg.Timeouts.AuthService)}
	if cfg.Features.ServiceAuth {
		az.Service = authz.StaticAuthorizer{Key: cfg.Auth.ServiceKey}
	}
	return az
}

// buildCatalog constructs one driver per enabled provider and wires them
// into the model catalog (C2), keyed the same way the registry (C1)
// resolves external model ids. Ollama gets one entry per configured
// server, since each server has its own model list.
func buildCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	providers := make(map[string]catalog.ProviderSource)
	externalIDFormat := make(map[string]func(string) string)

	staticReg := registry.New(cfg, "")

	for id, pc := range cfg.Providers {
		if !pc.Enabled || id == "ollama" {
			continue
		}
		binding, _, err := staticReg.Resolve(id + "/_")
		if err != nil {
			return nil, fmt.Errorf("resolving binding for provider %q: %w", id, err)
		}
		p, err := driver.Build(binding, cfg)
		if err != nil {
			return nil, fmt.Errorf("building driver for provider %q: %w", id, err)
		}
		providers[id] = p
	}

	if pc, ok := cfg.Providers["ollama"]; ok && pc.Enabled {
		for i, base := range pc.BaseURLs {
			var apiKey string
			if i < len(pc.APIKeys) {
				apiKey = pc.APIKeys[i]
			}
			binding := core.ProviderBinding{
				ProviderID:   "ollama",
				ProviderName: "ollama",
				BaseURL:      base,
				Credentials:  core.Credentials{APIKey: apiKey},
			}
			p, err := driver.Build(binding, cfg)
			if err != nil {
				return nil, fmt.Errorf("building ollama driver for %q: %w", base, err)
			}
			key := "ollama@" + base
			server := base
			providers[key] = p
			externalIDFormat[key] = func(modelID string) string {
				return "ollama@" + server + "/" + modelID
			}
		}
	}

	var c cache.Cache = cache.NoopCache{}
	if cfg.Features.Cache {
		c = cache.NewRedisCache(cfg.Redis)
	}

	return catalog.New(c, providers, externalIDFormat), nil
}
