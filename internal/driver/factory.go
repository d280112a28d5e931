// Package driver is the C4 provider-driver layer's factory: given a
// resolved core.ProviderBinding and the loaded configuration, it builds
// the concrete core.Provider for that request. Per-provider mechanics
// live in the subpackages (openaicompat, gigachat, yandex, ollama,
// openrouterproxy); this file only wires base URL/credentials/timeouts
// into the right constructor, mirroring the teacher's main.go
// provider-constructor map.
package driver

import (
	"net/url"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/config"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/driver/base"
	"github.com/olegische/llmrouter/internal/driver/gigachat"
	"github.com/olegische/llmrouter/internal/driver/ollama"
	"github.com/olegische/llmrouter/internal/driver/openaicompat"
	"github.com/olegische/llmrouter/internal/driver/openrouterproxy"
	yandexdriver "github.com/olegische/llmrouter/internal/driver/yandex"
	"github.com/olegische/llmrouter/internal/wire/agents"
	"github.com/olegische/llmrouter/internal/wire/deepseek"
	"github.com/olegische/llmrouter/internal/wire/openrouter"
	"github.com/olegische/llmrouter/internal/wire/xrouter"
	"github.com/olegische/llmrouter/internal/wire/zai"
)

// Build constructs the core.Provider for one resolved binding. cfg supplies
// timeouts and the per-provider supported-model whitelists that the
// registry (C1) doesn't carry on ProviderBinding itself.
func Build(binding core.ProviderBinding, cfg *config.Config) (core.Provider, error) {
	timeout := cfg.Timeouts.Provider

	switch binding.ProviderID {
	case "deepseek":
		client := base.NewClient(timeout, false, nil)
		return openaicompat.New("deepseek", binding.BaseURL, binding.Credentials.APIKey, client,
			deepseek.New(), deepseek.NewModelMapper(), false, nil), nil

	case "zai":
		client := base.NewClient(timeout, false, nil)
		return openaicompat.New("zai", binding.BaseURL, binding.Credentials.APIKey, client,
			zai.New(), zai.NewModelMapper(), false, nil), nil

	case "xrouter":
		client := base.NewClient(timeout, false, nil)
		return openaicompat.New("xrouter", binding.BaseURL, binding.Credentials.APIKey, client,
			xrouter.New(), xrouter.NewModelMapper(), false, nil), nil

	case "agents":
		client := base.NewClient(timeout, false, nil)
		return openaicompat.New("agents", binding.BaseURL, binding.Credentials.APIKey, client,
			agents.New(), agents.NewModelMapper(), false, nil), nil

	case "openrouter":
		client := base.NewClient(timeout, false, nil)
		pc := cfg.Providers["openrouter"]
		return openaicompat.New("openrouter", binding.BaseURL, binding.Credentials.APIKey, client,
			openrouter.New(), openrouter.NewModelMapper(pc.SupportedModels), false, nil), nil

	case "openrouter_proxy":
		pc := cfg.Providers["openrouter_proxy"]
		return openrouterproxy.New(openrouterproxy.Config{
			BaseURL:         binding.BaseURL,
			APIKey:          binding.Credentials.APIKey,
			ProxyUser:       binding.Parameters["proxy_user"],
			ProxyPassword:   binding.Parameters["proxy_password"],
			ProxyHost:       proxyHost(binding.BaseURL),
			ProxySocks5Port: binding.Parameters["proxy_http_socks5_port"],
			ProxyScheme:     binding.Parameters["proxy_scheme"],
			SupportedModels: pc.SupportedModels,
		})

	case "gigachat":
		return gigachat.New(gigachat.Config{
			BaseURL:      binding.BaseURL,
			OAuthURL:     gigachatOAuthURL,
			Scope:        gigachatScope,
			Login:        binding.Credentials.Login,
			Password:     binding.Credentials.Password,
			ServiceToken: binding.Credentials.APIKey,
			Timeout:      timeout,
		}), nil

	case "yandex":
		client := base.NewClient(timeout, false, nil)
		return yandexdriver.New(binding.BaseURL, binding.Credentials.APIKey, binding.Parameters["folder_id"], client), nil

	case "ollama":
		client := base.NewClient(timeout, false, nil)
		return ollama.New(binding.BaseURL, binding.Credentials.APIKey, client), nil

	default:
		return nil, apperr.BadRequest("no driver registered for provider: " + binding.ProviderID)
	}
}

const (
	gigachatOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	gigachatScope    = "GIGACHAT_API_PERS"
)

// proxyHost extracts the bare host from the OpenRouter-proxy's configured
// base URL, since the tunnel's proxy endpoint is configured by host/port
// separately from the upstream API's own base URL.
func proxyHost(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
