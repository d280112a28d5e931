package openrouterproxy

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/olegische/llmrouter/internal/driver/base"
	"github.com/olegische/llmrouter/internal/driver/openaicompat"
	"github.com/olegische/llmrouter/internal/wire/openrouter"
)

// Config collects the OPENROUTER_PROXY_* settings the proxy driver needs.
// Scheme is "http", "https", or "socks5" (net/http.Transport natively
// dials a SOCKS5 proxy when Proxy returns a "socks5://" URL, so no extra
// dependency is needed for the tunnel itself).
type Config struct {
	BaseURL         string
	APIKey          string
	ProxyUser       string
	ProxyPassword   string
	ProxyHost       string
	ProxySocks5Port string
	ProxyScheme     string
	SupportedModels []string
}

// New builds the OpenRouter-proxy driver: the same OpenAI-compatible wire
// shape as internal/wire/openrouter, tunneled through a SOCKS5/HTTPS proxy
// with a 15s timeout and TLS verification disabled for the tunnel.
func New(cfg Config) (*openaicompat.Driver, error) {
	proxyURL, err := buildProxyURL(cfg)
	if err != nil {
		return nil, err
	}

	client := base.NewClient(15*time.Second, true, proxyURL)
	wireMapper := openrouter.New()
	modelMapper := NewModelMapper(cfg.SupportedModels)

	return openaicompat.New(
		"openrouter-proxy",
		cfg.BaseURL,
		cfg.APIKey,
		client,
		wireMapper,
		modelMapper,
		false,
		nil,
	), nil
}

func buildProxyURL(cfg Config) (*url.URL, error) {
	if cfg.ProxyHost == "" {
		return nil, nil
	}
	scheme := cfg.ProxyScheme
	if scheme == "" {
		scheme = "https"
	}
	host := cfg.ProxyHost
	if cfg.ProxySocks5Port != "" {
		host = fmt.Sprintf("%s:%s", cfg.ProxyHost, cfg.ProxySocks5Port)
	}
	u := &url.URL{Scheme: scheme, Host: host}
	if cfg.ProxyUser != "" {
		u.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return u, nil
}
