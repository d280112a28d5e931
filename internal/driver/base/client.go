// Package base holds the HTTP/SSE plumbing shared by every C4 provider
// driver: client construction, SSE line scanning, status-code draining,
// and the OpenRouter mid-stream error-object shape. Per-provider drivers
// (internal/driver/openaicompat, gigachat, yandex, openrouterproxy) build
// their *http.Client with NewClient and call these helpers from their own
// CreateCompletion.
package base

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

// NewClient builds the single *http.Client a driver instance owns for its
// lifetime. insecureSkipVerify disables TLS verification (GigaChat,
// OpenRouter-proxy's tunnel); proxyURL, when non-nil, is dialed via
// Transport.Proxy for the SOCKS5/HTTPS tunnel case.
func NewClient(timeout time.Duration, insecureSkipVerify bool, proxyURL *url.URL) *http.Client {
	transport := &http.Transport{}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
