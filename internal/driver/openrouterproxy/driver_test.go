package openrouterproxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/core"
)

func TestNew_NoProxyHostLeavesClientUnproxied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":1,\"completion_tokens\":1,\"total_tokens\":2}}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	d, err := New(Config{BaseURL: srv.URL, APIKey: "k", SupportedModels: []string{"openai/gpt-4o"}})
	require.NoError(t, err)

	ch, err := d.CreateCompletion(context.Background(), &core.ChatRequest{Model: "openai/gpt-4o", Messages: []core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}}})
	require.NoError(t, err)

	var results []core.StreamResult
	for r := range ch {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	assert.Equal(t, "hi", results[0].Chunk.Choices[0].Delta.Content)
}

func TestNew_ProxyHostConfiguresTunnel(t *testing.T) {
	d, err := New(Config{
		BaseURL:         "https://openrouter.ai/api/v1",
		APIKey:          "k",
		ProxyHost:       "proxy.example.com",
		ProxySocks5Port: "1080",
		ProxyScheme:     "socks5",
		ProxyUser:       "user",
		ProxyPassword:   "pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "openrouter-proxy", d.Name())
}
