// Package ollama implements the C4 driver for a single Ollama server.
// CreateCompletion reuses the generic OpenAI-compatible driver (Ollama
// exposes a /v1/chat/completions endpoint and never reports usage, so the
// generic driver's synthesized-terminal-chunk path is enabled); GetModels
// is bespoke because Ollama has no single endpoint with both the model
// list and its capability metadata — it takes a /api/tags call followed
// by one /api/show call per model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/driver/base"
	"github.com/olegische/llmrouter/internal/driver/openaicompat"
	"github.com/olegische/llmrouter/internal/wire/ollama"
)

type Driver struct {
	baseURL string // e.g. "http://localhost:11434"
	apiKey  string
	client  *http.Client
	models  ollama.ModelMapper
	inner   *openaicompat.Driver
}

func New(baseURL, apiKey string, client *http.Client) *Driver {
	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + apiKey}
	}
	return &Driver{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		models:  ollama.NewModelMapper(),
		inner: openaicompat.New(
			"ollama", baseURL+"/v1", apiKey, client,
			ollama.New(), ollama.NewModelMapper(), true, headers,
		),
	}
}

func (d *Driver) Name() string { return "ollama" }

func (d *Driver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *Driver) CreateCompletion(ctx context.Context, req *core.ChatRequest) (<-chan core.StreamResult, error) {
	return d.inner.CreateCompletion(ctx, req)
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (d *Driver) GetModels(ctx context.Context) ([]core.ProviderModel, error) {
	tags, err := d.fetchTags(ctx)
	if err != nil {
		return nil, err
	}

	assembled := map[string]json.RawMessage{}
	for _, m := range tags.Models {
		show, err := d.fetchShow(ctx, m.Name)
		if err != nil {
			return nil, err
		}
		entry := map[string]json.RawMessage{
			"tags_info": mustMarshal(map[string]any{"name": m.Name}),
			"show_info": show,
		}
		assembled[m.Name] = mustMarshal(entry)
	}

	combined := struct {
		Models []json.RawMessage `json:"models"`
	}{}
	for _, raw := range assembled {
		combined.Models = append(combined.Models, raw)
	}
	raw, err := json.Marshal(combined)
	if err != nil {
		return nil, apperr.Internal("assembling ollama model list", err)
	}
	return d.models.NormalizeModels(raw)
}

func (d *Driver) fetchTags(ctx context.Context) (*tagsResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, apperr.Internal("building ollama tags request", err)
	}
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Unavailable("ollama tags request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, base.DrainAndError(resp, "ollama")
	}
	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, apperr.Internal("decoding ollama tags response", err)
	}
	return &tags, nil
}

func (d *Driver) fetchShow(ctx context.Context, model string) (json.RawMessage, error) {
	body, _ := json.Marshal(map[string]string{"name": model})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/show", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("building ollama show request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Unavailable("ollama show request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, base.DrainAndError(resp, "ollama")
	}
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, apperr.Internal("reading ollama show response", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

func mustMarshal(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}

func (d *Driver) GetModel(ctx context.Context, modelID string) (*core.ProviderModel, error) {
	models, err := d.GetModels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].ModelID == modelID {
			return &models[i], nil
		}
	}
	return nil, apperr.NotFound(fmt.Sprintf("model %q not found on ollama", modelID))
}
