// Package gigachat implements the C4 driver for GigaChat: OAuth token
// acquisition/refresh ahead of every call, TLS verification always
// disabled (the DISABLE_SSL_VERIFICATION setting, loaded into
// config.ProviderConfig.DisableSSLVerify, is not consulted here), and the
// upstream's own [DONE] marker as the sole termination signal.
package gigachat

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/driver/base"
	"github.com/olegische/llmrouter/internal/wire/gigachat"
)

// Driver is the GigaChat provider driver.
type Driver struct {
	baseURL string // e.g. "https://gigachat.devices.sberbank.ru/api/v1"
	client  *http.Client
	tokens  *tokenSource
	wire    gigachat.Mapper
	models  gigachat.ModelMapper
}

// Config collects the pieces New needs out of the provider binding and
// the ambient config, without the driver package depending on
// internal/config directly.
type Config struct {
	BaseURL      string
	OAuthURL     string
	Scope        string
	Login        string
	Password     string
	ServiceToken string
	Timeout      time.Duration
}

func New(cfg Config) *Driver {
	client := base.NewClient(cfg.Timeout, true, nil) // TLS verification disabled per spec
	return &Driver{
		baseURL: cfg.BaseURL,
		client:  client,
		tokens:  newTokenSource(cfg.OAuthURL, cfg.Scope, cfg.Login, cfg.Password, cfg.ServiceToken, client),
		wire:    gigachat.New(),
		models:  gigachat.NewModelMapper(),
	}
}

func (d *Driver) Name() string { return "gigachat" }

func (d *Driver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *Driver) CreateCompletion(ctx context.Context, req *core.ChatRequest) (<-chan core.StreamResult, error) {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := d.wire.EncodeRequest(req)
	if err != nil {
		return nil, apperr.Internal("encoding gigachat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("building gigachat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Unavailable("gigachat request failed", err)
	}
	if resp.StatusCode >= 400 {
		return nil, base.DrainAndError(resp, "gigachat")
	}

	ch := make(chan core.StreamResult)
	go d.stream(ctx, resp, ch)
	return ch, nil
}

func (d *Driver) stream(ctx context.Context, resp *http.Response, ch chan<- core.StreamResult) {
	defer close(ch)
	defer resp.Body.Close()

	state := &core.MapperState{}
	scanner := base.LineScanner(resp.Body)

	send := func(r core.StreamResult) bool {
		select {
		case ch <- r:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		frame, ok, done := d.wire.ParseSSELine(scanner.Bytes())
		if done {
			// GigaChat's own [DONE] marker is the sole termination signal;
			// no synthesized chunk needed, unlike Ollama.
			return
		}
		if !ok {
			continue
		}

		chunks, err := d.wire.DecodeChunk(frame, state)
		if err != nil {
			continue
		}
		for i := range chunks {
			if !send(core.StreamResult{Chunk: &chunks[i]}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		send(core.StreamResult{Err: apperr.Unavailable("gigachat stream read failed", err)})
	}
}

func (d *Driver) GetModels(ctx context.Context) ([]core.ProviderModel, error) {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/models", nil)
	if err != nil {
		return nil, apperr.Internal("building gigachat models request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Unavailable("gigachat models request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, base.DrainAndError(resp, "gigachat")
	}

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, apperr.Internal("reading gigachat models response", err)
	}
	return d.models.NormalizeModels(buf.Bytes())
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
	return nil, apperr.NotFound(fmt.Sprintf("model %q not found on gigachat", modelID))
}
