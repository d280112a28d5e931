// Package yandex implements the C4 driver for YandexGPT: a plain bearer-
// token POST to the foundationModels completion endpoint, terminated by
// alternative.status FINAL/TOOL_CALLS rather than an upstream [DONE]
// marker. The wire mapper's MapperState (cumulative-text buffer) is
// constructed fresh per call, owned by this driver instance, never a
// package-level map.
package yandex

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/driver/base"
	"github.com/olegische/llmrouter/internal/wire/yandex"
)

type Driver struct {
	baseURL string // e.g. "https://llm.api.cloud.yandex.net/foundationModels/v1"
	apiKey  string // IAM token or API key, sent as "Api-Key <token>"
	client  *http.Client
	wire    yandex.Mapper
	models  yandex.ModelMapper
}

func New(baseURL, apiKey, folderID string, client *http.Client) *Driver {
	return &Driver{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		wire:    yandex.New(folderID),
		models:  yandex.NewModelMapper(),
	}
}

func (d *Driver) Name() string { return "yandex" }

func (d *Driver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *Driver) CreateCompletion(ctx context.Context, req *core.ChatRequest) (<-chan core.StreamResult, error) {
	body, err := d.wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("building yandex request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Api-Key "+d.apiKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Unavailable("yandex request failed", err)
	}
	if resp.StatusCode >= 400 {
		return nil, base.DrainAndError(resp, "yandex")
	}

	ch := make(chan core.StreamResult)
	go d.stream(ctx, resp, ch)
	return ch, nil
}

func (d *Driver) stream(ctx context.Context, resp *http.Response, ch chan<- core.StreamResult) {
	defer close(ch)
	defer resp.Body.Close()

	// Per-request state: Yandex streams cumulative text, not deltas, so
	// the mapper needs a buffer scoped to exactly this call.
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
		frame, ok, _ := d.wire.ParseSSELine(scanner.Bytes())
		if !ok {
			continue
		}

		chunks, err := d.wire.DecodeChunk(frame, state)
		if err != nil {
			continue
		}
		for i := range chunks {
			terminal := false
			for _, c := range chunks[i].Choices {
				if c.FinishReason != nil {
					terminal = true
				}
			}
			if !send(core.StreamResult{Chunk: &chunks[i]}) {
				return
			}
			if terminal {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		send(core.StreamResult{Err: apperr.Unavailable("yandex stream read failed", err)})
	}
}

func (d *Driver) GetModels(ctx context.Context) ([]core.ProviderModel, error) {
	return d.models.StaticModels(), nil
}

func (d *Driver) GetModel(ctx context.Context, modelID string) (*core.ProviderModel, error) {
	for _, m := range d.models.StaticModels() {
		if m.ModelID == modelID {
			return &m, nil
		}
	}
	return nil, apperr.NotFound(fmt.Sprintf("model %q not found on yandex", modelID))
}
