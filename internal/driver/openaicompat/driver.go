// Package openaicompat implements the C4 driver shared by every upstream
// that speaks an OpenAI-compatible chat-completions wire format: DeepSeek,
// OpenRouter, Z.AI, Ollama, and XRouter. Each caller constructs this driver
// with its own base URL, API key, and core.WireMapper/core.ModelMapper pair
// (internal/wire/deepseek, internal/wire/zai, ...); the HTTP/SSE mechanics
// below are identical across all of them, grounded on the teacher's
// google.go/anthropic.go goroutine-over-channel streaming pattern.
package openaicompat

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/driver/base"
)

// Driver is the shared OpenAI-compatible C4 driver. synthesizeFinal, when
// true, tells the driver to emit a synthetic zero-usage terminal chunk
// after the upstream's [DONE] marker (or the end of the body) whenever the
// stream has not reached core.StateTerminated — Ollama's termination rule,
// since Ollama never reports usage at all.
type Driver struct {
	providerName    string
	baseURL         string // e.g. "https://api.deepseek.com/v1"
	apiKey          string
	client          *http.Client
	wire            core.WireMapper
	models          core.ModelMapper
	synthesizeFinal bool
	extraHeaders    map[string]string
}

// New constructs an openaicompat driver. extraHeaders lets callers add
// provider-specific auth headers beyond the default "Authorization: Bearer".
func New(providerName, baseURL, apiKey string, client *http.Client, wire core.WireMapper, models core.ModelMapper, synthesizeFinal bool, extraHeaders map[string]string) *Driver {
	return &Driver{
		providerName:    providerName,
		baseURL:         baseURL,
		apiKey:          apiKey,
		client:          client,
		wire:            wire,
		models:          models,
		synthesizeFinal: synthesizeFinal,
		extraHeaders:    extraHeaders,
	}
}

func (d *Driver) Name() string { return d.providerName }

func (d *Driver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *Driver) CreateCompletion(ctx context.Context, req *core.ChatRequest) (<-chan core.StreamResult, error) {
	body, err := d.wire.EncodeRequest(req)
	if err != nil {
		return nil, apperr.Internal("encoding request for "+d.providerName, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("building request for "+d.providerName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}
	for k, v := range d.extraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Unavailable(d.providerName+" request failed", err)
	}

	if resp.StatusCode >= 400 {
		return nil, base.DrainAndError(resp, d.providerName)
	}

	ch := make(chan core.StreamResult)
	go d.stream(ctx, resp, ch)
	return ch, nil
}

func (d *Driver) stream(ctx context.Context, resp *http.Response, ch chan<- core.StreamResult) {
	defer close(ch)
	defer resp.Body.Close()

	state := &core.MapperState{}
	var detector core.TerminalDetector
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
			if d.synthesizeFinal && detector.State() != core.StateTerminated {
				send(core.StreamResult{Chunk: synthesizeZeroUsageChunk()})
			}
			return
		}
		if !ok {
			continue
		}

		if midErr := base.DetectMidStreamError(frame, d.providerName); midErr != nil {
			send(core.StreamResult{Err: midErr})
			return
		}

		chunks, err := d.wire.DecodeChunk(frame, state)
		if err != nil {
			// Invalid JSON on a single frame is skipped silently per the
			// gateway's decoding contract; the driver keeps reading.
			continue
		}
		for i := range chunks {
			hasFinish := false
			for _, c := range chunks[i].Choices {
				if c.FinishReason != nil {
					hasFinish = true
					break
				}
			}
			detector.Observe(hasFinish, chunks[i].Usage != nil)
			if !send(core.StreamResult{Chunk: &chunks[i]}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		send(core.StreamResult{Err: apperr.Unavailable(d.providerName+" stream read failed", err)})
		return
	}
	if d.synthesizeFinal && detector.State() != core.StateTerminated {
		send(core.StreamResult{Chunk: synthesizeZeroUsageChunk()})
	}
}

func synthesizeZeroUsageChunk() *core.StreamChunk {
	finish := "stop"
	return &core.StreamChunk{
		Object: "chat.completion.chunk",
		Usage:  &core.Usage{},
		Choices: []core.StreamChoice{
			{FinishReason: &finish},
		},
	}
}

func (d *Driver) GetModels(ctx context.Context) ([]core.ProviderModel, error) {
	if static := d.models.StaticModels(); static != nil {
		return static, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/models", nil)
	if err != nil {
		return nil, apperr.Internal("building models request for "+d.providerName, err)
	}
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}
	for k, v := range d.extraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Unavailable(d.providerName+" models request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, base.DrainAndError(resp, d.providerName)
	}

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, apperr.Internal("reading models response from "+d.providerName, err)
	}
	models, err := d.models.NormalizeModels(buf.Bytes())
	if err != nil {
		return nil, apperr.Internal("normalizing models from "+d.providerName, err)
	}
	return models, nil
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
	return nil, apperr.NotFound(fmt.Sprintf("model %q not found on %s", modelID, d.providerName))
}
