// Package billing implements the gateway's billing collaborator: hold
// creation, finalization, and usage/generation recording, with a
// degradation policy that favors availability over perfect accounting.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
)

// ModelRate is one entry from the billing service's rate table.
type ModelRate struct {
	ExternalModelID    string  `json:"external_model_id"`
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
}

// Hold is the result of a "create hold" call. AmountHeld is nil when the
// billing service rejected the hold for insufficient funds.
type Hold struct {
	AmountHeld    *float64
	TransactionID string
}

// UsageRecord is posted once actual token usage is known.
type UsageRecord struct {
	TransactionID string
	UserID        string
	ExternalModelID string
	Tokens        core.TokenCount
	Cost          float64
	Meta          map[string]any
}

// GenerationRecord captures request-level billing metadata posted after a
// request completes.
type GenerationRecord struct {
	GenerationID    string
	UserID          string
	ExternalModelID string
	Streamed        bool
	FinishReason    string
	Duration        time.Duration
	TokensPerSecond float64
}

// Client is the billing collaborator port. Every method may be called
// concurrently for different requests.
type Client interface {
	GetAllModelRates(ctx context.Context) ([]ModelRate, error)
	CalculateCost(ctx context.Context, externalModelID string, tokens core.TokenCount) (float64, error)

	// ProcessCostWithTokens creates a hold sized to tokens. A nil
	// AmountHeld on the returned Hold means insufficient funds.
	ProcessCostWithTokens(ctx context.Context, userID, externalModelID string, tokens core.TokenCount) (Hold, error)

	// FinalizeHoldWithTokens converts a hold into its actual cost.
	FinalizeHoldWithTokens(ctx context.Context, transactionID string, tokens core.TokenCount, cost float64) error

	// ReleaseHold cancels an outstanding hold without finalizing it. Exposed
	// for a future compensating action on client disconnect; nothing in the
	// handler chain calls it today — holds expire by policy in the billing
	// service instead.
	ReleaseHold(ctx context.Context, transactionID string) error

	CreateUsage(ctx context.Context, rec UsageRecord) error
	CreateGeneration(ctx context.Context, rec GenerationRecord) error
}

// HTTPClient is the production Client, talking to the billing service over
// a JSON HTTP API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// NewHTTPClient builds an HTTPClient with the given base URL and request
// timeout.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding billing request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building billing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, fmt.Errorf("reading billing response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return resp, apperr.FromHTTPStatus(resp.StatusCode, "billing service error", map[string]any{"body": string(raw)})
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("decoding billing response: %w", err)
		}
	}
	return resp, nil
}

func (c *HTTPClient) GetAllModelRates(ctx context.Context) ([]ModelRate, error) {
	var rates []ModelRate
	_, err := c.do(ctx, http.MethodGet, "/rates", nil, &rates)
	return rates, err
}

func (c *HTTPClient) CalculateCost(ctx context.Context, externalModelID string, tokens core.TokenCount) (float64, error) {
	var out struct {
		Cost float64 `json:"cost"`
	}
	_, err := c.do(ctx, http.MethodPost, "/cost", map[string]any{
		"external_model_id": externalModelID,
		"tokens":            tokens,
	}, &out)
	return out.Cost, err
}

func (c *HTTPClient) ProcessCostWithTokens(ctx context.Context, userID, externalModelID string, tokens core.TokenCount) (Hold, error) {
	var out struct {
		AmountHeld    *float64 `json:"amount_held"`
		TransactionID string   `json:"transaction_id"`
	}
	resp, err := c.do(ctx, http.MethodPost, "/holds", map[string]any{
		"user_id":           userID,
		"external_model_id": externalModelID,
		"tokens":            tokens,
	}, &out)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusPaymentRequired {
			return Hold{}, apperr.InsufficientFunds("Insufficient funds for request processing")
		}
		return Hold{}, err
	}
	return Hold{AmountHeld: out.AmountHeld, TransactionID: out.TransactionID}, nil
}

func (c *HTTPClient) FinalizeHoldWithTokens(ctx context.Context, transactionID string, tokens core.TokenCount, cost float64) error {
	_, err := c.do(ctx, http.MethodPost, "/holds/"+transactionID+"/finalize", map[string]any{
		"tokens": tokens,
		"cost":   cost,
	}, nil)
	return err
}

func (c *HTTPClient) ReleaseHold(ctx context.Context, transactionID string) error {
	_, err := c.do(ctx, http.MethodPost, "/holds/"+transactionID+"/release", nil, nil)
	return err
}

func (c *HTTPClient) CreateUsage(ctx context.Context, rec UsageRecord) error {
	_, err := c.do(ctx, http.MethodPost, "/usage", rec, nil)
	return err
}

func (c *HTTPClient) CreateGeneration(ctx context.Context, rec GenerationRecord) error {
	_, err := c.do(ctx, http.MethodPost, "/generations", rec, nil)
	return err
}

// DegradationRecorder is notified whenever DegradingClient falls back to a
// synthetic result, keyed by the call that degraded ("rates_unavailable",
// "cost_unavailable", "finalize_unavailable", "release_unavailable",
// "usage_record_unavailable", "generation_record_unavailable").
type DegradationRecorder interface {
	RecordDegradation(reason string)
}

// noopRecorder satisfies DegradationRecorder when the caller doesn't care.
type noopRecorder struct{}

func (noopRecorder) RecordDegradation(string) {}

// DegradingClient wraps a Client and applies the "availability over
// perfect accounting" policy: network and 5xx failures on non-hold calls
// produce synthetic zero-cost results instead of aborting the request.
// 402 (insufficient funds) from ProcessCostWithTokens is always surfaced,
// never degraded — it's a business decision, not an infrastructure fault.
type DegradingClient struct {
	inner    Client
	recorder DegradationRecorder
}

// NewDegradingClient wraps inner with the degradation policy. recorder may
// be nil.
func NewDegradingClient(inner Client, recorder DegradationRecorder) *DegradingClient {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &DegradingClient{inner: inner, recorder: recorder}
}

func isDegradable(err error) bool {
	if err == nil {
		return false
	}
	ae := apperr.As(err)
	if ae == nil {
		// Network-level error (no structured classification): degrade.
		return true
	}
	return ae.Code >= 500 || ae.Code == 408
}

func (c *DegradingClient) GetAllModelRates(ctx context.Context) ([]ModelRate, error) {
	rates, err := c.inner.GetAllModelRates(ctx)
	if isDegradable(err) {
		c.recorder.RecordDegradation("rates_unavailable")
		return nil, nil
	}
	return rates, err
}

func (c *DegradingClient) CalculateCost(ctx context.Context, externalModelID string, tokens core.TokenCount) (float64, error) {
	cost, err := c.inner.CalculateCost(ctx, externalModelID, tokens)
	if isDegradable(err) {
		c.recorder.RecordDegradation("cost_unavailable")
		return 0, nil
	}
	return cost, err
}

// ProcessCostWithTokens never degrades: insufficient funds (402) and
// transport failures alike must surface, since a hold is the gate that
// decides whether the upstream call happens at all.
func (c *DegradingClient) ProcessCostWithTokens(ctx context.Context, userID, externalModelID string, tokens core.TokenCount) (Hold, error) {
	return c.inner.ProcessCostWithTokens(ctx, userID, externalModelID, tokens)
}

func (c *DegradingClient) FinalizeHoldWithTokens(ctx context.Context, transactionID string, tokens core.TokenCount, cost float64) error {
	err := c.inner.FinalizeHoldWithTokens(ctx, transactionID, tokens, cost)
	if isDegradable(err) {
		c.recorder.RecordDegradation("finalize_unavailable")
		return nil
	}
	return err
}

func (c *DegradingClient) ReleaseHold(ctx context.Context, transactionID string) error {
	err := c.inner.ReleaseHold(ctx, transactionID)
	if isDegradable(err) {
		c.recorder.RecordDegradation("release_unavailable")
		return nil
	}
	return err
}

func (c *DegradingClient) CreateUsage(ctx context.Context, rec UsageRecord) error {
	err := c.inner.CreateUsage(ctx, rec)
	if isDegradable(err) {
		c.recorder.RecordDegradation("usage_record_unavailable")
		return nil
	}
	return err
}

func (c *DegradingClient) CreateGeneration(ctx context.Context, rec GenerationRecord) error {
	err := c.inner.CreateGeneration(ctx, rec)
	if isDegradable(err) {
		c.recorder.RecordDegradation("generation_record_unavailable")
		return nil
	}
	return err
}

// NewGenerationID mints a "gen_<uuid>" id for the billing-disabled path,
// where no hold transaction id exists to reuse.
func NewGenerationID() string {
	return "gen_" + uuid.NewString()
}
