package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
)

type fakeClient struct {
	rates     []ModelRate
	ratesErr  error
	hold      Hold
	holdErr   error
	finalErr  error
	usageErr  error
	genErr    error
}

func (f *fakeClient) GetAllModelRates(context.Context) ([]ModelRate, error) { return f.rates, f.ratesErr }
func (f *fakeClient) CalculateCost(context.Context, string, core.TokenCount) (float64, error) {
	return 0, f.ratesErr
}
func (f *fakeClient) ProcessCostWithTokens(context.Context, string, string, core.TokenCount) (Hold, error) {
	return f.hold, f.holdErr
}
func (f *fakeClient) FinalizeHoldWithTokens(context.Context, string, core.TokenCount, float64) error {
	return f.finalErr
}
func (f *fakeClient) ReleaseHold(context.Context, string) error { return nil }
func (f *fakeClient) CreateUsage(context.Context, UsageRecord) error { return f.usageErr }
func (f *fakeClient) CreateGeneration(context.Context, GenerationRecord) error { return f.genErr }

type recordingRecorder struct{ reasons []string }

func (r *recordingRecorder) RecordDegradation(reason string) { r.reasons = append(r.reasons, reason) }

func TestDegradingClient_DegradesOnNetworkError(t *testing.T) {
	fake := &fakeClient{usageErr: errors.New("dial tcp: connection refused")}
	rec := &recordingRecorder{}
	dc := NewDegradingClient(fake, rec)

	err := dc.CreateUsage(context.Background(), UsageRecord{})
	require.NoError(t, err)
	assert.Equal(t, []string{"usage_record_unavailable"}, rec.reasons)
}

func TestDegradingClient_DegradesOn503(t *testing.T) {
	fake := &fakeClient{finalErr: apperr.Unavailable("billing down", errors.New("dial refused"))}
	rec := &recordingRecorder{}
	dc := NewDegradingClient(fake, rec)

	err := dc.FinalizeHoldWithTokens(context.Background(), "tx_1", core.TokenCount{}, 1.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"finalize_unavailable"}, rec.reasons)
}

func TestDegradingClient_NeverDegradesInsufficientFunds(t *testing.T) {
	fake := &fakeClient{holdErr: apperr.InsufficientFunds("Insufficient funds for request processing")}
	dc := NewDegradingClient(fake, nil)

	_, err := dc.ProcessCostWithTokens(context.Background(), "user-1", "deepseek/deepseek-chat", core.TokenCount{})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, 402, ae.Code)
	assert.Equal(t, "payment_required", ae.Details["error_type"])
}

func TestDegradingClient_PassesThroughSuccess(t *testing.T) {
	amount := 0.0025
	fake := &fakeClient{hold: Hold{AmountHeld: &amount, TransactionID: "tx_42"}}
	dc := NewDegradingClient(fake, nil)

	hold, err := dc.ProcessCostWithTokens(context.Background(), "user-1", "deepseek/deepseek-chat", core.TokenCount{})
	require.NoError(t, err)
	require.NotNil(t, hold.AmountHeld)
	assert.Equal(t, amount, *hold.AmountHeld)
	assert.Equal(t, "tx_42", hold.TransactionID)
}

func TestNewGenerationID_HasExpectedPrefix(t *testing.T) {
	id := NewGenerationID()
	assert.Regexp(t, `^gen_[0-9a-f-]{36}$`, id)
}
