package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewUnregistered(reg)

	m.RequestsTotal.WithLabelValues("openai_chat", "deepseek", "200").Inc()
	m.BillingDegradations.WithLabelValues("timeout").Inc()
	m.HoldAmount.Set(4.5)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, mf := range metricFamilies {
		found[mf.GetName()] = true
	}
	assert.True(t, found["llmrouter_http_requests_total"])
	assert.True(t, found["llmrouter_billing_degradations_total"])
	assert.True(t, found["llmrouter_billing_outstanding_hold_total"])
}

func TestRegistry_HoldAmountGaugeValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewUnregistered(reg)
	m.HoldAmount.Set(12.5)

	var out dto.Metric
	require.NoError(t, m.HoldAmount.Write(&out))
	assert.Equal(t, 12.5, out.GetGauge().GetValue())
}

func TestRegistry_RecordDegradation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewUnregistered(reg)
	m.RecordDegradation("billing_timeout")

	var out dto.Metric
	require.NoError(t, m.BillingDegradations.WithLabelValues("billing_timeout").Write(&out))
	assert.Equal(t, 1.0, out.GetCounter().GetValue())
}
