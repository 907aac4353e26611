package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))

	sums := make(map[string]metricdata.Sum[int64])
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				sums[m.Name] = sum
			}
		}
	}
	return sums
}

func valueFor(sum metricdata.Sum[int64], key, value string) int64 {
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestMetricsRecordDomainCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(provider.Meter(meterName))
	require.NoError(t, err)

	ctx := t.Context()
	m.PreviewCreated(ctx)
	m.PreviewCreated(ctx)
	m.OrderConfirmed(ctx)
	m.ConfirmRejected(ctx, "stale_quote")
	m.OrderTransitioned(ctx, "approved")
	m.InvoiceIssuance(ctx, true)
	m.InvoiceIssuance(ctx, false)
	m.InvoiceIssuance(ctx, false)

	sums := collect(t, reader)
	require.Len(t, sums["tradehub.previews.created"].DataPoints, 1)
	assert.Equal(t, int64(2), sums["tradehub.previews.created"].DataPoints[0].Value)
	assert.Equal(t, int64(1), valueFor(sums["tradehub.orders.confirm_rejected"], "kind", "stale_quote"))
	assert.Equal(t, int64(1), valueFor(sums["tradehub.orders.transitions"], "status", "approved"))
	assert.Equal(t, int64(1), valueFor(sums["tradehub.invoices.issuance"], "outcome", "created"))
	assert.Equal(t, int64(2), valueFor(sums["tradehub.invoices.issuance"], "outcome", "reused"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PreviewCreated(t.Context())
		m.ConfirmRejected(t.Context(), "validation")
		m.InvoiceIssuance(t.Context(), true)
	})
}
