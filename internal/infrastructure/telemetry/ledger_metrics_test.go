package telemetry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func newTestLedgerMetrics(t *testing.T) (*telemetry.LedgerMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewLedgerMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func TestLedgerMetrics_RecordPayment(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)
	tenantID := uuid.New()

	m.RecordPayment(context.Background(), tenantID, ledger.OwnerTypeCustomer, decimal.NewFromInt(400))
	m.RecordPayment(context.Background(), tenantID, ledger.OwnerTypeCustomer, decimal.NewFromInt(600))

	metrics := collect(t, reader)
	sum, ok := metrics["ledger_payments_recorded_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	hist, ok := metrics["ledger_payment_amount"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 1000, hist.DataPoints[0].Sum, 0.001)
}

func TestLedgerMetrics_RecordCollection(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)
	tenantID := uuid.New()

	m.RecordCollection(context.Background(), tenantID, "completed", decimal.NewFromInt(600))
	m.RecordCollection(context.Background(), tenantID, "no_pending", decimal.Zero)

	metrics := collect(t, reader)
	sum := metrics["ledger_collections_total"].Data.(metricdata.Sum[int64])
	assert.Len(t, sum.DataPoints, 2)

	hist := metrics["ledger_collection_applied_amount"].Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestLedgerMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.LedgerMetrics
	assert.NotPanics(t, func() {
		m.RecordPayment(context.Background(), uuid.New(), ledger.OwnerTypeSupplier, decimal.NewFromInt(1))
		m.RecordCollection(context.Background(), uuid.New(), "partial", decimal.NewFromInt(1))
	})
}
