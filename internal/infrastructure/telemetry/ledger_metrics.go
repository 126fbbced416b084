package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrTenantID  = attribute.Key("tenant_id")
	AttrOwnerType = attribute.Key("owner_type")
	AttrOutcome   = attribute.Key("outcome")
)

// AmountBuckets are histogram boundaries for money amounts
var AmountBuckets = []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000}

// Counter wraps an Int64Counter
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new Counter metric.
func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return &Counter{counter: c}, nil
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Histogram wraps a Float64Histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// HistogramOpts provides options for creating a histogram.
type HistogramOpts struct {
	Name        string
	Description string
	Unit        string
	Boundaries  []float64
}

// NewHistogram creates a new Histogram metric.
func NewHistogram(meter metric.Meter, opts HistogramOpts) (*Histogram, error) {
	histogramOpts := []metric.Float64HistogramOption{
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	}
	if len(opts.Boundaries) > 0 {
		histogramOpts = append(histogramOpts, metric.WithExplicitBucketBoundaries(opts.Boundaries...))
	}
	h, err := meter.Float64Histogram(opts.Name, histogramOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", opts.Name, err)
	}
	return &Histogram{histogram: h}, nil
}

// Record records a value to the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// LedgerMetrics records payment and collection activity.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	paymentsRecorded  *Counter
	paymentAmount     *Histogram
	collections       *Counter
	collectionApplied *Histogram
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	var (
		m   LedgerMetrics
		err error
	)
	if m.paymentsRecorded, err = NewCounter(meter,
		"ledger_payments_recorded_total", "Payments recorded against debts", "{payment}"); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_payment_amount",
		Description: "Amount of recorded payments",
		Unit:        "{currency}",
		Boundaries:  AmountBuckets,
	}); err != nil {
		return nil, err
	}
	if m.collections, err = NewCounter(meter,
		"ledger_collections_total", "Quick collect requests by outcome", "{request}"); err != nil {
		return nil, err
	}
	if m.collectionApplied, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_collection_applied_amount",
		Description: "Amount applied by one quick collect request",
		Unit:        "{currency}",
		Boundaries:  AmountBuckets,
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordPayment counts one recorded payment and its amount
func (m *LedgerMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, ownerType ledger.OwnerType, amount decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID.String()),
		AttrOwnerType.String(string(ownerType)),
	}
	m.paymentsRecorded.Inc(ctx, attrs...)
	m.paymentAmount.Record(ctx, amount.InexactFloat64(), attrs...)
}

// RecordCollection counts one quick collect request by outcome. The applied
// amount is only recorded when something was applied.
func (m *LedgerMetrics) RecordCollection(ctx context.Context, tenantID uuid.UUID, outcome string, applied decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(outcome),
	}
	m.collections.Inc(ctx, attrs...)
	if applied.IsPositive() {
		m.collectionApplied.Record(ctx, applied.InexactFloat64(), attrs...)
	}
}
