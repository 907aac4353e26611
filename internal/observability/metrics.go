package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Additional-Code/tradehub"

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	previews        metric.Int64Counter
	confirmations   metric.Int64Counter
	rejections      metric.Int64Counter
	transitions     metric.Int64Counter
	invoiceIssuance metric.Int64Counter
}

// NewMetrics registers the domain counters on the manager's meter.
func NewMetrics(mgr *Manager) (*Metrics, error) {
	return newMetrics(mgr.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	previews, err := meter.Int64Counter("tradehub.previews.created",
		metric.WithDescription("Preview quotes issued."))
	if err != nil {
		return nil, err
	}
	confirmations, err := meter.Int64Counter("tradehub.orders.confirmed",
		metric.WithDescription("Orders created from a preview token."))
	if err != nil {
		return nil, err
	}
	rejections, err := meter.Int64Counter("tradehub.orders.confirm_rejected",
		metric.WithDescription("Confirmations refused, by error kind."))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("tradehub.orders.transitions",
		metric.WithDescription("Order status changes, by target status."))
	if err != nil {
		return nil, err
	}
	invoices, err := meter.Int64Counter("tradehub.invoices.issuance",
		metric.WithDescription("Invoice issuance calls, by outcome."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		previews:        previews,
		confirmations:   confirmations,
		rejections:      rejections,
		transitions:     transitions,
		invoiceIssuance: invoices,
	}, nil
}

func (m *Metrics) PreviewCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.previews.Add(ctx, 1)
}

func (m *Metrics) OrderConfirmed(ctx context.Context) {
	if m == nil {
		return
	}
	m.confirmations.Add(ctx, 1)
}

func (m *Metrics) ConfirmRejected(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) OrderTransitioned(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", to)))
}

// InvoiceIssuance records whether an issuance call created an invoice or returned the existing one.
func (m *Metrics) InvoiceIssuance(ctx context.Context, created bool) {
	if m == nil {
		return
	}
	outcome := "reused"
	if created {
		outcome = "created"
	}
	m.invoiceIssuance.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
