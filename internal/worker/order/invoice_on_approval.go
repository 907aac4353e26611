package order

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/messaging"
	invoicesvc "github.com/Additional-Code/tradehub/internal/service/invoice"
	ordersvc "github.com/Additional-Code/tradehub/internal/service/order"
	"github.com/Additional-Code/tradehub/internal/worker"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/tradehub/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewInvoiceOnApprovalHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Issuer is the part of the invoice service the handler needs.
type Issuer interface {
	IssueForOrder(ctx context.Context, orderID int64) (*entity.Invoice, bool, error)
}

// NewInvoiceOnApprovalHandler makes sure every approved order ends up with an invoice. It backs up
// the synchronous issuance done at approval time, which may have failed.
func NewInvoiceOnApprovalHandler(logger *zap.Logger, invoices *invoicesvc.Service) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		EventType: messaging.EventOrderStatusChanged,
		Handler:   invoiceOnApproval(logger, invoices),
	}
}

func invoiceOnApproval(logger *zap.Logger, invoices Issuer) worker.EventHandler {
	return func(ctx context.Context, event messaging.Event) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.invoice_on_approval", trace.WithAttributes(
			attribute.String("event.id", event.ID),
		))
		defer span.End()

		var payload ordersvc.OrderEvent
		if err := event.Decode(&payload); err != nil {
			logger.Error("failed to decode order event", zap.String("event_id", event.ID), zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		if payload.Status != string(entity.OrderStatusApproved) {
			return nil
		}

		invoice, created, err := invoices.IssueForOrder(ctx, payload.ID)
		if err != nil {
			// the order moved on or vanished; retrying cannot help
			if errorbank.IsKind(err, errorbank.KindInvalidState) || errorbank.IsKind(err, errorbank.KindNotFound) {
				logger.Warn("skipping invoice for order", zap.Int64("order_id", payload.ID), zap.Error(err))
				return nil
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "issue failed")
			return err
		}

		logger.Info("approved order invoiced",
			zap.Int64("order_id", payload.ID),
			zap.Int64("invoice_id", invoice.ID),
			zap.Bool("created", created),
		)
		return nil
	}
}
