// Package invoice issues and manages the financial snapshot of approved orders. Every order has
// at most one non-void invoice; issuance is idempotent and safe to call concurrently.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/cache"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/messaging"
	"github.com/Additional-Code/tradehub/internal/numbering"
	"github.com/Additional-Code/tradehub/internal/observability"
	"github.com/Additional-Code/tradehub/internal/principal"
	invoicerepo "github.com/Additional-Code/tradehub/internal/repository/invoice"
	orderrepo "github.com/Additional-Code/tradehub/internal/repository/order"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

const numberAttempts = 3

var serviceTracer = otel.Tracer("github.com/Additional-Code/tradehub/service/invoice")

// Service encapsulates invoice issuance and lifecycle.
type Service struct {
	conns     *database.Connections
	orders    *orderrepo.Repository
	invoices  *invoicerepo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	publisher messaging.Client
	events    bool
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
	number    func(time.Time) (string, error)
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Orders      *orderrepo.Repository
	Invoices    *invoicerepo.Repository
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
	Publisher   messaging.Client
	Metrics     *observability.Metrics `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:     p.Connections,
		orders:    p.Orders,
		invoices:  p.Invoices,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		publisher: p.Publisher,
		events:    p.Config.Messaging.Enabled,
		metrics:   p.Metrics,
		logger:    p.Logger,
		now:       time.Now,
		number:    numbering.InvoiceNumber,
	}
}

// IssueForOrder returns the active invoice of an order, creating it from the order snapshots
// when none exists. created is false when an existing invoice was returned.
func (s *Service) IssueForOrder(ctx context.Context, orderID int64) (invoice *entity.Invoice, created bool, err error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.IssueForOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetFromWriter(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, false, errorbank.NotFound("order not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, false, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if !order.Status.Invoiceable() {
		return nil, false, errorbank.InvalidState(
			fmt.Sprintf("order in status %s cannot be invoiced", order.Status),
			errorbank.WithDetail("status", order.Status),
		)
	}

	existing, err := s.invoices.FindActiveByOrder(ctx, orderID)
	if err == nil {
		s.metrics.InvoiceIssuance(ctx, false)
		return existing, false, nil
	}
	if !errors.Is(err, invoicerepo.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, false, errorbank.Internal("failed to load invoice", errorbank.WithCause(err))
	}

	invoice, created, err = s.issue(ctx, order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
	}
	return invoice, created, err
}

// issue inserts a new invoice for order. A unique violation means either another caller issued
// first, in which case its invoice is returned, or the number collided and is redrawn.
func (s *Service) issue(ctx context.Context, order *entity.Order) (*entity.Invoice, bool, error) {
	for attempt := 1; attempt <= numberAttempts; attempt++ {
		now := s.now().UTC()
		number, err := s.number(now)
		if err != nil {
			return nil, false, errorbank.Internal("failed to generate invoice number", errorbank.WithCause(err))
		}
		invoice := Build(order, number, now)

		err = s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			return s.invoices.WithTx(tx).Create(ctx, invoice)
		})
		if err == nil {
			s.afterIssue(ctx, invoice)
			return invoice, true, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, false, errorbank.Internal("failed to create invoice", errorbank.WithCause(err))
		}

		existing, findErr := s.invoices.FindActiveByOrder(ctx, order.ID)
		if findErr == nil {
			s.metrics.InvoiceIssuance(ctx, false)
			s.logger.Info("invoice issued concurrently; returning existing",
				zap.Int64("order_id", order.ID),
				zap.Int64("invoice_id", existing.ID),
			)
			return existing, false, nil
		}
		if !errors.Is(findErr, invoicerepo.ErrNotFound) {
			return nil, false, errorbank.Internal("failed to load invoice", errorbank.WithCause(findErr))
		}
		s.logger.Warn("invoice number collision", zap.String("number", number), zap.Int("attempt", attempt))
	}
	return nil, false, errorbank.BusinessRule("duplicate invoice number")
}

func (s *Service) afterIssue(ctx context.Context, invoice *entity.Invoice) {
	s.metrics.InvoiceIssuance(ctx, true)
	s.logger.Info("invoice issued",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("number", invoice.Number),
		zap.Int64("order_id", invoice.OrderID),
		zap.String("total", invoice.Total.StringFixed(2)),
	)
	s.storeInCache(ctx, invoice)
	s.publish(ctx, messaging.EventInvoiceIssued, invoice)
}

// Build derives an unpaid invoice from an order's item and bonus snapshots.
func Build(order *entity.Order, number string, issuedAt time.Time) *entity.Invoice {
	invoice := &entity.Invoice{
		Number:     number,
		OrderID:    order.ID,
		CompanyID:  order.CompanyID,
		CustomerID: order.CustomerID,
		Status:     entity.InvoiceStatusUnpaid,
		IssuedAt:   issuedAt,
		Items:      make([]*entity.InvoiceItem, 0, len(order.Items)),
	}

	subtotal, discount := decimal.Zero, decimal.Zero
	for _, item := range order.Items {
		line := &entity.InvoiceItem{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			Description: item.ProductName,
			Qty:         item.Qty,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			LineTotal:   item.LineTotal,
		}
		for _, bonus := range item.Bonuses {
			line.Bonuses = append(line.Bonuses, &entity.InvoiceBonusItem{
				BonusProductID: bonus.BonusProductID,
				Description:    bonus.BonusProductName,
				BonusQty:       bonus.BonusQty,
			})
		}
		invoice.Items = append(invoice.Items, line)
		subtotal = subtotal.Add(item.LineTotal)
		discount = discount.Add(item.Discount)
	}

	invoice.Subtotal = subtotal
	invoice.Discount = discount
	invoice.Total = subtotal.Sub(discount)
	return invoice
}

// Get returns an invoice visible to caller.
func (s *Service) Get(ctx context.Context, caller principal.Principal, id int64) (*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.Get", trace.WithAttributes(attribute.Int64("invoice.id", id)))
	defer span.End()

	invoice, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanSee(invoice.CompanyID, invoice.CustomerID) {
		return nil, errorbank.NotFound("invoice not found")
	}
	return invoice, nil
}

// GetByOrder returns the active invoice of an order visible to caller.
func (s *Service) GetByOrder(ctx context.Context, caller principal.Principal, orderID int64) (*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.GetByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if !caller.CanSee(order.CompanyID, order.CustomerID) {
		return nil, errorbank.NotFound("order not found")
	}

	invoice, err := s.invoices.FindActiveByOrder(ctx, orderID)
	if errors.Is(err, invoicerepo.ErrNotFound) {
		return nil, errorbank.NotFound("order has no invoice")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load invoice", errorbank.WithCause(err))
	}
	return invoice, nil
}

// Void cancels an invoice. Only administrators may void, and a voided order may be re-invoiced.
func (s *Service) Void(ctx context.Context, caller principal.Principal, id int64) (*entity.Invoice, error) {
	if !caller.IsAdmin() {
		return nil, errorbank.Forbidden("only administrators can void invoices")
	}
	return s.move(ctx, caller, id, entity.InvoiceStatusVoid, messaging.EventInvoiceVoided)
}

// MarkPaid records payment of an unpaid invoice. Allowed for the issuing seller and administrators.
func (s *Service) MarkPaid(ctx context.Context, caller principal.Principal, id int64) (*entity.Invoice, error) {
	if !caller.IsAdmin() && !caller.Is(principal.RoleCompany) {
		return nil, errorbank.Forbidden("only sellers can mark invoices paid")
	}
	return s.move(ctx, caller, id, entity.InvoiceStatusPaid, messaging.EventInvoicePaid)
}

func (s *Service) move(ctx context.Context, caller principal.Principal, id int64, to entity.InvoiceStatus, event string) (*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("invoice.id", id),
		attribute.String("invoice.status", string(to)),
	))
	defer span.End()

	invoice, err := s.invoices.GetByID(ctx, id)
	if errors.Is(err, invoicerepo.ErrNotFound) {
		return nil, errorbank.NotFound("invoice not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load invoice", errorbank.WithCause(err))
	}
	if !caller.CanSee(invoice.CompanyID, invoice.CustomerID) {
		return nil, errorbank.NotFound("invoice not found")
	}

	from := invoice.Status
	allowed := from == entity.InvoiceStatusUnpaid || (to == entity.InvoiceStatusVoid && from == entity.InvoiceStatusPaid)
	if !allowed {
		return nil, errorbank.InvalidState(fmt.Sprintf("invoice is %s", from), errorbank.WithDetail("status", from))
	}

	now := s.now().UTC()
	ok, err := s.invoices.UpdateStatus(ctx, id, from, to, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, errorbank.Internal("failed to update invoice", errorbank.WithCause(err))
	}
	if !ok {
		return nil, errorbank.InvalidState("invoice status changed concurrently")
	}

	invoice.Status = to
	switch to {
	case entity.InvoiceStatusPaid:
		invoice.PaidAt = &now
	case entity.InvoiceStatusVoid:
		invoice.VoidedAt = &now
	}

	s.storeInCache(ctx, invoice)
	s.publish(ctx, event, invoice)
	s.logger.Info("invoice status changed",
		zap.Int64("invoice_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return invoice, nil
}

func (s *Service) load(ctx context.Context, id int64) (*entity.Invoice, error) {
	if invoice, err := s.getFromCache(ctx, id); err == nil {
		return invoice, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("invoices cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	invoice, err := s.invoices.GetByID(ctx, id)
	if errors.Is(err, invoicerepo.ErrNotFound) {
		return nil, errorbank.NotFound("invoice not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load invoice", errorbank.WithCause(err))
	}
	s.storeInCache(ctx, invoice)
	return invoice, nil
}

// InvoiceEvent is the payload of invoice lifecycle events.
type InvoiceEvent struct {
	InvoiceID int64  `json:"invoice_id"`
	Number    string `json:"number"`
	OrderID   int64  `json:"order_id"`
	Status    string `json:"status"`
	Total     string `json:"total"`
}

func (s *Service) publish(ctx context.Context, eventType string, invoice *entity.Invoice) {
	if !s.events || s.publisher == nil {
		return
	}
	payload := InvoiceEvent{
		InvoiceID: invoice.ID,
		Number:    invoice.Number,
		OrderID:   invoice.OrderID,
		Status:    string(invoice.Status),
		Total:     invoice.Total.StringFixed(2),
	}
	key := fmt.Sprintf("order-%d", invoice.OrderID)
	if err := messaging.PublishEvent(ctx, s.publisher, key, eventType, payload, s.now()); err != nil {
		s.logger.Error("publish invoice event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return cache.Key("invoices", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Invoice, error) {
	return cache.GetJSON[entity.Invoice](ctx, s.cache, s.cacheKey(id))
}

func (s *Service) storeInCache(ctx context.Context, invoice *entity.Invoice) {
	if invoice == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, s.cacheKey(invoice.ID), invoice, s.cacheTTL); err != nil {
		s.logger.Warn("invoices cache write failed", zap.Int64("id", invoice.ID), zap.Error(err))
	}
}
