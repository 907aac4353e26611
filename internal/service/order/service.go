package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
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
	"github.com/Additional-Code/tradehub/internal/pricing"
	"github.com/Additional-Code/tradehub/internal/principal"
	catalogrepo "github.com/Additional-Code/tradehub/internal/repository/catalog"
	repo "github.com/Additional-Code/tradehub/internal/repository/order"
	previewrepo "github.com/Additional-Code/tradehub/internal/repository/preview"
	"github.com/Additional-Code/tradehub/internal/sanitize"
	invoicesvc "github.com/Additional-Code/tradehub/internal/service/invoice"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

const numberAttempts = 3

var serviceTracer = otel.Tracer("github.com/Additional-Code/tradehub/service/order")

var errTokenConsumed = errors.New("preview already consumed")

// InvoiceIssuer creates the invoice of an approved order.
type InvoiceIssuer interface {
	IssueForOrder(ctx context.Context, orderID int64) (*entity.Invoice, bool, error)
}

// Service encapsulates business logic around orders.
type Service struct {
	conns     *database.Connections
	repo      *repo.Repository
	catalog   *catalogrepo.Repository
	previews  *previewrepo.Repository
	invoices  InvoiceIssuer
	signer    *pricing.Signer
	tolerance decimal.Decimal
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	events    bool
	metrics   *observability.Metrics
	now       func() time.Time
	number    func(time.Time) (string, error)

	// issueOnApproval invoices an order in the same call that approves it.
	issueOnApproval bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Repository  *repo.Repository
	Catalog     *catalogrepo.Repository
	Previews    *previewrepo.Repository
	Invoices    *invoicesvc.Service
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
	Publisher   messaging.Client
	Metrics     *observability.Metrics `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	s := &Service{
		conns:     p.Connections,
		repo:      p.Repository,
		catalog:   p.Catalog,
		previews:  p.Previews,
		signer:    pricing.NewSigner(p.Config.Pricing.TokenSecret),
		tolerance: p.Config.Pricing.StaleTolerance,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		events:    p.Config.Messaging.Enabled,
		metrics:   p.Metrics,
		now:       time.Now,
		number:    numbering.OrderNumber,

		issueOnApproval: p.Config.Invoice.IssueOnApproval,
	}
	if p.Invoices != nil {
		s.invoices = p.Invoices
	}
	return s
}

// ConfirmCommand redeems a preview token into an order.
type ConfirmCommand struct {
	PreviewToken      string
	DeliveryAddressID int64
}

// Confirm turns a still-valid preview into a pending order. The quote is re-priced against the
// current catalog first; the order, its items and the token consumption commit together.
func (s *Service) Confirm(ctx context.Context, caller principal.Principal, cmd ConfirmCommand) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Confirm", trace.WithAttributes(attribute.String("preview.token", cmd.PreviewToken)))
	defer span.End()

	order, err := s.confirm(ctx, caller, cmd)
	if err != nil {
		appErr := errorbank.From(err)
		s.metrics.ConfirmRejected(ctx, string(appErr.Kind()))
		if appErr.Kind() == errorbank.KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, "confirm failed")
		}
		return nil, appErr
	}

	s.metrics.OrderConfirmed(ctx)
	s.logger.Info("order confirmed",
		zap.Int64("order_id", order.ID),
		zap.String("number", order.Number),
		zap.Int64("customer_id", order.CustomerID),
		zap.Int64("company_id", order.CompanyID),
	)
	s.storeInCache(ctx, order)
	s.publish(ctx, messaging.EventOrderConfirmed, order, "")
	return order, nil
}

func (s *Service) confirm(ctx context.Context, caller principal.Principal, cmd ConfirmCommand) (*entity.Order, error) {
	if !caller.Is(principal.RoleCustomer) {
		return nil, errorbank.Forbidden("only customers can confirm orders")
	}
	token := strings.TrimSpace(cmd.PreviewToken)
	fields := map[string]string{}
	if !numbering.ValidPreviewToken(token) {
		fields["preview_token"] = "malformed token"
	}
	if cmd.DeliveryAddressID <= 0 {
		fields["delivery_address_id"] = "must be a positive id"
	}
	if len(fields) > 0 {
		return nil, errorbank.Validation("invalid confirmation request", errorbank.WithFields(fields))
	}

	quote, err := s.previews.GetByToken(ctx, token)
	if errors.Is(err, previewrepo.ErrNotFound) {
		return nil, errorbank.NotFound("preview not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load preview", errorbank.WithCause(err))
	}
	if quote.CustomerID != caller.UserID {
		return nil, errorbank.NotFound("preview not found")
	}
	if !s.signer.Verify(quote) {
		return nil, errorbank.Validation("preview signature mismatch")
	}

	now := s.now().UTC()
	if quote.Consumed() {
		return nil, errorbank.TokenAlreadyUsed("preview token already used")
	}
	if quote.Expired(now) {
		return nil, errorbank.TokenExpired("preview token expired", errorbank.WithDetail("expired_at", quote.ExpiresAt))
	}

	address, err := s.catalog.GetAddress(ctx, cmd.DeliveryAddressID)
	if err != nil && !errors.Is(err, catalogrepo.ErrAddressNotFound) {
		return nil, errorbank.Internal("failed to load address", errorbank.WithCause(err))
	}
	if address == nil || address.CustomerID != caller.UserID || !address.Active {
		return nil, errorbank.NotFound("delivery address not found")
	}

	if err := s.verifyQuote(ctx, quote, now); err != nil {
		return nil, err
	}

	return s.persist(ctx, quote, address.ID, now)
}

// verifyQuote re-prices the stored lines and rejects the quote when anything moved.
func (s *Service) verifyQuote(ctx context.Context, quote *entity.PreviewQuote, now time.Time) error {
	requests := pricing.Requests(quote.Lines)
	ids := lo.Map(requests, func(r pricing.LineRequest, _ int) int64 { return r.ProductID })

	products, offers, err := s.catalog.PricingInputs(ctx, quote.CompanyID, ids)
	if err != nil {
		return errorbank.Internal("failed to load catalog", errorbank.WithCause(err))
	}
	if err := pricing.CheckProducts(quote.CompanyID, requests, products); err != nil {
		return errorbank.StaleQuote("quote is no longer valid: "+err.Error(), errorbank.WithCause(err))
	}

	current := pricing.Calculate(requests, products, offers, now)
	if drifts := pricing.Compare(quote.Lines, quote.Total, current, s.tolerance); len(drifts) > 0 {
		return errorbank.StaleQuote("prices or offers changed since the preview", errorbank.WithDetail("changes", drifts))
	}
	return nil
}

func (s *Service) persist(ctx context.Context, quote *entity.PreviewQuote, addressID int64, now time.Time) (*entity.Order, error) {
	for attempt := 1; attempt <= numberAttempts; attempt++ {
		number, err := s.number(now)
		if err != nil {
			return nil, errorbank.Internal("failed to generate order number", errorbank.WithCause(err))
		}
		order := fromQuote(quote, number, addressID, now)

		err = s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			consumed, err := s.previews.WithTx(tx).Consume(ctx, quote.ID, order.ID, now)
			if err != nil {
				return err
			}
			if !consumed {
				return errTokenConsumed
			}
			return nil
		})
		switch {
		case err == nil:
			return order, nil
		case errors.Is(err, errTokenConsumed):
			return nil, errorbank.TokenAlreadyUsed("preview token already used")
		case !database.IsUniqueViolation(err):
			return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
		}

		// orders.preview_token is unique: a concurrent confirmation of the same token lands here
		current, findErr := s.previews.GetByToken(ctx, quote.Token)
		if findErr == nil && current.Consumed() {
			return nil, errorbank.TokenAlreadyUsed("preview token already used")
		}
		s.logger.Warn("order number collision", zap.String("number", number), zap.Int("attempt", attempt))
	}
	return nil, errorbank.BusinessRule("duplicate order number")
}

func fromQuote(quote *entity.PreviewQuote, number string, addressID int64, now time.Time) *entity.Order {
	order := &entity.Order{
		Number:            number,
		PreviewToken:      quote.Token,
		CompanyID:         quote.CompanyID,
		CustomerID:        quote.CustomerID,
		DeliveryAddressID: addressID,
		Status:            entity.OrderStatusPending,
		Subtotal:          quote.Subtotal,
		Discount:          quote.Discount,
		Total:             quote.Total,
		NotesCustomer:     quote.Notes,
		SubmittedAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, line := range quote.Lines {
		item := &entity.OrderItem{
			ProductID:       line.ProductID,
			ProductName:     line.ProductName,
			Qty:             line.Qty,
			UnitPrice:       line.UnitPrice,
			Discount:        line.Discount,
			LineTotal:       line.LineTotal,
			SelectedOfferID: line.OfferID,
		}
		for _, bonus := range line.Bonuses {
			item.Bonuses = append(item.Bonuses, &entity.OrderItemBonus{
				BonusProductID:   bonus.ProductID,
				BonusProductName: bonus.ProductName,
				BonusQty:         bonus.Qty,
			})
		}
		order.Items = append(order.Items, item)
	}
	return order
}

// Get retrieves an order visible to caller, consulting cache when available.
func (s *Service) Get(ctx context.Context, caller principal.Principal, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.getFromCache(ctx, id)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
		}

		order, err = s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, errorbank.NotFound("order not found")
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		s.storeInCache(ctx, order)
	}

	if !caller.CanSee(order.CompanyID, order.CustomerID) {
		return nil, errorbank.NotFound("order not found")
	}
	return order, nil
}

// TransitionCommand moves an order to Status, optionally replacing the seller notes.
type TransitionCommand struct {
	Status string
	Notes  *string
}

// Transition advances an order along its lifecycle. Only the selling company or an administrator
// may do so. Approval issues the invoice when configured to.
func (s *Service) Transition(ctx context.Context, caller principal.Principal, id int64, cmd TransitionCommand) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.to", cmd.Status),
	))
	defer span.End()

	if !caller.IsAdmin() && !caller.Is(principal.RoleCompany) {
		return nil, errorbank.Forbidden("only sellers can change order status")
	}
	target, err := entity.ToOrderStatus(strings.ToLower(strings.TrimSpace(cmd.Status)))
	if err != nil {
		return nil, errorbank.Validation("invalid status", errorbank.WithFields(map[string]string{"status": "unknown status"}))
	}

	order, err := s.repo.GetFromWriter(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if !caller.CanSee(order.CompanyID, order.CustomerID) {
		return nil, errorbank.NotFound("order not found")
	}

	from := order.Status
	if !from.CanTransitionTo(target) {
		return nil, errorbank.InvalidState(
			fmt.Sprintf("cannot move order from %s to %s", from, target),
			errorbank.WithDetail("from", from),
			errorbank.WithDetail("to", target),
		)
	}

	now := s.now().UTC()
	order.Status = target
	order.UpdatedAt = now
	switch target {
	case entity.OrderStatusApproved:
		order.ApprovedAt = &now
	case entity.OrderStatusDelivered:
		order.DeliveredAt = &now
	case entity.OrderStatusCancelled:
		order.CancelledAt = &now
	}
	if cmd.Notes != nil {
		order.NotesCompany = sanitize.PlainText(*cmd.Notes)
	}

	ok, err := s.repo.UpdateStatus(ctx, order, from)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}
	if !ok {
		return nil, errorbank.InvalidState("order status changed concurrently")
	}

	s.metrics.OrderTransitioned(ctx, string(target))
	s.logger.Info("order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)
	s.storeInCache(ctx, order)
	s.publish(ctx, messaging.EventOrderStatusChanged, order, from)

	if target == entity.OrderStatusApproved && s.issueOnApproval && s.invoices != nil {
		// the worker retries from the status event, so a failure here is not fatal
		if _, _, err := s.invoices.IssueForOrder(ctx, order.ID); err != nil {
			s.logger.Warn("invoice issuance on approval failed", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	return order, nil
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order, previous entity.OrderStatus) {
	if !s.events || s.publisher == nil {
		return
	}
	event := OrderEvent{
		ID:             order.ID,
		Number:         order.Number,
		CompanyID:      order.CompanyID,
		CustomerID:     order.CustomerID,
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		Total:          order.Total.StringFixed(2),
	}
	if err := messaging.PublishEvent(ctx, s.publisher, fmt.Sprintf("order-%d", order.ID), eventType, event, s.now()); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return cache.Key("orders", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	return cache.GetJSON[entity.Order](ctx, s.cache, s.cacheKey(id))
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if order == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, s.cacheKey(order.ID), order, s.cacheTTL); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

// OrderEvent is the payload of order lifecycle events.
type OrderEvent struct {
	ID             int64  `json:"id"`
	Number         string `json:"number"`
	CompanyID      int64  `json:"company_id"`
	CustomerID     int64  `json:"customer_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Total          string `json:"total"`
}
