// Package preview prices a customer's cart against a seller's catalog and issues a short-lived,
// signed quote token that order confirmation later redeems.
package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/numbering"
	"github.com/Additional-Code/tradehub/internal/observability"
	"github.com/Additional-Code/tradehub/internal/pricing"
	"github.com/Additional-Code/tradehub/internal/principal"
	catalogrepo "github.com/Additional-Code/tradehub/internal/repository/catalog"
	previewrepo "github.com/Additional-Code/tradehub/internal/repository/preview"
	"github.com/Additional-Code/tradehub/internal/sanitize"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

const tokenAttempts = 3

var serviceTracer = otel.Tracer("github.com/Additional-Code/tradehub/service/preview")

// Command is a customer's cart for one seller.
type Command struct {
	CompanyID int64
	Notes     string
	Items     []pricing.LineRequest
}

// Result is the priced cart and the token that redeems it.
type Result struct {
	Token     string
	ExpiresAt time.Time
	Currency  string
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	Items     []entity.PreviewLine
}

// Service issues preview quotes.
type Service struct {
	catalog  *catalogrepo.Repository
	previews *previewrepo.Repository
	signer   *pricing.Signer
	ttl      time.Duration
	currency string
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Catalog  *catalogrepo.Repository
	Previews *previewrepo.Repository
	Config   config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics `optional:"true"`
	Clock    func() time.Time       `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalog:  p.Catalog,
		previews: p.Previews,
		signer:   pricing.NewSigner(p.Config.Pricing.TokenSecret),
		ttl:      p.Config.Pricing.PreviewTTL,
		currency: p.Config.Pricing.Currency,
		metrics:  p.Metrics,
		logger:   p.Logger,
		now:      now,
	}
}

// Preview prices cmd for the calling customer and stores a signed quote behind a new token.
func (s *Service) Preview(ctx context.Context, caller principal.Principal, cmd Command) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "PreviewService.Preview", trace.WithAttributes(
		attribute.Int64("company.id", cmd.CompanyID),
		attribute.Int("items", len(cmd.Items)),
	))
	defer span.End()

	if !caller.Is(principal.RoleCustomer) {
		return nil, errorbank.Forbidden("only customers can request a preview")
	}
	if fields := pricing.ValidateRequest(cmd.CompanyID, cmd.Notes, cmd.Items); fields != nil {
		return nil, errorbank.Validation("invalid preview request", errorbank.WithFields(fields))
	}

	if err := s.checkSeller(ctx, cmd.CompanyID); err != nil {
		return nil, err
	}

	productIDs := lo.Map(cmd.Items, func(l pricing.LineRequest, _ int) int64 { return l.ProductID })
	products, offers, err := s.catalog.PricingInputs(ctx, cmd.CompanyID, productIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog error")
		return nil, errorbank.Internal("failed to load catalog", errorbank.WithCause(err))
	}
	if err := pricing.CheckProducts(cmd.CompanyID, cmd.Items, products); err != nil {
		return nil, ProductErr(err)
	}

	now := s.now().UTC()
	quote := pricing.Calculate(cmd.Items, products, offers, now)
	if fields := pricing.CheckAmounts(quote); fields != nil {
		return nil, errorbank.Validation("preview amount out of range", errorbank.WithFields(fields))
	}

	record := &entity.PreviewQuote{
		CustomerID: caller.UserID,
		CompanyID:  cmd.CompanyID,
		Notes:      sanitize.PlainText(cmd.Notes),
		Lines:      quote.Lines,
		Subtotal:   quote.Subtotal,
		Discount:   quote.Discount,
		Total:      quote.Total,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.store(ctx, record, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, err
	}

	s.metrics.PreviewCreated(ctx)
	s.logger.Info("preview issued",
		zap.String("token", record.Token),
		zap.Int64("customer_id", caller.UserID),
		zap.Int64("company_id", cmd.CompanyID),
		zap.String("total", quote.Total.StringFixed(2)),
	)

	return &Result{
		Token:     record.Token,
		ExpiresAt: record.ExpiresAt,
		Currency:  s.currency,
		Subtotal:  quote.Subtotal,
		Discount:  quote.Discount,
		Total:     quote.Total,
		Items:     quote.Lines,
	}, nil
}

// PurgeExpired removes unconsumed quotes that expired before now.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.previews.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, errorbank.Internal("failed to purge previews", errorbank.WithCause(err))
	}
	s.logger.Info("expired previews purged", zap.Int64("count", n))
	return n, nil
}

func (s *Service) checkSeller(ctx context.Context, companyID int64) error {
	seller, err := s.catalog.GetUser(ctx, companyID)
	if errors.Is(err, catalogrepo.ErrUserNotFound) {
		return errorbank.NotFound("company not found")
	}
	if err != nil {
		return errorbank.Internal("failed to load company", errorbank.WithCause(err))
	}
	if seller.Role != entity.RoleCompany || !seller.Active {
		return errorbank.NotFound("company not found")
	}
	return nil
}

// store assigns a token, signs the quote and inserts it, drawing a new token on collision.
func (s *Service) store(ctx context.Context, record *entity.PreviewQuote, now time.Time) error {
	for attempt := 1; attempt <= tokenAttempts; attempt++ {
		token, err := numbering.PreviewToken(now)
		if err != nil {
			return errorbank.Internal("failed to generate token", errorbank.WithCause(err))
		}
		record.ID = 0
		record.Token = token
		record.Signature = s.signer.Sign(record)

		err = s.previews.Create(ctx, record)
		if err == nil {
			return nil
		}
		if !database.IsUniqueViolation(err) {
			return errorbank.Internal("failed to store preview", errorbank.WithCause(err))
		}
		s.logger.Warn("preview token collision", zap.String("token", token), zap.Int("attempt", attempt))
	}
	return errorbank.Internal(fmt.Sprintf("no unique preview token after %d attempts", tokenAttempts))
}

// ProductErr translates a pricing product error into an application error.
func ProductErr(err error) error {
	var perr *pricing.ProductError
	if !errors.As(err, &perr) {
		return errorbank.From(err)
	}
	details := errorbank.WithDetail("product_id", perr.ProductID)
	if perr.Problem == pricing.ProductMissing {
		return errorbank.NotFound(perr.Error(), details)
	}
	return errorbank.BusinessRule(perr.Error(), details)
}
