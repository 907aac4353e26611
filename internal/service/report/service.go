// Package report lists orders and invoices for exporters, scoped to what the caller may see.
package report

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/principal"
	"github.com/Additional-Code/tradehub/internal/report"
	invoicerepo "github.com/Additional-Code/tradehub/internal/repository/invoice"
	orderrepo "github.com/Additional-Code/tradehub/internal/repository/order"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tradehub/service/report")

// Service runs report queries.
type Service struct {
	orders   *orderrepo.Repository
	invoices *invoicerepo.Repository
	logger   *zap.Logger
	now      func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders   *orderrepo.Repository
	Invoices *invoicerepo.Repository
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{orders: p.Orders, invoices: p.Invoices, logger: p.Logger, now: time.Now}
}

// Orders lists orders matching the query parameters.
func (s *Service) Orders(ctx context.Context, caller principal.Principal, values url.Values) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "ReportService.Orders", trace.WithAttributes(attribute.String("principal.role", string(caller.Role))))
	defer span.End()

	spec, limit, err := s.parse(values, report.EntityOrders, caller)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.List(ctx, spec, s.now(), limit)
	if err != nil {
		return nil, s.listErr(err)
	}
	return orders, nil
}

// Invoices lists invoices matching the query parameters.
func (s *Service) Invoices(ctx context.Context, caller principal.Principal, values url.Values) ([]*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "ReportService.Invoices", trace.WithAttributes(attribute.String("principal.role", string(caller.Role))))
	defer span.End()

	spec, limit, err := s.parse(values, report.EntityInvoices, caller)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.List(ctx, spec, s.now(), limit)
	if err != nil {
		return nil, s.listErr(err)
	}
	return invoices, nil
}

func (s *Service) parse(values url.Values, e report.Entity, caller principal.Principal) (report.Spec, int, error) {
	limit := defaultLimit
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			return report.Spec{}, 0, errorbank.Validation("invalid report filter", errorbank.WithFields(map[string]string{
				"limit": "must be between 1 and " + strconv.Itoa(maxLimit),
			}))
		}
		limit = n
	}

	spec, err := report.Parse(values, e)
	if err != nil {
		return report.Spec{}, 0, err
	}
	return spec.ScopedTo(caller), limit, nil
}

func (s *Service) listErr(err error) error {
	if appErr := errorbank.From(err); appErr.Kind() != errorbank.KindInternal {
		return appErr
	}
	s.logger.Error("report query failed", zap.Error(err))
	return errorbank.Internal("failed to run report", errorbank.WithCause(err))
}
