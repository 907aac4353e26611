package report

import (
	"context"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	"github.com/Additional-Code/tradehub/internal/principal"
	service "github.com/Additional-Code/tradehub/internal/service/report"
	"github.com/Additional-Code/tradehub/internal/transport/http/middleware"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tradehub/transport/http/report")

type reports interface {
	Orders(ctx context.Context, caller principal.Principal, values url.Values) ([]*entity.Order, error)
	Invoices(ctx context.Context, caller principal.Principal, values url.Values) ([]*entity.Invoice, error)
}

// Handler exposes filtered listings. Query parameters are parsed by the report service.
type Handler struct {
	svc reports
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/reports", middleware.Principal())
	g.GET("/orders", h.orders)
	g.GET("/invoices", h.invoices)
}

func (h *Handler) orders(c echo.Context) error {
	b := response.New(c)

	caller, err := middleware.Caller(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "reports.orders")
	defer span.End()

	orders, err := h.svc.Orders(ctx, caller, c.QueryParams())
	if err != nil {
		return b.WithError(err).Build()
	}
	span.SetAttributes(attribute.Int("report.rows", len(orders)))

	return b.WithData(lo.Map(orders, func(o *entity.Order, _ int) dto.OrderResponse { return dto.FromOrder(o) })).
		WithMeta("count", len(orders)).
		Build()
}

func (h *Handler) invoices(c echo.Context) error {
	b := response.New(c)

	caller, err := middleware.Caller(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "reports.invoices")
	defer span.End()

	invoices, err := h.svc.Invoices(ctx, caller, c.QueryParams())
	if err != nil {
		return b.WithError(err).Build()
	}
	span.SetAttributes(attribute.Int("report.rows", len(invoices)))

	return b.WithData(lo.Map(invoices, func(i *entity.Invoice, _ int) dto.InvoiceResponse { return dto.FromInvoice(i) })).
		WithMeta("count", len(invoices)).
		Build()
}
