package order

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	"github.com/Additional-Code/tradehub/internal/pricing"
	"github.com/Additional-Code/tradehub/internal/principal"
	invoicesvc "github.com/Additional-Code/tradehub/internal/service/invoice"
	service "github.com/Additional-Code/tradehub/internal/service/order"
	previewsvc "github.com/Additional-Code/tradehub/internal/service/preview"
	"github.com/Additional-Code/tradehub/internal/transport/http/middleware"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tradehub/transport/http/order")

type orders interface {
	Confirm(ctx context.Context, caller principal.Principal, cmd service.ConfirmCommand) (*entity.Order, error)
	Get(ctx context.Context, caller principal.Principal, id int64) (*entity.Order, error)
	Transition(ctx context.Context, caller principal.Principal, id int64, cmd service.TransitionCommand) (*entity.Order, error)
}

type previews interface {
	Preview(ctx context.Context, caller principal.Principal, cmd previewsvc.Command) (*previewsvc.Result, error)
}

type invoices interface {
	GetByOrder(ctx context.Context, caller principal.Principal, orderID int64) (*entity.Invoice, error)
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	orders   orders
	previews previews
	invoices invoices
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, previews *previewsvc.Service, invoices *invoicesvc.Service) *Handler {
	return &Handler{orders: svc, previews: previews, invoices: invoices}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders", middleware.Principal())
	g.POST("/preview", h.preview)
	g.POST("", h.confirm)
	g.GET("/:id", h.getByID)
	g.POST("/:id/status", h.transition)
	g.GET("/:id/invoice", h.invoice)
}

func (h *Handler) preview(c echo.Context) error {
	b := response.New(c)

	caller, err := middleware.Caller(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.PreviewRequest
	if err := middleware.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.preview", trace.WithAttributes(
		attribute.Int64("company.id", payload.CompanyID),
		attribute.Int("items", len(payload.Items)),
	))
	defer span.End()

	result, err := h.previews.Preview(ctx, caller, previewsvc.Command{
		CompanyID: payload.CompanyID,
		Notes:     payload.Notes,
		Items: lo.Map(payload.Items, func(item dto.PreviewItemInput, _ int) pricing.LineRequest {
			return pricing.LineRequest{ProductID: item.ProductID, Qty: item.Qty}
		}),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.PreviewResponse{
		PreviewToken: result.Token,
		ExpiresAt:    result.ExpiresAt,
		Currency:     result.Currency,
		Subtotal:     result.Subtotal.StringFixed(2),
		Discount:     result.Discount.StringFixed(2),
		Total:        result.Total.StringFixed(2),
		Items:        dto.PreviewLines(result.Items),
	}).Build()
}

func (h *Handler) confirm(c echo.Context) error {
	b := response.New(c)

	caller, err := middleware.Caller(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.ConfirmRequest
	if err := middleware.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.confirm")
	defer span.End()

	order, err := h.orders.Confirm(ctx, caller, service.ConfirmCommand{
		PreviewToken:      payload.PreviewToken,
		DeliveryAddressID: payload.DeliveryAddressID,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	caller, err := middleware.Caller(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := middleware.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.Get(ctx, caller, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) transition(c echo.Context) error {
	b := response.New(c)

	caller, err := middleware.Caller(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := middleware.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.StatusRequest
	if err := middleware.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	order, err := h.orders.Transition(ctx, caller, id, service.TransitionCommand{
		Status: payload.Status,
		Notes:  payload.Notes,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) invoice(c echo.Context) error {
	b := response.New(c)

	caller, err := middleware.Caller(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := middleware.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.invoice", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	invoice, err := h.invoices.GetByOrder(ctx, caller, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromInvoice(invoice)).Build()
}
