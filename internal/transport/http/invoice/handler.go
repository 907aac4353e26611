package invoice

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	"github.com/Additional-Code/tradehub/internal/principal"
	service "github.com/Additional-Code/tradehub/internal/service/invoice"
	"github.com/Additional-Code/tradehub/internal/transport/http/middleware"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tradehub/transport/http/invoice")

type invoices interface {
	Get(ctx context.Context, caller principal.Principal, id int64) (*entity.Invoice, error)
	Void(ctx context.Context, caller principal.Principal, id int64) (*entity.Invoice, error)
	MarkPaid(ctx context.Context, caller principal.Principal, id int64) (*entity.Invoice, error)
}

// Handler exposes invoice endpoints over HTTP.
type Handler struct {
	svc invoices
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/invoices", middleware.Principal())
	g.GET("/:id", h.action("invoices.get", h.svc.Get))
	g.POST("/:id/void", h.action("invoices.void", h.svc.Void))
	g.POST("/:id/pay", h.action("invoices.pay", h.svc.MarkPaid))
}

type operation func(ctx context.Context, caller principal.Principal, id int64) (*entity.Invoice, error)

func (h *Handler) action(name string, op operation) echo.HandlerFunc {
	return func(c echo.Context) error {
		b := response.New(c)

		caller, err := middleware.Caller(c)
		if err != nil {
			return b.WithError(err).Build()
		}
		id, err := middleware.ParamID(c, "id")
		if err != nil {
			return b.WithError(err).Build()
		}

		ctx, span := httpTracer.Start(c.Request().Context(), name, trace.WithAttributes(attribute.Int64("invoice.id", id)))
		defer span.End()

		invoice, err := op(ctx, caller, id)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.FromInvoice(invoice)).Build()
	}
}
