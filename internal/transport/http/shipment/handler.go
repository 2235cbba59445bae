package shipment

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierhq/dispatch/internal/dto"
	"github.com/courierhq/dispatch/internal/entity"
	"github.com/courierhq/dispatch/internal/presentation/http/response"
	service "github.com/courierhq/dispatch/internal/service/shipment"
	"github.com/courierhq/dispatch/internal/transport/http/middleware"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/courierhq/dispatch/transport/http/shipment")

// Handler exposes shipment endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a shipment Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, auth *middleware.Auth) {
	g := e.Group("/api")
	g.POST("/estimate", h.estimate)

	guarded := g.Group("", auth.RequireUser())
	guarded.POST("/ship", h.ship)
	guarded.POST("/ship/bulk", h.shipBulk)
	guarded.GET("/shipments", h.list)
}

// estimate quotes a shipment without creating anything. It is public
// so the price can be shown before signup.
func (h *Handler) estimate(c echo.Context) error {
	b := response.New(c)

	var payload service.Input
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	_, span := httpTracer.Start(c.Request().Context(), "shipments.estimate", trace.WithAttributes(attribute.String("shipment.service_type", payload.ServiceType)))
	defer span.End()

	built, err := service.Build(0, payload, entity.PaymentUnpaid)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{
		"price_cents":   built.PriceCents,
		"service_type":  built.ServiceType,
		"service_label": built.ServiceLabel,
	}).Build()
}

func (h *Handler) ship(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	var payload service.Input
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "shipments.create", trace.WithAttributes(attribute.Int64("user.id", user.ID)))
	defer span.End()

	created, err := h.svc.Create(ctx, user.ID, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewShipmentResponse(created)).Build()
}

func (h *Handler) shipBulk(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	var payload struct {
		Shipments []service.Input `json:"shipments"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "shipments.createBulk", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.Int("batch.size", len(payload.Shipments)),
	))
	defer span.End()

	created, err := h.svc.CreateBulk(ctx, user.ID, payload.Shipments)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).
		WithData(dto.NewShipmentResponses(created)).
		WithMeta("count", len(created)).
		Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "shipments.list", trace.WithAttributes(attribute.Int64("user.id", user.ID)))
	defer span.End()

	shipments, err := h.svc.ListByUser(ctx, user.ID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewShipmentResponses(shipments)).WithMeta("count", len(shipments)).Build()
}
