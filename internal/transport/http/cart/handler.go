package cart

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierhq/dispatch/internal/dto"
	"github.com/courierhq/dispatch/internal/entity"
	"github.com/courierhq/dispatch/internal/presentation/http/response"
	service "github.com/courierhq/dispatch/internal/service/cart"
	shipmentservice "github.com/courierhq/dispatch/internal/service/shipment"
	"github.com/courierhq/dispatch/internal/transport/http/middleware"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/courierhq/dispatch/transport/http/cart")

// Handler exposes cart endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a cart Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. All cart routes are
// authenticated.
func Register(e *echo.Echo, h *Handler, auth *middleware.Auth) {
	g := e.Group("/api/cart", auth.RequireUser())
	g.GET("", h.list)
	g.POST("", h.add)
	g.DELETE("/:id", h.remove)
	g.DELETE("", h.clear)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "cart.list", trace.WithAttributes(attribute.Int64("user.id", user.ID)))
	defer span.End()

	items, total, err := h.svc.List(ctx, user.ID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTOs(items)).
		WithMeta("count", len(items)).
		WithMeta("total_cents", total).
		Build()
}

func (h *Handler) add(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	var payload shipmentservice.Input
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "cart.add", trace.WithAttributes(attribute.Int64("user.id", user.ID)))
	defer span.End()

	item, err := h.svc.Add(ctx, user.ID, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewCartItemResponse(item)).Build()
}

func (h *Handler) remove(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "cart.remove", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.Int64("cart.item_id", id),
	))
	defer span.End()

	if err := h.svc.Remove(ctx, user.ID, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"removed": true}).Build()
}

func (h *Handler) clear(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "cart.clear", trace.WithAttributes(attribute.Int64("user.id", user.ID)))
	defer span.End()

	if err := h.svc.Clear(ctx, user.ID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"cleared": true}).Build()
}

func toDTOs(items []*entity.CartItem) []dto.CartItemResponse {
	out := make([]dto.CartItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.NewCartItemResponse(item))
	}
	return out
}
