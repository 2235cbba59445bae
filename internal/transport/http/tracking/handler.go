package tracking

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierhq/dispatch/internal/dto"
	"github.com/courierhq/dispatch/internal/entity"
	"github.com/courierhq/dispatch/internal/presentation/http/response"
	service "github.com/courierhq/dispatch/internal/service/tracking"
	"github.com/courierhq/dispatch/internal/transport/http/middleware"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/courierhq/dispatch/transport/http/tracking")

// Handler exposes package tracking endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a tracking Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. Lookup is public;
// status changes are an admin operation.
func Register(e *echo.Echo, h *Handler, auth *middleware.Auth) {
	g := e.Group("/api")
	g.GET("/track/:trackingNumber", h.track)
	g.PATCH("/packages/:id/status", h.updateStatus, auth.RequireAdmin())
}

func (h *Handler) track(c echo.Context) error {
	b := response.New(c)
	trackingNumber := c.Param("trackingNumber")

	ctx, span := httpTracer.Start(c.Request().Context(), "tracking.track", trace.WithAttributes(attribute.String("package.tracking_number", trackingNumber)))
	defer span.End()

	pkg, err := h.svc.Track(ctx, trackingNumber)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewPackageResponse(pkg)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		Status      string `json:"status"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tracking.updateStatus", trace.WithAttributes(
		attribute.Int64("package.id", id),
		attribute.String("status.to", payload.Status),
	))
	defer span.End()

	pkg, err := h.svc.UpdateStatus(ctx, id, entity.PackageStatus(payload.Status), payload.Location, payload.Description)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewPackageResponse(pkg)).Build()
}
