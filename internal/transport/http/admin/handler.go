package admin

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierhq/dispatch/internal/dto"
	"github.com/courierhq/dispatch/internal/entity"
	"github.com/courierhq/dispatch/internal/presentation/http/response"
	service "github.com/courierhq/dispatch/internal/service/user"
	"github.com/courierhq/dispatch/internal/transport/http/middleware"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/courierhq/dispatch/transport/http/admin")

// Handler exposes back-office account endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an admin Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, auth *middleware.Auth) {
	g := e.Group("/api/admin", auth.RequireAdmin())
	g.GET("/users", h.listUsers)
	g.PATCH("/users/:id", h.updateUser)
	g.PATCH("/users/:id/role", h.setRole)
}

func (h *Handler) listUsers(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.listUsers")
	defer span.End()

	users, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTOs(users)).WithMeta("count", len(users)).Build()
}

func (h *Handler) updateUser(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload service.UpdateInput
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.updateUser", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u, err := h.svc.Update(ctx, id, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewUserResponse(u)).Build()
}

func (h *Handler) setRole(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.setRole", trace.WithAttributes(
		attribute.Int64("user.id", id),
		attribute.String("user.role", payload.Role),
	))
	defer span.End()

	u, err := h.svc.SetRole(ctx, id, payload.Role)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewUserResponse(u)).Build()
}

func toDTOs(users []*entity.User) []dto.UserResponse {
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	return out
}
