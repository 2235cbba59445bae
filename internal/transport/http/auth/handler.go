package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierhq/dispatch/internal/dto"
	"github.com/courierhq/dispatch/internal/presentation/http/response"
	service "github.com/courierhq/dispatch/internal/service/auth"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/courierhq/dispatch/transport/http/auth")

// Handler exposes registration and login endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an auth Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/api")
	g.POST("/register", h.register)
	g.POST("/verify-email", h.verifyEmail)
	g.POST("/login", h.login)
}

func (h *Handler) register(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		Phone      string `json:"phone"`
		Country    string `json:"country"`
		Province   string `json:"province"`
		PostalCode string `json:"postal_code"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.register", trace.WithAttributes(attribute.String("user.username", payload.Username)))
	defer span.End()

	result, err := h.svc.Register(ctx, service.RegisterInput{
		Username:   payload.Username,
		Email:      payload.Email,
		Password:   payload.Password,
		Phone:      payload.Phone,
		Country:    payload.Country,
		Province:   payload.Province,
		PostalCode: payload.PostalCode,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	b = b.WithStatus(http.StatusCreated).WithData(dto.NewUserResponse(result.User))
	if result.DevCode != "" {
		// Development bypass: no SMTP host configured.
		b = b.WithMeta("verification_code", result.DevCode)
	}
	return b.Build()
}

func (h *Handler) verifyEmail(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.verifyEmail")
	defer span.End()

	if err := h.svc.VerifyEmail(ctx, payload.Email, payload.Code); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"verified": true}).Build()
}

func (h *Handler) login(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.login", trace.WithAttributes(attribute.String("user.username", payload.Username)))
	defer span.End()

	result, err := h.svc.Login(ctx, payload.Username, payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"user":       dto.NewUserResponse(result.User),
	}).Build()
}
