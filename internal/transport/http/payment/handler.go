package payment

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/dto"
	"github.com/courierhq/dispatch/internal/presentation/http/response"
	service "github.com/courierhq/dispatch/internal/service/payment"
	"github.com/courierhq/dispatch/internal/transport/http/middleware"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/courierhq/dispatch/transport/http/payment")

// Handler exposes checkout and payment endpoints over HTTP.
type Handler struct {
	svc           *service.Service
	logger        *zap.Logger
	webhookSecret string
}

// NewHandler constructs a payment Handler.
func NewHandler(svc *service.Service, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		svc:           svc,
		logger:        logger,
		webhookSecret: cfg.Stripe.WebhookSecret,
	}
}

// Register routes with the provided Echo instance. The webhook endpoint
// is unauthenticated; Stripe signs the payload instead.
func Register(e *echo.Echo, h *Handler, auth *middleware.Auth) {
	g := e.Group("/api")
	g.POST("/stripe/webhook", h.stripeWebhook)

	guarded := g.Group("", auth.RequireUser())
	guarded.POST("/create-payment-intent", h.createIntent)
	guarded.POST("/manual-payment", h.createManual)
	guarded.GET("/manual-payment/:reference", h.manualByReference)

	admin := g.Group("/admin", auth.RequireAdmin())
	admin.POST("/manual-payment/:reference/verify", h.verifyManual)
}

func (h *Handler) createIntent(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.createIntent", trace.WithAttributes(attribute.Int64("user.id", user.ID)))
	defer span.End()

	intent, err := h.svc.CreateIntent(ctx, user.ID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(intent).Build()
}

// stripeWebhook verifies the Stripe signature and settles or fails the
// referenced intent. Anything we have already processed returns 200 so
// Stripe stops redelivering.
func (h *Handler) stripeWebhook(c echo.Context) error {
	b := response.New(c)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return b.WithError(errorbank.BadRequest("unreadable payload", errorbank.WithCause(err))).Build()
	}

	event, err := webhook.ConstructEvent(body, c.Request().Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid webhook signature", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.stripeWebhook", trace.WithAttributes(attribute.String("stripe.event_type", string(event.Type))))
	defer span.End()

	var intent stripe.PaymentIntent
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return b.WithError(errorbank.BadRequest("malformed event payload", errorbank.WithCause(err))).Build()
		}
	default:
		// Unhandled event types are acknowledged, not errored.
		return b.WithData(map[string]any{"received": true}).Build()
	}

	if event.Type == "payment_intent.succeeded" {
		err = h.svc.HandleIntentSucceeded(ctx, intent.ID)
	} else {
		err = h.svc.HandleIntentFailed(ctx, intent.ID)
	}
	if err != nil {
		h.logger.Error("webhook handling failed", zap.String("intent_id", intent.ID), zap.Error(err))
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"received": true}).Build()
}

func (h *Handler) createManual(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)

	var payload struct {
		Method string `json:"method"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.createManual", trace.WithAttributes(attribute.Int64("user.id", user.ID)))
	defer span.End()

	mp, err := h.svc.CreateManual(ctx, user.ID, payload.Method)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewManualPaymentResponse(mp)).Build()
}

func (h *Handler) manualByReference(c echo.Context) error {
	b := response.New(c)
	user := middleware.CurrentUser(c)
	reference := c.Param("reference")

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.manualByReference", trace.WithAttributes(attribute.String("payment.reference", reference)))
	defer span.End()

	mp, err := h.svc.ManualByReference(ctx, reference, user.ID, user.IsAdmin())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewManualPaymentResponse(mp)).Build()
}

func (h *Handler) verifyManual(c echo.Context) error {
	b := response.New(c)
	reference := c.Param("reference")

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.verifyManual", trace.WithAttributes(attribute.String("payment.reference", reference)))
	defer span.End()

	mp, err := h.svc.VerifyManual(ctx, reference)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewManualPaymentResponse(mp)).Build()
}
