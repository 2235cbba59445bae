package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/entity"
	domainevents "github.com/courierhq/dispatch/internal/events"
	"github.com/courierhq/dispatch/internal/mailer"
	"github.com/courierhq/dispatch/internal/messaging"
	userrepo "github.com/courierhq/dispatch/internal/repository/user"
	"github.com/courierhq/dispatch/internal/worker"
)

// UserStore resolves event subjects to accounts.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// Handler consumes domain events from the bus: confirmation mail for
// created shipments and an audit line for settled payments.
type Handler struct {
	users  UserStore
	mail   mailer.Mailer
	logger *zap.Logger
}

// NewHandler constructs the events Handler.
func NewHandler(users UserStore, mail mailer.Mailer, logger *zap.Logger) *Handler {
	return &Handler{users: users, mail: mail, logger: logger}
}

// Handle dispatches one bus message by envelope type.
func (h *Handler) Handle(ctx context.Context, msg messaging.Message) error {
	var envelope domainevents.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		// Poison message; log and commit rather than redeliver forever.
		h.logger.Error("undecodable event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	switch envelope.Type {
	case domainevents.TypeShipmentCreated:
		return h.handleShipmentCreated(ctx, envelope.Payload)
	case domainevents.TypePaymentConsumed:
		return h.handlePaymentConsumed(envelope.Payload)
	default:
		h.logger.Debug("ignoring event", zap.String("type", envelope.Type))
		return nil
	}
}

func (h *Handler) handleShipmentCreated(ctx context.Context, payload json.RawMessage) error {
	var event domainevents.ShipmentCreated
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("undecodable shipment.created payload", zap.Error(err))
		return nil
	}

	user, err := h.users.GetByID(ctx, event.UserID)
	if errors.Is(err, userrepo.ErrNotFound) {
		h.logger.Warn("shipment.created for unknown user", zap.Int64("user_id", event.UserID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", event.UserID, err)
	}

	if err := h.mail.SendShipmentConfirmation(ctx, user.Email, event.ShipmentNumber, event.TrackingNumber); err != nil {
		return fmt.Errorf("send confirmation for %s: %w", event.ShipmentNumber, err)
	}
	return nil
}

func (h *Handler) handlePaymentConsumed(payload json.RawMessage) error {
	var event domainevents.PaymentConsumed
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("undecodable payment.consumed payload", zap.Error(err))
		return nil
	}

	h.logger.Info("payment settled",
		zap.String("intent_id", event.IntentID),
		zap.String("reference", event.Reference),
		zap.Int64("user_id", event.UserID),
		zap.Int64("amount_cents", event.AmountCents),
		zap.Int("shipments", event.Shipments),
	)
	return nil
}

// Module registers the events handler with the worker engine.
var Module = fx.Options(
	fx.Provide(func(r *userrepo.Repository) UserStore { return r }),
	fx.Provide(NewHandler),
	fx.Provide(fx.Annotate(
		func(cfg config.Config, h *Handler) worker.HandlerRegistration {
			return worker.HandlerRegistration{
				Topic:   cfg.Messaging.Kafka.Topic,
				Handler: h.Handle,
			}
		},
		fx.ResultTags(`group:"worker.handlers"`),
	)),
)
