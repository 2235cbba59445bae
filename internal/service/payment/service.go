package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/entity"
	"github.com/courierhq/dispatch/internal/events"
	"github.com/courierhq/dispatch/internal/messaging"
	paymentrepo "github.com/courierhq/dispatch/internal/repository/payment"
	"github.com/courierhq/dispatch/internal/service/cart"
	"github.com/courierhq/dispatch/internal/service/shipment"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/courierhq/dispatch/service/payment")

// Store is the persistence surface the payment service needs.
type Store interface {
	CreateIntent(ctx context.Context, rec *entity.PaymentIntentRecord) error
	IntentByID(ctx context.Context, intentID string) (*entity.PaymentIntentRecord, error)
	ConsumeIntent(ctx context.Context, intentID string, shipments []*entity.Shipment, cartItemIDs []int64) (bool, error)
	MarkIntentFailed(ctx context.Context, intentID string) error
	CreateManual(ctx context.Context, mp *entity.ManualPayment) error
	ManualByReference(ctx context.Context, reference string) (*entity.ManualPayment, error)
	VerifyManual(ctx context.Context, reference string, shipments []*entity.Shipment) error
	ExpireManual(ctx context.Context, now time.Time) (int64, error)
}

// Carts reads and clears the cart rows a payment settles.
type Carts interface {
	ListByUser(ctx context.Context, userID int64) ([]*entity.CartItem, error)
	Clear(ctx context.Context, userID int64) error
}

// Announcer publishes shipment-created events after a settle.
type Announcer interface {
	PublishCreated(ctx context.Context, shipment *entity.Shipment)
}

// intentOrder is the cart snapshot embedded in an intent record at
// checkout. Settlement works exclusively from this snapshot, so cart
// edits after the charge can neither ship for free nor be lost.
type intentOrder struct {
	CartItemIDs []int64          `json:"cart_item_ids"`
	Items       []shipment.Input `json:"items"`
}

// Intent is what checkout hands back to the browser.
type Intent struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// Service owns checkout: Stripe intents, webhook settlement, and
// manual bank-transfer payments. Shipments are only ever created from
// a settled payment, inside the settling transaction.
type Service struct {
	store     Store
	carts     Carts
	gateway   Gateway
	announcer Announcer
	publisher messaging.Client
	logger    *zap.Logger

	currency  string
	manualTTL time.Duration
	messaging messagingConfig
}

type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store     Store
	Carts     Carts
	Gateway   Gateway
	Announcer Announcer
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		store:     p.Store,
		carts:     p.Carts,
		gateway:   p.Gateway,
		announcer: p.Announcer,
		publisher: p.Publisher,
		logger:    p.Logger,
		currency:  p.Config.Payments.Currency,
		manualTTL: p.Config.Payments.ManualPaymentTTL,
		messaging: messagingConfig{enabled: p.Config.Messaging.Enabled},
	}
}

// CreateIntent totals the caller's cart server-side and opens a Stripe
// PaymentIntent for that amount. Client-supplied amounts are never
// accepted.
func (s *Service) CreateIntent(ctx context.Context, userID int64) (*Intent, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.CreateIntent", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load cart", errorbank.WithCause(err))
	}
	if len(items) == 0 {
		return nil, errorbank.BadRequest("cart is empty")
	}
	amount := cart.Total(items)

	order := intentOrder{
		CartItemIDs: make([]int64, 0, len(items)),
		Items:       cart.Inputs(items),
	}
	for _, item := range items {
		order.CartItemIDs = append(order.CartItemIDs, item.ID)
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, errorbank.Internal("failed to snapshot order", errorbank.WithCause(err))
	}

	intentID, clientSecret, err := s.gateway.CreateIntent(ctx, amount, s.currency, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return nil, errorbank.Internal("failed to create payment intent", errorbank.WithCause(err))
	}

	rec := &entity.PaymentIntentRecord{
		IntentID:     intentID,
		UserID:       userID,
		AmountCents:  amount,
		Currency:     s.currency,
		Status:       entity.IntentPending,
		OrderPayload: payload,
	}
	if err := s.store.CreateIntent(ctx, rec); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to record payment intent", errorbank.WithCause(err))
	}

	return &Intent{
		IntentID:     intentID,
		ClientSecret: clientSecret,
		AmountCents:  amount,
		Currency:     s.currency,
	}, nil
}

// HandleIntentSucceeded settles a succeeded intent: the snapshot taken
// at checkout becomes shipments, the snapshotted cart rows are removed,
// and the intent is marked consumed, all in one transaction. Items the
// user added after paying stay in the cart; only what was charged is
// shipped. Redelivered events are no-ops.
func (s *Service) HandleIntentSucceeded(ctx context.Context, intentID string) error {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.HandleIntentSucceeded", trace.WithAttributes(attribute.String("payment.intent_id", intentID)))
	defer span.End()

	rec, err := s.store.IntentByID(ctx, intentID)
	if errors.Is(err, paymentrepo.ErrNotFound) {
		// Not one of ours; acknowledge so Stripe stops retrying.
		s.logger.Warn("webhook for unknown intent", zap.String("intent_id", intentID))
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to load payment intent", errorbank.WithCause(err))
	}
	if rec.Status != entity.IntentPending {
		return nil
	}

	var order intentOrder
	if len(rec.OrderPayload) > 0 {
		if err := json.Unmarshal(rec.OrderPayload, &order); err != nil {
			return errorbank.Internal("corrupt order snapshot", errorbank.WithCause(err))
		}
	}
	shipments, err := buildPaid(rec.UserID, order.Items)
	if err != nil {
		return err
	}
	if len(shipments) == 0 {
		s.logger.Warn("settling intent with empty snapshot", zap.String("intent_id", intentID), zap.Int64("user_id", rec.UserID))
	}
	if settled := shipmentTotal(shipments); len(shipments) > 0 && settled != rec.AmountCents {
		// Tariff drift between charge and delivery. Refuse so the
		// delivery is retried and operators see the mismatch.
		span.SetStatus(codes.Error, "amount mismatch")
		return errorbank.Internal("settlement total does not match charged amount",
			errorbank.WithDetail("charged_cents", rec.AmountCents),
			errorbank.WithDetail("settled_cents", settled),
		)
	}

	consumed, err := s.store.ConsumeIntent(ctx, intentID, shipments, order.CartItemIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "consume failed")
		return errorbank.Internal("failed to settle payment", errorbank.WithCause(err))
	}
	if !consumed {
		return nil
	}

	s.announce(ctx, shipments)
	s.publishConsumed(ctx, events.PaymentConsumed{
		IntentID:    intentID,
		UserID:      rec.UserID,
		AmountCents: rec.AmountCents,
		Shipments:   len(shipments),
	})
	return nil
}

// HandleIntentFailed flags a pending intent as failed. The cart is left
// intact so the user can retry.
func (s *Service) HandleIntentFailed(ctx context.Context, intentID string) error {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.HandleIntentFailed", trace.WithAttributes(attribute.String("payment.intent_id", intentID)))
	defer span.End()

	err := s.store.MarkIntentFailed(ctx, intentID)
	if errors.Is(err, paymentrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to mark intent failed", errorbank.WithCause(err))
	}
	return nil
}

// CreateManual snapshots the caller's cart into a bank-transfer payment
// with a reference number and an expiry window, then clears the cart.
func (s *Service) CreateManual(ctx context.Context, userID int64, method string) (*entity.ManualPayment, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.CreateManual", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load cart", errorbank.WithCause(err))
	}
	if len(items) == 0 {
		return nil, errorbank.BadRequest("cart is empty")
	}

	inputs := cart.Inputs(items)
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, errorbank.Internal("failed to snapshot order", errorbank.WithCause(err))
	}

	if method == "" {
		method = "bank_transfer"
	}

	mp := &entity.ManualPayment{
		Reference:    NewPaymentReference(),
		UserID:       userID,
		AmountCents:  cart.Total(items),
		Currency:     s.currency,
		Method:       method,
		Status:       entity.ManualPending,
		OrderPayload: payload,
		ExpiresAt:    time.Now().UTC().Add(s.manualTTL),
	}
	if err := s.store.CreateManual(ctx, mp); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to create manual payment", errorbank.WithCause(err))
	}

	// The order lives in the payload snapshot now.
	if err := s.carts.Clear(ctx, userID); err != nil {
		s.logger.Warn("failed to clear cart after manual payment", zap.Int64("user_id", userID), zap.Error(err))
	}
	return mp, nil
}

// ManualByReference returns a manual payment. Non-admin callers only
// see their own; anything else is reported as not found.
func (s *Service) ManualByReference(ctx context.Context, reference string, userID int64, admin bool) (*entity.ManualPayment, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.ManualByReference", trace.WithAttributes(attribute.String("payment.reference", reference)))
	defer span.End()

	mp, err := s.store.ManualByReference(ctx, reference)
	if errors.Is(err, paymentrepo.ErrNotFound) {
		return nil, errorbank.NotFound("payment reference not found")
	}
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load manual payment", errorbank.WithCause(err))
	}
	if !admin && mp.UserID != userID {
		return nil, errorbank.NotFound("payment reference not found")
	}
	return mp, nil
}

// VerifyManual settles a pending manual payment: its snapshot becomes
// shipments in the same transaction that marks it verified.
func (s *Service) VerifyManual(ctx context.Context, reference string) (*entity.ManualPayment, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.VerifyManual", trace.WithAttributes(attribute.String("payment.reference", reference)))
	defer span.End()

	mp, err := s.store.ManualByReference(ctx, reference)
	if errors.Is(err, paymentrepo.ErrNotFound) {
		return nil, errorbank.NotFound("payment reference not found")
	}
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load manual payment", errorbank.WithCause(err))
	}

	var inputs []shipment.Input
	if len(mp.OrderPayload) > 0 {
		if err := json.Unmarshal(mp.OrderPayload, &inputs); err != nil {
			return nil, errorbank.Internal("corrupt order snapshot", errorbank.WithCause(err))
		}
	}
	shipments, err := buildPaid(mp.UserID, inputs)
	if err != nil {
		return nil, err
	}

	if err := s.store.VerifyManual(ctx, reference, shipments); err != nil {
		switch {
		case errors.Is(err, paymentrepo.ErrNotFound):
			return nil, errorbank.NotFound("payment reference not found")
		case errors.Is(err, paymentrepo.ErrAlreadySettled):
			return nil, errorbank.Conflict("payment already settled")
		case errors.Is(err, paymentrepo.ErrExpired):
			return nil, errorbank.Unprocessable("payment reference expired")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "verify failed")
			return nil, errorbank.Internal("failed to verify payment", errorbank.WithCause(err))
		}
	}

	s.announce(ctx, shipments)
	s.publishConsumed(ctx, events.PaymentConsumed{
		Reference:   reference,
		UserID:      mp.UserID,
		AmountCents: mp.AmountCents,
		Shipments:   len(shipments),
	})

	mp.Status = entity.ManualVerified
	mp.VerifiedAt = time.Now().UTC()
	return mp, nil
}

// ExpireManual sweeps pending manual payments past their deadline.
func (s *Service) ExpireManual(ctx context.Context) (int64, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.ExpireManual")
	defer span.End()

	count, err := s.store.ExpireManual(ctx, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		return 0, errorbank.Internal("failed to expire manual payments", errorbank.WithCause(err))
	}
	return count, nil
}

// buildPaid converts inputs into paid shipment trees ready for the
// settling transaction.
func buildPaid(userID int64, inputs []shipment.Input) ([]*entity.Shipment, error) {
	shipments := make([]*entity.Shipment, 0, len(inputs))
	for i, in := range inputs {
		built, err := shipment.Build(userID, in, entity.PaymentPaid)
		if err != nil {
			return nil, errorbank.Internal(
				fmt.Sprintf("stored order entry %d no longer builds: %s", i, errorbank.From(err).Message()),
				errorbank.WithCause(err),
			)
		}
		shipments = append(shipments, built)
	}
	return shipments, nil
}

func shipmentTotal(shipments []*entity.Shipment) int64 {
	var total int64
	for _, sh := range shipments {
		total += sh.PriceCents
	}
	return total
}

func (s *Service) announce(ctx context.Context, shipments []*entity.Shipment) {
	if s.announcer == nil {
		return
	}
	for _, sh := range shipments {
		s.announcer.PublishCreated(ctx, sh)
	}
}

func (s *Service) publishConsumed(ctx context.Context, event events.PaymentConsumed) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := events.Wrap(events.TypePaymentConsumed, event)
	if err != nil {
		s.logger.Error("marshal payment consumed", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("payment-%d", event.UserID))
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Error("publish payment consumed", zap.Error(err))
	}
}
