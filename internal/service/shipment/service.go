package shipment

import (
	"context"
	"fmt"
	"strings"

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
	"github.com/courierhq/dispatch/internal/pricing"
	shipmentrepo "github.com/courierhq/dispatch/internal/repository/shipment"
	"github.com/courierhq/dispatch/internal/validate"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/courierhq/dispatch/service/shipment")

// createAttempts bounds retries when a generated number collides.
const createAttempts = 3

// Store is the persistence surface the shipment service needs.
type Store interface {
	CreateBatch(ctx context.Context, shipments []*entity.Shipment) error
	ListByUser(ctx context.Context, userID int64) ([]*entity.Shipment, error)
}

// Input describes one shipment to create. Prices are always computed
// server-side; callers cannot supply one.
type Input struct {
	Customer          string  `json:"customer"`
	ServiceType       string  `json:"service_type" validate:"required"`
	RecipientName     string  `json:"recipient_name" validate:"required"`
	RecipientAddress  string  `json:"recipient_address" validate:"required"`
	RecipientPhone    string  `json:"recipient_phone"`
	OriginPostal      string  `json:"origin_postal" validate:"required"`
	DestinationPostal string  `json:"destination_postal" validate:"required"`
	WeightKg          float64 `json:"weight_kg" validate:"required,gt=0"`
}

// Service encapsulates shipment creation and listing.
type Service struct {
	store     Store
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store     Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		store:     p.Store,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Build validates one input and constructs the unsaved shipment tree
// with generated numbers and a server-side price.
func Build(userID int64, in Input, paymentStatus entity.PaymentStatus) (*entity.Shipment, error) {
	origin, ok := validate.Postal(in.OriginPostal)
	if !ok {
		return nil, errorbank.BadRequest("invalid origin postal code", errorbank.WithDetail("origin_postal", in.OriginPostal))
	}
	destination, ok := validate.Postal(in.DestinationPostal)
	if !ok {
		return nil, errorbank.BadRequest("invalid destination postal code", errorbank.WithDetail("destination_postal", in.DestinationPostal))
	}

	if strings.TrimSpace(in.RecipientName) == "" || strings.TrimSpace(in.RecipientAddress) == "" {
		return nil, errorbank.BadRequest("recipient name and address are required")
	}

	phone := ""
	if in.RecipientPhone != "" {
		normalized, ok := validate.Phone(in.RecipientPhone, "CA")
		if !ok {
			return nil, errorbank.BadRequest("invalid recipient phone", errorbank.WithDetail("recipient_phone", in.RecipientPhone))
		}
		phone = normalized
	}

	customer := strings.ToLower(strings.TrimSpace(in.Customer))
	if customer == "" {
		customer = "default"
	}

	price, err := pricing.Quote(customer, in.ServiceType, origin, destination, in.WeightKg)
	if err != nil {
		return nil, errorbank.BadRequest(err.Error())
	}

	s := &entity.Shipment{
		ShipmentNumber:    NewShipmentNumber(),
		UserID:            userID,
		Customer:          customer,
		ServiceType:       strings.ToLower(in.ServiceType),
		ServiceLabel:      pricing.ServiceLabel(in.ServiceType),
		Status:            entity.StatusPending,
		PaymentStatus:     paymentStatus,
		OriginPostal:      origin,
		DestinationPostal: destination,
		PriceCents:        price,
		Package: &entity.Package{
			TrackingNumber:   NewTrackingNumber(),
			Status:           entity.StatusPending,
			CurrentLocation:  origin,
			RecipientName:    strings.TrimSpace(in.RecipientName),
			RecipientAddress: strings.TrimSpace(in.RecipientAddress),
			RecipientPhone:   phone,
			WeightKg:         in.WeightKg,
		},
	}
	return s, nil
}

// Create prices and persists a single shipment.
func (s *Service) Create(ctx context.Context, userID int64, in Input) (*entity.Shipment, error) {
	ctx, span := serviceTracer.Start(ctx, "ShipmentService.Create", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	shipment, err := Build(userID, in, entity.PaymentUnpaid)
	if err != nil {
		return nil, err
	}

	if err := s.persistBatch(ctx, []*entity.Shipment{shipment}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, err
	}

	s.publishCreated(ctx, shipment)
	return shipment, nil
}

// CreateBulk prices and persists a batch atomically. Any invalid entry
// fails the whole request before anything is written.
func (s *Service) CreateBulk(ctx context.Context, userID int64, inputs []Input) ([]*entity.Shipment, error) {
	ctx, span := serviceTracer.Start(ctx, "ShipmentService.CreateBulk", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int("batch.size", len(inputs)),
	))
	defer span.End()

	if len(inputs) == 0 {
		return nil, errorbank.BadRequest("at least one shipment is required")
	}

	shipments := make([]*entity.Shipment, 0, len(inputs))
	for i, in := range inputs {
		shipment, err := Build(userID, in, entity.PaymentUnpaid)
		if err != nil {
			return nil, errorbank.BadRequest(
				fmt.Sprintf("entry %d: %s", i, errorbank.From(err).Message()),
				errorbank.WithDetail("index", i),
			)
		}
		shipments = append(shipments, shipment)
	}

	if err := s.persistBatch(ctx, shipments); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, err
	}

	for _, shipment := range shipments {
		s.publishCreated(ctx, shipment)
	}
	return shipments, nil
}

// ListByUser returns the caller's shipments.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*entity.Shipment, error) {
	ctx, span := serviceTracer.Start(ctx, "ShipmentService.ListByUser", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	shipments, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list shipments", errorbank.WithCause(err))
	}
	return shipments, nil
}

// persistBatch writes the batch, regenerating numbers when a generated
// one collides with an existing row.
func (s *Service) persistBatch(ctx context.Context, shipments []*entity.Shipment) error {
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		err = s.store.CreateBatch(ctx, shipments)
		if err == nil {
			return nil
		}
		if !shipmentrepo.IsUniqueViolation(err) {
			return errorbank.Internal("failed to create shipments", errorbank.WithCause(err))
		}
		for _, shipment := range shipments {
			shipment.ID = 0
			shipment.ShipmentNumber = NewShipmentNumber()
			if shipment.Package != nil {
				shipment.Package.ID = 0
				shipment.Package.TrackingNumber = NewTrackingNumber()
			}
		}
	}
	return errorbank.Internal("failed to create shipments", errorbank.WithCause(err))
}

// PublishCreated emits the created event for a persisted shipment.
// Exported so the payment service can announce checkout shipments.
func (s *Service) PublishCreated(ctx context.Context, shipment *entity.Shipment) {
	s.publishCreated(ctx, shipment)
}

func (s *Service) publishCreated(ctx context.Context, shipment *entity.Shipment) {
	if !s.messaging.enabled || s.publisher == nil || shipment == nil || shipment.Package == nil {
		return
	}
	payload, err := events.Wrap(events.TypeShipmentCreated, events.ShipmentCreated{
		ShipmentID:     shipment.ID,
		ShipmentNumber: shipment.ShipmentNumber,
		TrackingNumber: shipment.Package.TrackingNumber,
		UserID:         shipment.UserID,
		ServiceType:    shipment.ServiceType,
		PriceCents:     shipment.PriceCents,
	})
	if err != nil {
		s.logger.Error("marshal shipment created", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("shipment-%d", shipment.ID))
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Error("publish shipment created", zap.Error(err))
	}
}
