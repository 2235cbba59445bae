package cart

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/entity"
	cartrepo "github.com/courierhq/dispatch/internal/repository/cart"
	"github.com/courierhq/dispatch/internal/service/shipment"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/courierhq/dispatch/service/cart")

// Store is the persistence surface the cart service needs.
type Store interface {
	ListByUser(ctx context.Context, userID int64) ([]*entity.CartItem, error)
	Add(ctx context.Context, item *entity.CartItem) error
	Remove(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
}

// Service manages the per-user cart of prospective shipments. Items are
// priced when they enter the cart, with the same quote a direct
// shipment would get.
type Service struct {
	store  Store
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store  Store
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{store: p.Store, logger: p.Logger}
}

// List returns the user's cart and its total, oldest item first.
func (s *Service) List(ctx context.Context, userID int64) ([]*entity.CartItem, int64, error) {
	ctx, span := serviceTracer.Start(ctx, "CartService.List", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	items, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, 0, errorbank.Internal("failed to list cart", errorbank.WithCause(err))
	}
	return items, Total(items), nil
}

// Add validates and prices one prospective shipment, then stores it as
// a cart item.
func (s *Service) Add(ctx context.Context, userID int64, in shipment.Input) (*entity.CartItem, error) {
	ctx, span := serviceTracer.Start(ctx, "CartService.Add", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	// Build runs the full shipment validation and quote; only the
	// priced fields survive into the cart row.
	built, err := shipment.Build(userID, in, entity.PaymentUnpaid)
	if err != nil {
		return nil, err
	}

	item := &entity.CartItem{
		UserID:            userID,
		Customer:          built.Customer,
		ServiceType:       built.ServiceType,
		RecipientName:     built.Package.RecipientName,
		RecipientAddress:  built.Package.RecipientAddress,
		RecipientPhone:    built.Package.RecipientPhone,
		OriginPostal:      built.OriginPostal,
		DestinationPostal: built.DestinationPostal,
		WeightKg:          built.Package.WeightKg,
		PriceCents:        built.PriceCents,
	}
	if err := s.store.Add(ctx, item); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to add cart item", errorbank.WithCause(err))
	}
	return item, nil
}

// Remove deletes one item from the caller's cart.
func (s *Service) Remove(ctx context.Context, userID, itemID int64) error {
	ctx, span := serviceTracer.Start(ctx, "CartService.Remove", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("cart.item_id", itemID),
	))
	defer span.End()

	err := s.store.Remove(ctx, userID, itemID)
	if errors.Is(err, cartrepo.ErrNotFound) {
		return errorbank.NotFound("cart item not found")
	}
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to remove cart item", errorbank.WithCause(err))
	}
	return nil
}

// Clear empties the caller's cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	ctx, span := serviceTracer.Start(ctx, "CartService.Clear", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if err := s.store.Clear(ctx, userID); err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to clear cart", errorbank.WithCause(err))
	}
	return nil
}

// Total sums the stored item prices in cents.
func Total(items []*entity.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.PriceCents
	}
	return total
}

// Inputs converts cart rows back into shipment inputs for checkout.
func Inputs(items []*entity.CartItem) []shipment.Input {
	inputs := make([]shipment.Input, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, shipment.Input{
			Customer:          item.Customer,
			ServiceType:       item.ServiceType,
			RecipientName:     item.RecipientName,
			RecipientAddress:  item.RecipientAddress,
			RecipientPhone:    item.RecipientPhone,
			OriginPostal:      item.OriginPostal,
			DestinationPostal: item.DestinationPostal,
			WeightKg:          item.WeightKg,
		})
	}
	return inputs
}
