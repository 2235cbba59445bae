package payment

import (
	"go.uber.org/fx"

	cartrepo "github.com/courierhq/dispatch/internal/repository/cart"
	paymentrepo "github.com/courierhq/dispatch/internal/repository/payment"
	"github.com/courierhq/dispatch/internal/service/shipment"
)

// Module provides the payment service to Fx.
var Module = fx.Options(
	fx.Provide(func(r *paymentrepo.Repository) Store { return r }),
	fx.Provide(func(r *cartrepo.Repository) Carts { return r }),
	fx.Provide(func(s *shipment.Service) Announcer { return s }),
	fx.Provide(NewStripeGateway),
	fx.Provide(NewService),
)
