package cart

import (
	"go.uber.org/fx"

	cartrepo "github.com/courierhq/dispatch/internal/repository/cart"
)

// Module provides the cart service to Fx.
var Module = fx.Options(
	fx.Provide(func(r *cartrepo.Repository) Store { return r }),
	fx.Provide(NewService),
)
