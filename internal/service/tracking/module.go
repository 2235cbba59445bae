package tracking

import (
	"go.uber.org/fx"

	shipmentrepo "github.com/courierhq/dispatch/internal/repository/shipment"
)

// Module provides the tracking service to Fx.
var Module = fx.Options(
	fx.Provide(func(r *shipmentrepo.Repository) Store { return r }),
	fx.Provide(NewService),
)
