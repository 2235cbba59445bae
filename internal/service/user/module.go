package user

import (
	"go.uber.org/fx"

	userrepo "github.com/courierhq/dispatch/internal/repository/user"
)

// Module provides the user service to Fx.
var Module = fx.Options(
	fx.Provide(func(r *userrepo.Repository) Store { return r }),
	fx.Provide(NewService),
)
