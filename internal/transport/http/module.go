package http

import (
	"go.uber.org/fx"

	admintransport "github.com/courierhq/dispatch/internal/transport/http/admin"
	authtransport "github.com/courierhq/dispatch/internal/transport/http/auth"
	carttransport "github.com/courierhq/dispatch/internal/transport/http/cart"
	"github.com/courierhq/dispatch/internal/transport/http/middleware"
	paymenttransport "github.com/courierhq/dispatch/internal/transport/http/payment"
	shipmenttransport "github.com/courierhq/dispatch/internal/transport/http/shipment"
	trackingtransport "github.com/courierhq/dispatch/internal/transport/http/tracking"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	fx.Provide(middleware.NewAuth),
	authtransport.Module,
	shipmenttransport.Module,
	carttransport.Module,
	paymenttransport.Module,
	trackingtransport.Module,
	admintransport.Module,
)
