package admin

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"

	"github.com/courierhq/dispatch/internal/transport/http/middleware"
)

// Module wires HTTP admin handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler, auth *middleware.Auth) {
		Register(e, h, auth)
	}),
)
