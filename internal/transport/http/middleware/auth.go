package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/courierhq/dispatch/internal/entity"
	"github.com/courierhq/dispatch/internal/presentation/http/response"
	authservice "github.com/courierhq/dispatch/internal/service/auth"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

const userContextKey = "dispatch.user"

// Auth guards routes behind bearer-token authentication.
type Auth struct {
	svc *authservice.Service
}

// NewAuth constructs the auth middleware.
func NewAuth(svc *authservice.Service) *Auth {
	return &Auth{svc: svc}
}

// RequireUser rejects requests without a valid bearer token and loads
// the authenticated user into the request context.
func (a *Auth) RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return response.New(c).WithError(err).Build()
			}

			claims, err := a.svc.ParseToken(token)
			if err != nil {
				return response.New(c).WithError(err).Build()
			}

			user, err := a.svc.UserFromClaims(c.Request().Context(), claims)
			if err != nil {
				return response.New(c).WithError(err).Build()
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// RequireAdmin additionally rejects non-admin accounts.
func (a *Auth) RequireAdmin() echo.MiddlewareFunc {
	requireUser := a.RequireUser()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return requireUser(func(c echo.Context) error {
			if !CurrentUser(c).IsAdmin() {
				return response.New(c).WithError(errorbank.Forbidden("admin access required")).Build()
			}
			return next(c)
		})
	}
}

// CurrentUser returns the authenticated user, or nil outside guarded
// routes.
func CurrentUser(c echo.Context) *entity.User {
	user, _ := c.Get(userContextKey).(*entity.User)
	return user
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", errorbank.Unauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errorbank.Unauthorized("malformed authorization header")
	}
	return parts[1], nil
}
