package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// Authenticator resolves a bearer token to the live user record.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.User, error)
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is missing or uses another scheme.
func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Authenticate rejects requests without a valid bearer token for an active
// user. The user is loaded from the store on every request so role changes
// and deactivation take effect immediately.
func Authenticate(a Authenticator, timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := resolve(c, a, timeout, bearerToken(c))
			if err != nil {
				return err
			}
			SetUser(c, u)
			return next(c)
		}
	}
}

// OptionalAuthenticate attaches the user when a valid token is sent and
// lets every other request through as anonymous.
func OptionalAuthenticate(a Authenticator, timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := bearerToken(c)
			if tok == "" {
				return next(c)
			}
			u, err := resolve(c, a, timeout, tok)
			switch {
			case err == nil:
				SetUser(c, u)
			case !errors.Is(err, service.ErrUnauthorized):
				return err
			}
			return next(c)
		}
	}
}

func resolve(c echo.Context, a Authenticator, timeout time.Duration, tok string) (model.User, error) {
	ctx := c.Request().Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return a.Authenticate(ctx, tok)
}
