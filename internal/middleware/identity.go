package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/allureimpex/allure-impex-api/internal/model"
)

const ctxUser = "user"

// SetUser attaches the authenticated user to the request.
func SetUser(c echo.Context, u model.User) {
	c.Set(ctxUser, u)
}

// CurrentUser returns the user attached by Authenticate.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUser).(model.User)
	return u, ok
}

// Identity is the actor of the request; anonymous when no user is attached.
func Identity(c echo.Context) model.Identity {
	u, ok := CurrentUser(c)
	if !ok {
		return model.Identity{}
	}
	return u.Identity()
}

// userID is the actor id used in log lines and rate limit keys.
func userID(c echo.Context) string {
	if u, ok := CurrentUser(c); ok && u.ID != "" {
		return u.ID
	}
	return "anon"
}
