package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// RequireCapability aborts with 403 unless the authenticated actor holds
// the capability. It must run after Authenticate.
func RequireCapability(cap model.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := Identity(c)
			if id.Anonymous() {
				return service.Unauthorized("Not authorized, no token")
			}
			if !model.Can(id, cap) {
				return service.Forbidden("Access denied. Admin only.")
			}
			return next(c)
		}
	}
}

// RequireAdmin aborts with 403 unless the actor has the admin role.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := Identity(c)
			if id.Anonymous() {
				return service.Unauthorized("Not authorized, no token")
			}
			if !id.IsAdmin() {
				return service.Forbidden("Access denied. Admin only.")
			}
			return next(c)
		}
	}
}
