package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler serves the banner and the health probe.
type HealthHandler struct {
	ping    func(ctx context.Context) error
	version string
}

// NewHealthHandler takes the store ping; nil reports the store as down.
func NewHealthHandler(ping func(ctx context.Context) error, version string) *HealthHandler {
	return &HealthHandler{ping: ping, version: version}
}

// Banner lists the resource roots.
func (h *HealthHandler) Banner(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Allure Impex API is running!",
		"version": h.version,
		"endpoints": echo.Map{
			"auth":     "/api/auth",
			"products": "/api/products",
			"users":    "/api/users",
			"uploads":  "/api/uploads",
			"messages": "/api/messages",
		},
	})
}

// Health answers 200 even when the store is down; the database field
// carries the result.
func (h *HealthHandler) Health(c echo.Context) error {
	db := "Disconnected"
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err == nil {
			db = "Connected"
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  db,
	})
}
