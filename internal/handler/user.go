package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/allureimpex/allure-impex-api/internal/middleware"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// UserHandler serves /api/users.
type UserHandler struct {
	users   *service.UserService
	timeout timeout
}

func NewUserHandler(s *service.UserService, d time.Duration) *UserHandler {
	return &UserHandler{users: s, timeout: timeout(d)}
}

func (h *UserHandler) List(c echo.Context) error {
	p, err := listParams(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	l, err := h.users.List(ctx, middleware.Identity(c), p)
	if err != nil {
		return err
	}
	return list(c, l)
}

func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	u, err := h.users.Get(ctx, middleware.Identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", u)
}

func (h *UserHandler) Update(c echo.Context) error {
	var in service.UpdateUserInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	u, err := h.users.Update(ctx, middleware.Identity(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "User updated successfully", u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	if err := h.users.Delete(ctx, middleware.Identity(c), c.Param("id")); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "User deleted successfully", nil)
}

// CreateAdmin is the bootstrap endpoint. It is only routed when bootstrap
// is enabled in the configuration.
func (h *UserHandler) CreateAdmin(c echo.Context) error {
	var in service.CreateAdminInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	u, err := h.users.CreateAdmin(ctx, in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "Admin user created successfully", u)
}
