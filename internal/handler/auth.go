package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/allureimpex/allure-impex-api/internal/middleware"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// AuthHandler serves /api/auth.
type AuthHandler struct {
	auth    *service.AuthService
	timeout timeout
}

func NewAuthHandler(s *service.AuthService, d time.Duration) *AuthHandler {
	return &AuthHandler{auth: s, timeout: timeout(d)}
}

// Register: create a customer account and return a session.
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	s, err := h.auth.Register(ctx, in)
	if err != nil {
		return err
	}
	return session(c, http.StatusCreated, "User registered successfully", s)
}

// Login: verify credentials and return a session.
func (h *AuthHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	s, err := h.auth.Login(ctx, in)
	if err != nil {
		return err
	}
	return session(c, http.StatusOK, "Login successful", s)
}

// Me: the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	u, err := h.auth.Me(ctx, middleware.Identity(c))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", u)
}
