package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/allureimpex/allure-impex-api/internal/middleware"
	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// MessageHandler serves the contact form and the admin inbox.
type MessageHandler struct {
	messages *service.MessageService
	timeout  timeout
}

func NewMessageHandler(s *service.MessageService, d time.Duration) *MessageHandler {
	return &MessageHandler{messages: s, timeout: timeout(d)}
}

// Create accepts a submission from anyone; signed-in callers are linked.
func (h *MessageHandler) Create(c echo.Context) error {
	var in service.CreateMessageInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	m, err := h.messages.Create(ctx, middleware.Identity(c), in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "Message sent successfully", m)
}

func (h *MessageHandler) List(c echo.Context) error {
	p, err := listParams(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	l, err := h.messages.List(ctx, middleware.Identity(c), service.MessageQuery{
		Status:     strings.TrimSpace(c.QueryParam("status")),
		ListParams: p,
	})
	if err != nil {
		return err
	}
	return list(c, l)
}

func (h *MessageHandler) Get(c echo.Context) error {
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	m, err := h.messages.Get(ctx, middleware.Identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", m)
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	return h.transition(c, "Message marked as read", h.messages.MarkRead)
}

func (h *MessageHandler) Close(c echo.Context) error {
	return h.transition(c, "Message closed", h.messages.Close)
}

func (h *MessageHandler) Reply(c echo.Context) error {
	var in service.ReplyInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	m, err := h.messages.Reply(ctx, middleware.Identity(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Reply sent successfully", m)
}

func (h *MessageHandler) Delete(c echo.Context) error {
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	if err := h.messages.Delete(ctx, middleware.Identity(c), c.Param("id")); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Message deleted successfully", nil)
}

type transitionFunc func(ctx context.Context, actor model.Identity, id string) (model.Message, error)

func (h *MessageHandler) transition(c echo.Context, msg string, fn transitionFunc) error {
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	m, err := fn(ctx, middleware.Identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, msg, m)
}
