// Package handler adapts HTTP requests onto the services and renders the
// {success, ...} envelope shared by every endpoint.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// envelope is the body of every API response.
type envelope struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message,omitempty"`
	Token      string               `json:"token,omitempty"`
	ExpiresAt  *time.Time           `json:"expiresAt,omitempty"`
	User       *model.User          `json:"user,omitempty"`
	Count      *int                 `json:"count,omitempty"`
	Total      *int64               `json:"total,omitempty"`
	Page       *int                 `json:"page,omitempty"`
	TotalPages *int                 `json:"totalPages,omitempty"`
	Data       any                  `json:"data,omitempty"`
	Errors     []service.FieldError `json:"errors,omitempty"`
	Stack      string               `json:"stack,omitempty"`
}

func ok(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func list[T any](c echo.Context, l service.List[T]) error {
	items := l.Items
	if items == nil {
		items = []T{}
	}
	n := len(items)
	env := envelope{Success: true, Count: &n, Data: items}
	if l.Paginated() {
		env.Total, env.Page, env.TotalPages = &l.Total, &l.Page, &l.TotalPages
	}
	return c.JSON(http.StatusOK, env)
}

func session(c echo.Context, status int, message string, s service.Session) error {
	return c.JSON(status, envelope{
		Success:   true,
		Message:   message,
		Token:     s.Token,
		ExpiresAt: &s.ExpiresAt,
		User:      &s.User,
	})
}

// ErrorHandler renders every error as a failure envelope. Stacks are only
// attached to 5xx responses when withStack is set.
func ErrorHandler(log zerolog.Logger, withStack bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, env := failure(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
			if withStack {
				env.Stack = err.Error()
			}
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, env)
		}
		if werr != nil {
			log.Warn().Err(werr).Msg("write error response")
		}
	}
}

func failure(err error) (int, envelope) {
	var se *service.Error
	if errors.As(err, &se) {
		return se.Kind.Status(), envelope{Message: se.Message, Errors: se.Fields}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch he.Code {
		case http.StatusNotFound:
			msg = "Route not found"
		case http.StatusRequestEntityTooLarge:
			msg = "File too large"
		default:
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			}
		}
		return he.Code, envelope{Message: msg}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusInternalServerError, envelope{Message: "Request timed out"}
	}
	return http.StatusInternalServerError, envelope{Message: "Server error"}
}

// bind decodes the JSON body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return service.BadRequest("Invalid request body")
	}
	return nil
}

// listParams reads page, limit, sortBy and sortOrder.
func listParams(c echo.Context) (service.ListParams, error) {
	var p service.ListParams
	var fields []service.FieldError
	for _, q := range []struct {
		name string
		dst  *int
	}{{"page", &p.Page}, {"limit", &p.Limit}} {
		raw := strings.TrimSpace(c.QueryParam(q.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields = append(fields, service.FieldError{Field: q.name, Message: q.name + " must be a positive integer"})
			continue
		}
		*q.dst = n
	}
	p.SortBy = strings.TrimSpace(c.QueryParam("sortBy"))
	switch strings.ToLower(strings.TrimSpace(c.QueryParam("sortOrder"))) {
	case "", "desc":
	case "asc":
		p.SortAsc = true
	default:
		fields = append(fields, service.FieldError{Field: "sortOrder", Message: "sortOrder must be asc or desc"})
	}
	if len(fields) > 0 {
		return p, service.Validation(fields...)
	}
	return p, nil
}

// boolParam is nil when the parameter is absent and true only for "true".
func boolParam(c echo.Context, name string) *bool {
	if !c.QueryParams().Has(name) {
		return nil
	}
	b := c.QueryParam(name) == "true"
	return &b
}

// timeout bounds the store work of one request.
type timeout time.Duration

func (t timeout) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	d := time.Duration(t)
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}
