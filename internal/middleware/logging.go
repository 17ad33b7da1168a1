package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	RecordRequest(method, route string, status int, d time.Duration)
}

// RequestLogger logs one line per request and reports it to rec when set.
// Handler errors are rendered here so the logged status is final.
func RequestLogger(log zerolog.Logger, rec RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			d := time.Since(start)
			res := c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			if rec != nil {
				rec.RecordRequest(c.Request().Method, route, res.Status, d)
			}

			ev := log.Info()
			switch {
			case res.Status >= 500:
				ev = log.Error().Err(err)
			case res.Status >= 400:
				ev = log.Warn()
			}
			ev.Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Str("route", route).
				Int("status", res.Status).
				Int64("duration_ms", d.Milliseconds()).
				Str("user_id", userID(c)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")
			return nil
		}
	}
}
