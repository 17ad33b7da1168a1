package middleware

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "allure-impex-api"

// Tracing starts a server span per request on the global tracer provider.
// Without a configured provider the spans are no-ops.
func Tracing() echo.MiddlewareFunc {
	tracer := otel.Tracer(tracerName)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			ctx, span := tracer.Start(req.Context(), req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.route", route),
					attribute.String("http.target", req.URL.Path),
				),
			)
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			status := c.Response().Status
			span.SetAttributes(attribute.Int("http.status_code", status))
			if err == nil && status >= 500 {
				span.SetStatus(codes.Error, "server error")
			}
			if u, ok := CurrentUser(c); ok {
				span.SetAttributes(attribute.String("user.id", u.ID))
			}
			return err
		}
	}
}
