package http

import (
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/eggtrail/internal/pkg/telemetry"
)

// TracingMiddleware opens a server span per request and puts it in the user
// context so services and repositories can add child spans.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, span := telemetry.Tracer().Start(c.UserContext(), c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
			),
		)
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(c.Method() + " " + route.Path)
		}
		if err != nil || status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
		return err
	}
}
