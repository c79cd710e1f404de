package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const loggerKey ctxKey = "logger"

// RequestIDLogMiddleware stores a request-scoped *slog.Logger in the user
// context, carrying the request ID and, when tracing is on, the trace ID.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		log := slog.Default()

		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			log = log.With("request_id", rid)
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			log = log.With("trace_id", sc.TraceID().String())
		}

		c.SetUserContext(context.WithValue(ctx, loggerKey, log))
		return c.Next()
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
