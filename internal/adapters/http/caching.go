package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets default Cache-Control headers on GET responses
// unless the handler already chose one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics", strings.HasPrefix(path, "/v1/workers/"):
			ttl = "no-cache" // live field data

		case strings.HasPrefix(path, "/v1/farms/reconcile"):
			ttl = "private, max-age=0" // per-position answers

		case strings.HasPrefix(path, "/v1/farms"), strings.HasPrefix(path, "/v1/farmers"):
			ttl = "public, max-age=300" // directory changes rarely

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
