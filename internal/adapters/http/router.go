package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/eggtrail/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(TracingMiddleware())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 240 requests per minute per IP; field apps poll often
	app.Use(limiter.New(limiter.Config{
		Max:        240,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws" || c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout; fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	const reqTimeout = 15 * time.Second
	v1 := app.Group("/v1")
	v1.Get("/farms", timeout.NewWithContext(ListFarmsHandler(deps), reqTimeout))
	v1.Post("/farms", timeout.NewWithContext(UpsertFarmHandler(deps), reqTimeout))
	v1.Get("/farms/nearby", timeout.NewWithContext(NearbyFarmsHandler(deps), reqTimeout))
	v1.Get("/farms/reconcile", timeout.NewWithContext(ReconcileHandler(deps), reqTimeout))
	v1.Get("/farms/:id", timeout.NewWithContext(GetFarmHandler(deps), reqTimeout))
	v1.Get("/farms/:id/workers", timeout.NewWithContext(FarmWorkersHandler(deps), reqTimeout))
	v1.Get("/farmers", timeout.NewWithContext(ListFarmersHandler(deps), reqTimeout))
	v1.Post("/farmers", timeout.NewWithContext(UpsertFarmerHandler(deps), reqTimeout))
	v1.Get("/farmers/:id", timeout.NewWithContext(GetFarmerHandler(deps), reqTimeout))
	v1.Post("/routes/optimize", timeout.NewWithContext(OptimizeRouteHandler(deps), reqTimeout))
	v1.Post("/dispatches", timeout.NewWithContext(DispatchRouteHandler(deps), reqTimeout))
	v1.Post("/attendance", timeout.NewWithContext(CheckInHandler(deps), reqTimeout))
	v1.Get("/workers/:id/attendance", timeout.NewWithContext(WorkerAttendanceHandler(deps), reqTimeout))
	v1.Get("/workers/:id/location", timeout.NewWithContext(WorkerLocationHandler(deps), reqTimeout))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// Field sync socket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(SyncHandler(deps)))
}
