package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/eggtrail/internal/adapters/http"
	natsadapter "github.com/samirrijal/eggtrail/internal/adapters/nats"
	"github.com/samirrijal/eggtrail/internal/adapters/postgres"
	"github.com/samirrijal/eggtrail/internal/adapters/valkey"
	"github.com/samirrijal/eggtrail/internal/core/ports"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
	"github.com/samirrijal/eggtrail/internal/pkg/config"
	"github.com/samirrijal/eggtrail/internal/pkg/logging"
	"github.com/samirrijal/eggtrail/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("eggtrail-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache (optional)
	var cacheSvc ports.CacheService
	var cachePing http.Pinger
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc, cachePing = cache, cache
	}

	// NATS (optional; sync relay and dispatch need it)
	var (
		publisher ports.EventPublisher
		dispatch  ports.DispatchQueue
		broker    http.FarmBroker
	)
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		publisher, dispatch = nc, nc
		broker = natsadapter.NewRelay(nc.Conn())
	}

	// Geo engine
	tiers := make([]usecases.ConfidenceTier, len(cfg.Routing.ConfidenceTiers))
	for i, t := range cfg.Routing.ConfidenceTiers {
		tiers[i] = usecases.ConfidenceTier{MaxKm: t.MaxKm, Score: t.Score}
	}
	optimizer := usecases.NewRouteOptimizer(cfg.Routing.AverageSpeedKmh)
	reconciler := usecases.NewFarmReconciler(tiers, cfg.Routing.FallbackConfidence)

	// Use cases
	farmSvc := usecases.NewFarmService(postgres.NewFarmRepo(db), cacheSvc, optimizer, reconciler)
	deps := &http.Dependencies{
		Farms:      farmSvc,
		Farmers:    usecases.NewFarmerService(postgres.NewFarmerRepo(db)),
		Attendance: usecases.NewAttendanceService(postgres.NewAttendanceRepo(db), farmSvc, publisher),
		Locations:  usecases.NewLocationService(postgres.NewLocationRepo(db), cacheSvc),
		Publisher:  publisher,
		Dispatch:   dispatch,
		Broker:     broker,
		DB:         db,
		Cache:      cachePing,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "EggTrail API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
