package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/eggtrail/internal/adapters/nats"
	"github.com/samirrijal/eggtrail/internal/adapters/postgres"
	"github.com/samirrijal/eggtrail/internal/adapters/valkey"
	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/ports"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
	"github.com/samirrijal/eggtrail/internal/pkg/config"
	"github.com/samirrijal/eggtrail/internal/pkg/logging"
	"github.com/samirrijal/eggtrail/internal/workflows"
)

func main() {
	cfg, err := config.Load("eggtrail-dispatcher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// The publisher also ensures the dispatch streams exist.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	tiers := make([]usecases.ConfidenceTier, len(cfg.Routing.ConfidenceTiers))
	for i, t := range cfg.Routing.ConfidenceTiers {
		tiers[i] = usecases.ConfidenceTier{MaxKm: t.MaxKm, Score: t.Score}
	}
	farms := usecases.NewFarmService(
		postgres.NewFarmRepo(db),
		cacheSvc,
		usecases.NewRouteOptimizer(cfg.Routing.AverageSpeedKmh),
		usecases.NewFarmReconciler(tiers, cfg.Routing.FallbackConfidence),
	)

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.RouteDispatchWorkflow)
	w.RegisterActivity(&workflows.DispatchActivities{
		Farms:     farms,
		Publisher: pub,
	})

	// Queued requests start one workflow each; a redelivered request maps to
	// the same workflow ID.
	err = sub.SubscribeDispatchRequests(ctx, func(ctx context.Context, req *domain.DispatchRequest) error {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        workflows.DispatchWorkflowID(req),
			TaskQueue: cfg.Temporal.TaskQueue,
		}, workflows.RouteDispatchWorkflow, *req)
		if err != nil {
			slog.Error("start dispatch workflow failed", "dispatch_id", req.ID, "error", err)
			return err
		}
		slog.Info("dispatch workflow started", "dispatch_id", req.ID, "driver_id", req.DriverID, "run_id", run.GetRunID())
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe dispatch requests: %v", err)
	}

	slog.Info("dispatcher worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
