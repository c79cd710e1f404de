package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/samirrijal/eggtrail/internal/adapters/postgres"
	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/pkg/config"
	"github.com/samirrijal/eggtrail/internal/pkg/logging"
	"github.com/samirrijal/eggtrail/internal/pkg/metrics"
)

const batchSize = 500

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: importer <farmers.csv> [farms.csv]")
	}

	cfg, err := config.Load("eggtrail-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Farmers first; farms reference them.
	if err := importFarmers(ctx, postgres.NewFarmerRepo(db), os.Args[1]); err != nil {
		log.Fatalf("farmers: %v", err)
	}
	if len(os.Args) > 2 {
		if err := importFarms(ctx, postgres.NewFarmRepo(db), os.Args[2]); err != nil {
			log.Fatalf("farms: %v", err)
		}
	}

	slog.Info("import complete")
}

type farmerWriter interface {
	UpsertBatch(ctx context.Context, farmers []domain.Farmer) error
}

type farmWriter interface {
	UpsertBatch(ctx context.Context, farms []domain.Farm) error
}

func importFarmers(ctx context.Context, repo farmerWriter, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	farmers, skipped, err := readFarmers(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for start := 0; start < len(farmers); start += batchSize {
		end := min(start+batchSize, len(farmers))
		if err := repo.UpsertBatch(ctx, farmers[start:end]); err != nil {
			return fmt.Errorf("rows %d-%d: %w", start, end, err)
		}
		metrics.RowsImported.WithLabelValues("farmer").Add(float64(end - start))
	}

	slog.Info("farmers imported", "file", path, "rows", len(farmers), "skipped", skipped)
	return nil
}

func importFarms(ctx context.Context, repo farmWriter, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	farms, skipped, err := readFarms(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for start := 0; start < len(farms); start += batchSize {
		end := min(start+batchSize, len(farms))
		if err := repo.UpsertBatch(ctx, farms[start:end]); err != nil {
			return fmt.Errorf("rows %d-%d: %w", start, end, err)
		}
		metrics.RowsImported.WithLabelValues("farm").Add(float64(end - start))
	}

	slog.Info("farms imported", "file", path, "rows", len(farms), "skipped", skipped)
	return nil
}
