package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/eggtrail/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down [steps]|status>")
	}

	cfg, err := config.Load("eggtrail-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     TEXT PRIMARY KEY,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	versions, err := listVersions(migrationsDir)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		runUp(ctx, pool, versions, applied)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil || steps < 1 {
				log.Fatalf("invalid step count: %s", os.Args[2])
			}
		}
		runDown(ctx, pool, versions, applied, steps)
	case "status":
		for _, v := range versions {
			state := "pending"
			if applied[v] {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, v)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// listVersions returns migration names (file name without .sql) in order.
// Rollback scripts sit next to them as <name>.down.sql.
func listVersions(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, f := range files {
		name := filepath.Base(f)
		if strings.HasSuffix(name, ".down.sql") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, ".sql"))
	}
	sort.Strings(versions)
	return versions, nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(list))
	for _, v := range list {
		applied[v] = true
	}
	return applied, nil
}

// apply runs a script and records the change in one transaction.
func apply(ctx context.Context, pool *pgxpool.Pool, file, record string, args ...any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", file, err)
		}
		_, err := tx.Exec(ctx, record, args...)
		return err
	})
}

func runUp(ctx context.Context, pool *pgxpool.Pool, versions []string, applied map[string]bool) {
	n := 0
	for _, v := range versions {
		if applied[v] {
			continue
		}
		f := filepath.Join(migrationsDir, v+".sql")
		if err := apply(ctx, pool, f, `INSERT INTO schema_migrations (version) VALUES ($1)`, v); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("OK  %s\n", f)
		n++
	}

	log.Printf("%d migrations applied", n)
}

func runDown(ctx context.Context, pool *pgxpool.Pool, versions []string, applied map[string]bool, steps int) {
	for i := len(versions) - 1; i >= 0 && steps > 0; i-- {
		v := versions[i]
		if !applied[v] {
			continue
		}
		f := filepath.Join(migrationsDir, v+".down.sql")
		if err := apply(ctx, pool, f, `DELETE FROM schema_migrations WHERE version = $1`, v); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("DOWN %s\n", f)
		steps--
	}

	log.Println("rollback complete")
}
