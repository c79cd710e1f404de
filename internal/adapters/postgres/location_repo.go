package postgres

import (
	"context"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// LocationRepo implements ports.LocationRepository with pgx.
type LocationRepo struct {
	db *DB
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

// Insert appends a position to the worker's history.
func (r *LocationRepo) Insert(ctx context.Context, p *domain.WorkerPosition) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO worker_positions (worker_id, farm_id, lat, lon, reported_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
	`, p.WorkerID, p.FarmID, p.Location.Lat, p.Location.Lon, p.ReportedAt)
	return writeErr(err)
}

// LatestByFarm returns the most recent position of each worker seen at a farm.
func (r *LocationRepo) LatestByFarm(ctx context.Context, farmID string) ([]domain.WorkerPosition, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT ON (worker_id) worker_id, farm_id, lat, lon, reported_at
		FROM worker_positions
		WHERE farm_id = $1
		ORDER BY worker_id, reported_at DESC
	`, farmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WorkerPosition
	for rows.Next() {
		var p domain.WorkerPosition
		if err := rows.Scan(&p.WorkerID, &p.FarmID, &p.Location.Lat, &p.Location.Lon, &p.ReportedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
