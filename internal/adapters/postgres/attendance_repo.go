package postgres

import (
	"context"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// AttendanceRepo implements ports.AttendanceRepository with pgx.
type AttendanceRepo struct {
	db *DB
}

// NewAttendanceRepo creates a new AttendanceRepo.
func NewAttendanceRepo(db *DB) *AttendanceRepo {
	return &AttendanceRepo{db: db}
}

// Insert stores a check-in.
func (r *AttendanceRepo) Insert(ctx context.Context, a *domain.Attendance) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO attendance (id, worker_id, worker_name, farm_id, lat, lon, distance_km, confidence, checked_in_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.WorkerID, a.WorkerName, a.FarmID, a.Location.Lat, a.Location.Lon,
		a.DistanceKm, a.Confidence, a.CheckedInAt)
	return writeErr(err)
}

// ListByWorker returns a worker's check-ins, newest first.
func (r *AttendanceRepo) ListByWorker(ctx context.Context, workerID string, limit int) ([]domain.Attendance, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT a.id, a.worker_id, COALESCE(a.worker_name, ''), a.farm_id, f.name,
		       a.lat, a.lon, a.distance_km, a.confidence, a.checked_in_at
		FROM attendance a
		JOIN farms f ON f.id = a.farm_id
		WHERE a.worker_id = $1
		ORDER BY a.checked_in_at DESC
		LIMIT $2
	`, workerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Attendance
	for rows.Next() {
		var a domain.Attendance
		if err := rows.Scan(
			&a.ID, &a.WorkerID, &a.WorkerName, &a.FarmID, &a.FarmName,
			&a.Location.Lat, &a.Location.Lon, &a.DistanceKm, &a.Confidence, &a.CheckedInAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
