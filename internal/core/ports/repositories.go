package ports

import (
	"context"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// FarmerRepository persists farmer contacts.
type FarmerRepository interface {
	Upsert(ctx context.Context, farmer *domain.Farmer) error
	UpsertBatch(ctx context.Context, farmers []domain.Farmer) error
	GetByID(ctx context.Context, id string) (*domain.Farmer, error)
	List(ctx context.Context) ([]domain.Farmer, error)
}

// FarmRepository persists farms.
type FarmRepository interface {
	Upsert(ctx context.Context, farm *domain.Farm) error
	UpsertBatch(ctx context.Context, farms []domain.Farm) error
	GetByID(ctx context.Context, id string) (*domain.Farm, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Farm, error)
	List(ctx context.Context) ([]domain.Farm, error)
	// ListInBounds returns located farms inside a lat/lon box.
	ListInBounds(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]domain.Farm, error)
}

// AttendanceRepository persists worker check-ins.
type AttendanceRepository interface {
	Insert(ctx context.Context, a *domain.Attendance) error
	ListByWorker(ctx context.Context, workerID string, limit int) ([]domain.Attendance, error)
}

// LocationRepository persists worker position history.
type LocationRepository interface {
	Insert(ctx context.Context, pos *domain.WorkerPosition) error
	LatestByFarm(ctx context.Context, farmID string) ([]domain.WorkerPosition, error)
}
