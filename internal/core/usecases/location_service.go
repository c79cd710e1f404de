package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/ports"
	"github.com/samirrijal/eggtrail/internal/pkg/geospatial"
)

// LocationService stores worker positions arriving over the sync channel.
type LocationService struct {
	positions ports.LocationRepository
	cache     ports.CacheService
}

// NewLocationService creates a new LocationService. cache may be nil.
func NewLocationService(positions ports.LocationRepository, cache ports.CacheService) *LocationService {
	return &LocationService{positions: positions, cache: cache}
}

// Record validates and stores a location update.
func (s *LocationService) Record(ctx context.Context, u *domain.LocationUpdate) error {
	if u.WorkerID == "" {
		return fmt.Errorf("%w: worker id must not be empty", ErrInvalidInput)
	}
	if !geospatial.ValidCoordinates(u.Lat, u.Lon) {
		return fmt.Errorf("%w: coordinates out of range: %.6f, %.6f", ErrInvalidInput, u.Lat, u.Lon)
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now().UTC()
	}

	pos := &domain.WorkerPosition{
		WorkerID:   u.WorkerID,
		FarmID:     u.FarmID,
		Location:   domain.GeoPoint{Lat: u.Lat, Lon: u.Lon},
		ReportedAt: u.Timestamp,
	}

	if err := s.positions.Insert(ctx, pos); err != nil {
		return fmt.Errorf("insert position: %w", err)
	}

	// Latest position, 15 min
	if s.cache != nil {
		if data, err := json.Marshal(pos); err == nil {
			_ = s.cache.Set(ctx, "positions:worker:"+u.WorkerID, data, 900)
		}
	}
	return nil
}

// Latest returns the last known position of a worker.
func (s *LocationService) Latest(ctx context.Context, workerID string) (*domain.WorkerPosition, error) {
	if s.cache == nil {
		return nil, fmt.Errorf("no position cache configured")
	}
	data, err := s.cache.Get(ctx, "positions:worker:"+workerID)
	if err != nil {
		return nil, fmt.Errorf("position for %s: %w", workerID, domain.ErrNotFound)
	}
	var pos domain.WorkerPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

// ByFarm returns the latest position of every worker seen at a farm.
func (s *LocationService) ByFarm(ctx context.Context, farmID string) ([]domain.WorkerPosition, error) {
	return s.positions.LatestByFarm(ctx, farmID)
}
