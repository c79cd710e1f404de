package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/ports"
	"github.com/samirrijal/eggtrail/internal/pkg/geospatial"
	"github.com/samirrijal/eggtrail/internal/pkg/metrics"
)

const farmListCacheKey = "farms:all"

// FarmService handles farm directory lookups and the geo queries built on them.
type FarmService struct {
	farms      ports.FarmRepository
	cache      ports.CacheService
	optimizer  *RouteOptimizer
	reconciler *FarmReconciler
}

// NewFarmService creates a new FarmService. cache may be nil.
func NewFarmService(farms ports.FarmRepository, cache ports.CacheService, optimizer *RouteOptimizer, reconciler *FarmReconciler) *FarmService {
	if optimizer == nil {
		optimizer = NewRouteOptimizer(DefaultAverageSpeedKmh)
	}
	if reconciler == nil {
		reconciler = NewFarmReconciler(nil, 0)
	}
	return &FarmService{farms: farms, cache: cache, optimizer: optimizer, reconciler: reconciler}
}

// List returns every farm in the directory.
func (s *FarmService) List(ctx context.Context) ([]domain.Farm, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, farmListCacheKey); err == nil {
			var farms []domain.Farm
			if err := json.Unmarshal(data, &farms); err == nil {
				return farms, nil
			}
		}
	}

	farms, err := s.farms.List(ctx)
	if err != nil {
		return nil, err
	}

	// The directory changes rarely; 5 minutes is plenty.
	if s.cache != nil {
		if data, err := json.Marshal(farms); err == nil {
			_ = s.cache.Set(ctx, farmListCacheKey, data, 300)
		}
	}

	return farms, nil
}

// GetByID returns a single farm.
func (s *FarmService) GetByID(ctx context.Context, id string) (*domain.Farm, error) {
	cacheKey := "farms:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var farm domain.Farm
			if err := json.Unmarshal(data, &farm); err == nil {
				return &farm, nil
			}
		}
	}

	farm, err := s.farms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(farm); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return farm, nil
}

// Upsert stores a farm and drops the cached copies.
func (s *FarmService) Upsert(ctx context.Context, farm *domain.Farm) error {
	if farm.Name == "" {
		return fmt.Errorf("%w: farm name must not be empty", ErrInvalidInput)
	}
	if farm.Location != nil && !farm.Location.Valid() {
		return fmt.Errorf("%w: farm location out of range: %.6f, %.6f", ErrInvalidInput, farm.Location.Lat, farm.Location.Lon)
	}
	if farm.ID == "" {
		farm.ID = uuid.NewString()
	}
	if !domain.ValidID(farm.ID) {
		return fmt.Errorf("%w: invalid farm id %q", ErrInvalidInput, farm.ID)
	}
	if err := s.farms.Upsert(ctx, farm); err != nil {
		return fmt.Errorf("upsert farm: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, farmListCacheKey)
		_ = s.cache.Delete(ctx, "farms:id:"+farm.ID)
	}
	return nil
}

// Nearby returns located farms within radiusKm of a point, nearest first.
func (s *FarmService) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]domain.Farm, error) {
	if !geospatial.ValidCoordinates(lat, lon) {
		return nil, fmt.Errorf("%w: coordinates out of range: %.6f, %.6f", ErrInvalidInput, lat, lon)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var farms []domain.Farm
	for _, b := range geospatial.SearchBounds(lat, lon, radiusKm) {
		part, err := s.farms.ListInBounds(ctx, b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
		if err != nil {
			return nil, err
		}
		farms = append(farms, part...)
	}

	out := make([]domain.Farm, 0, len(farms))
	for _, f := range farms {
		if f.Location == nil {
			continue
		}
		d := geospatial.DistanceKm(lat, lon, f.Location.Lat, f.Location.Lon)
		if d > radiusKm {
			continue
		}
		f.Distance = &d
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PlanRoute orders a visit to the given farms, or to every farm when ids is empty.
func (s *FarmService) PlanRoute(ctx context.Context, originLat, originLon float64, ids []string) (*domain.RouteResult, error) {
	if !geospatial.ValidCoordinates(originLat, originLon) {
		return nil, fmt.Errorf("%w: origin out of range: %.6f, %.6f", ErrInvalidInput, originLat, originLon)
	}

	var (
		farms []domain.Farm
		err   error
	)
	if len(ids) == 0 {
		farms, err = s.List(ctx)
	} else {
		farms, err = s.farms.GetByIDs(ctx, ids)
		farms = orderByIDs(farms, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("load farms: %w", err)
	}

	route, err := s.optimizer.Optimize(originLat, originLon, domain.Points(farms))
	if err != nil {
		return nil, err
	}
	metrics.RoutesOptimized.Inc()
	metrics.RouteStops.Observe(float64(len(route.Stops)))
	return route, nil
}

// Reconcile finds the farm nearest to a coordinate.
func (s *FarmService) Reconcile(ctx context.Context, lat, lon float64) (*domain.ReconcileResult, error) {
	if !geospatial.ValidCoordinates(lat, lon) {
		return nil, fmt.Errorf("%w: coordinates out of range: %.6f, %.6f", ErrInvalidInput, lat, lon)
	}
	farms, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load farms: %w", err)
	}
	return s.reconciler.Reconcile(lat, lon, domain.Points(farms))
}

// orderByIDs restores the caller's ordering so tie-breaks follow the request.
func orderByIDs(farms []domain.Farm, ids []string) []domain.Farm {
	byID := make(map[string]domain.Farm, len(farms))
	for _, f := range farms {
		byID[f.ID] = f
	}
	out := make([]domain.Farm, 0, len(farms))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
			delete(byID, id)
		}
	}
	return out
}
