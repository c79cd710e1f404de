package usecases

import (
	"errors"
	"time"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/pkg/geospatial"
)

// DefaultAverageSpeedKmh is the assumed travel speed between farms.
const DefaultAverageSpeedKmh = 30.0

// ErrNoLocatableTargets is returned when none of the route targets carry coordinates.
var ErrNoLocatableTargets = errors.New("no locatable targets")

// RouteOptimizer orders farm visits with a greedy nearest-neighbour tour.
// The result is an approximation; it is never refined with 2-opt or backtracking
// so the same input always produces the same order.
type RouteOptimizer struct {
	averageSpeedKmh float64
}

// NewRouteOptimizer creates a RouteOptimizer. A non-positive speed falls back to the default.
func NewRouteOptimizer(averageSpeedKmh float64) *RouteOptimizer {
	if averageSpeedKmh <= 0 {
		averageSpeedKmh = DefaultAverageSpeedKmh
	}
	return &RouteOptimizer{averageSpeedKmh: averageSpeedKmh}
}

// AverageSpeedKmh returns the speed used for duration estimates.
func (o *RouteOptimizer) AverageSpeedKmh() float64 {
	return o.averageSpeedKmh
}

// Optimize builds a visiting order starting at the origin.
// Points without coordinates are skipped. Ties go to the earlier point in input order.
func (o *RouteOptimizer) Optimize(originLat, originLon float64, points []domain.LocatedPoint) (*domain.RouteResult, error) {
	remaining := make([]domain.LocatedPoint, 0, len(points))
	for _, p := range points {
		if p.Locatable() {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == 0 {
		return nil, ErrNoLocatableTargets
	}

	result := &domain.RouteResult{
		Origin: domain.GeoPoint{Lat: originLat, Lon: originLon},
		Stops:  make([]domain.LocatedPoint, 0, len(remaining)),
		Legs:   make([]domain.RouteLeg, 0, len(remaining)),
	}

	visited := make([]bool, len(remaining))
	cur := result.Origin

	for range remaining {
		best := -1
		bestDist := 0.0
		for i, p := range remaining {
			if visited[i] {
				continue
			}
			d := geospatial.DistanceKm(cur.Lat, cur.Lon, p.Location.Lat, p.Location.Lon)
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}

		next := remaining[best]
		visited[best] = true
		result.Stops = append(result.Stops, next)
		result.Legs = append(result.Legs, domain.RouteLeg{
			From:       cur,
			To:         *next.Location,
			ToID:       next.ID,
			DistanceKm: bestDist,
		})
		result.TotalDistanceKm += bestDist
		cur = *next.Location
	}

	hours := result.TotalDistanceKm / o.averageSpeedKmh
	result.EstimatedDuration = domain.Duration(time.Duration(hours * float64(time.Hour)))

	return result, nil
}
