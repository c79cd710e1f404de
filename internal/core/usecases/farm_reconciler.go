package usecases

import (
	"errors"
	"sort"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/pkg/geospatial"
)

// ErrNoMatchAvailable is returned when no candidate farm carries coordinates.
var ErrNoMatchAvailable = errors.New("no match available")

// ConfidenceTier maps distances strictly below MaxKm to Score.
type ConfidenceTier struct {
	MaxKm float64
	Score float64
}

// DefaultConfidenceTiers are the distance buckets used when none are configured.
var DefaultConfidenceTiers = []ConfidenceTier{
	{MaxKm: 1, Score: 0.95},
	{MaxKm: 5, Score: 0.80},
	{MaxKm: 10, Score: 0.60},
}

// DefaultFallbackConfidence applies beyond the last tier.
const DefaultFallbackConfidence = 0.30

// FarmReconciler matches a coordinate to the nearest known farm.
type FarmReconciler struct {
	tiers    []ConfidenceTier
	fallback float64
}

// NewFarmReconciler creates a FarmReconciler. Tiers must be ordered by ascending MaxKm;
// an empty slice selects the defaults.
func NewFarmReconciler(tiers []ConfidenceTier, fallback float64) *FarmReconciler {
	if len(tiers) == 0 {
		tiers = DefaultConfidenceTiers
		fallback = DefaultFallbackConfidence
	}
	return &FarmReconciler{tiers: tiers, fallback: fallback}
}

// Confidence returns the tier score for a distance in kilometers.
func (r *FarmReconciler) Confidence(distanceKm float64) float64 {
	for _, t := range r.tiers {
		if distanceKm < t.MaxKm {
			return t.Score
		}
	}
	return r.fallback
}

// Reconcile returns the nearest candidate and the rest ranked by distance.
func (r *FarmReconciler) Reconcile(lat, lon float64, candidates []domain.LocatedPoint) (*domain.ReconcileResult, error) {
	ranked := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Locatable() {
			continue
		}
		ranked = append(ranked, domain.Candidate{
			Point:      c,
			DistanceKm: geospatial.DistanceKm(lat, lon, c.Location.Lat, c.Location.Lon),
		})
	}
	if len(ranked) == 0 {
		return nil, ErrNoMatchAvailable
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	best := ranked[0]
	return &domain.ReconcileResult{
		Match:        best.Point,
		DistanceKm:   best.DistanceKm,
		Confidence:   r.Confidence(best.DistanceKm),
		Alternatives: ranked[1:],
	}, nil
}
