package http

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// routeGeoJSON renders a planned route as a FeatureCollection: the origin,
// one point per stop in visiting order, and the path as a LineString.
func routeGeoJSON(r *domain.RouteResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	originPt := orb.Point{r.Origin.Lon, r.Origin.Lat}
	origin := geojson.NewFeature(originPt)
	origin.Properties["kind"] = "origin"
	fc.Append(origin)

	path := orb.LineString{originPt}
	for i, s := range r.Stops {
		pt := orb.Point{s.Location.Lon, s.Location.Lat}
		path = append(path, pt)

		f := geojson.NewFeature(pt)
		f.ID = s.ID
		f.Properties["kind"] = "stop"
		f.Properties["sequence"] = i + 1
		f.Properties["name"] = s.Name
		if i < len(r.Legs) {
			f.Properties["leg_distance_km"] = r.Legs[i].DistanceKm
		}
		fc.Append(f)
	}

	line := geojson.NewFeature(path)
	line.Properties["kind"] = "path"
	line.Properties["total_distance_km"] = r.TotalDistanceKm
	line.Properties["estimated_duration_seconds"] = r.EstimatedDuration.Std().Seconds()
	fc.Append(line)

	return fc
}
