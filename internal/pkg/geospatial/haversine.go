package geospatial

import "math"

const earthRadiusKm = 6371.0

// DistanceKm calculates the great-circle distance in kilometers between two points.
// Inputs are degrees and are not range-checked.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push a a hair outside [0, 1] for antipodal points.
	a = math.Min(math.Max(a, 0), 1)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// ValidCoordinates reports whether lat/lon are inside the WGS 84 ranges.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// BoundingBox returns a bounding box around a point with the given radius in kilometers.
func BoundingBox(lat, lon, radiusKm float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusKm / 111.32
	lonDelta := radiusKm / (111.32 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// Bounds is a lat/lon rectangle with MinLon <= MaxLon.
type Bounds struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// SearchBounds covers radiusKm around a point with rectangles that stay inside
// [-180, 180]. A box crossing the antimeridian is split in two; a box reaching
// a pole spans every longitude.
func SearchBounds(lat, lon, radiusKm float64) []Bounds {
	minLat, minLon, maxLat, maxLon := BoundingBox(lat, lon, radiusKm)
	minLat, maxLat = math.Max(minLat, -90), math.Min(maxLat, 90)

	if minLat <= -90 || maxLat >= 90 || maxLon-minLon >= 360 {
		return []Bounds{{minLat, -180, maxLat, 180}}
	}
	switch {
	case minLon < -180:
		return []Bounds{
			{minLat, minLon + 360, maxLat, 180},
			{minLat, -180, maxLat, maxLon},
		}
	case maxLon > 180:
		return []Bounds{
			{minLat, minLon, maxLat, 180},
			{minLat, -180, maxLat, maxLon - 360},
		}
	}
	return []Bounds{{minLat, minLon, maxLat, maxLon}}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
