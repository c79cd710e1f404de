package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies inside the WGS 84 ranges.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// LocatedPoint is anything the geo engine can visit or match against.
// A nil Location excludes the point from route planning and reconciliation.
type LocatedPoint struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location *GeoPoint `json:"location,omitempty"`
}

// Locatable reports whether the point carries usable coordinates.
func (p LocatedPoint) Locatable() bool {
	return p.Location != nil && p.Location.Valid()
}

// RouteLeg is one hop of an optimized route.
type RouteLeg struct {
	From       GeoPoint `json:"from"`
	To         GeoPoint `json:"to"`
	ToID       string   `json:"to_id"`
	DistanceKm float64  `json:"distance_km"`
}

// RouteResult is a visiting order produced by the route optimizer.
type RouteResult struct {
	Origin            GeoPoint       `json:"origin"`
	Stops             []LocatedPoint `json:"stops"`
	Legs              []RouteLeg     `json:"legs"`
	TotalDistanceKm   float64        `json:"total_distance_km"`
	EstimatedDuration Duration       `json:"estimated_duration"`
}

// Candidate is a point paired with its distance from a query location.
type Candidate struct {
	Point      LocatedPoint `json:"point"`
	DistanceKm float64      `json:"distance_km"`
}

// ReconcileResult is the nearest-farm match for a coordinate.
type ReconcileResult struct {
	Match        LocatedPoint `json:"match"`
	DistanceKm   float64      `json:"distance_km"`
	Confidence   float64      `json:"confidence"`
	Alternatives []Candidate  `json:"alternatives"`
}
