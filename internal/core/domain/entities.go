package domain

import (
	"time"
)

// Farmer is a contact in the farm directory.
type Farmer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Village   string    `json:"village,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Farm is a poultry site owned by a farmer.
type Farm struct {
	ID        string    `json:"id"`
	FarmerID  string    `json:"farmer_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Location  *GeoPoint `json:"location,omitempty"`
	FlockSize int       `json:"flock_size"`
	Distance  *float64  `json:"distance_km,omitempty"` // computed field
	CreatedAt time.Time `json:"created_at"`
}

// Point projects a farm into the geo engine.
func (f Farm) Point() LocatedPoint {
	return LocatedPoint{ID: f.ID, Name: f.Name, Location: f.Location}
}

// Points projects a slice of farms.
func Points(farms []Farm) []LocatedPoint {
	pts := make([]LocatedPoint, len(farms))
	for i, f := range farms {
		pts[i] = f.Point()
	}
	return pts
}

// Attendance is a worker check-in matched to the nearest farm.
type Attendance struct {
	ID          string    `json:"id"`
	WorkerID    string    `json:"worker_id"`
	WorkerName  string    `json:"worker_name"`
	FarmID      string    `json:"farm_id"`
	FarmName    string    `json:"farm_name"`
	Location    GeoPoint  `json:"location"`
	DistanceKm  float64   `json:"distance_km"`
	Confidence  float64   `json:"confidence"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

// WorkerPosition is the last location reported by a field worker.
type WorkerPosition struct {
	WorkerID   string    `json:"worker_id"`
	FarmID     string    `json:"farm_id"`
	Location   GeoPoint  `json:"location"`
	ReportedAt time.Time `json:"reported_at"`
}

// DispatchRequest asks for a route to be planned and sent to a driver.
type DispatchRequest struct {
	ID          string    `json:"id"`
	DriverID    string    `json:"driver_id"`
	Origin      GeoPoint  `json:"origin"`
	FarmIDs     []string  `json:"farm_ids,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
