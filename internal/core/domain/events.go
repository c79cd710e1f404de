package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outbound sync events (client → server).
const (
	EventLocationUpdate = "location_update"
	EventHealthUpdate   = "health_update"
	EventJoinFarm       = "join_farm"
	EventLeaveFarm      = "leave_farm"
)

// Inbound sync events (server → client).
const (
	EventLocationBroadcast = "location_broadcast"
	EventHealthAlert       = "health_alert"
	EventWorkerJoined      = "worker_joined"
	EventWorkerLeft        = "worker_left"
	EventCriticalAlert     = "critical_alert"
)

// HealthCritical is the flock health status that raises a critical alert.
const HealthCritical = "critical"

// Event is a named sync message. Payload is left for the receiver to interpret.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent wraps a payload in the sync envelope.
func EncodeEvent(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return json.Marshal(Event{Name: name, Payload: data})
}

// LocationUpdate is a worker position report.
type LocationUpdate struct {
	FarmID    string    `json:"farm_id"`
	WorkerID  string    `json:"worker_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthUpdate is a flock health status report.
type HealthUpdate struct {
	FarmID    string    `json:"farm_id"`
	WorkerID  string    `json:"worker_id"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Membership announces a worker joining or leaving a farm group.
type Membership struct {
	FarmID     string `json:"farm_id"`
	WorkerID   string `json:"worker_id"`
	WorkerName string `json:"worker_name,omitempty"`
}
