package http

import (
	"context"

	"github.com/samirrijal/eggtrail/internal/adapters/postgres"
	"github.com/samirrijal/eggtrail/internal/core/ports"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
)

// FarmBroker fans sync events out to every socket joined to a farm.
type FarmBroker interface {
	SubscribeFarm(farmID string, fn func(data []byte)) (unsubscribe func(), err error)
	Connected() bool
}

// Pinger is a dependency the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Farms      *usecases.FarmService
	Farmers    *usecases.FarmerService
	Attendance *usecases.AttendanceService
	Locations  *usecases.LocationService
	Publisher  ports.EventPublisher
	Dispatch   ports.DispatchQueue
	Broker     FarmBroker
	DB         *postgres.DB
	Cache      Pinger
}
