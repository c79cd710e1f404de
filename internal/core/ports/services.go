package ports

import (
	"context"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// EventPublisher publishes farm events to a message broker.
type EventPublisher interface {
	PublishLocation(ctx context.Context, update *domain.LocationUpdate) error
	PublishHealth(ctx context.Context, update *domain.HealthUpdate) error
	PublishMembership(ctx context.Context, event string, m *domain.Membership) error
	PublishAttendance(ctx context.Context, a *domain.Attendance) error
	PublishRoute(ctx context.Context, driverID string, route *domain.RouteResult) error
}

// DispatchQueue hands route dispatch requests to the dispatcher.
type DispatchQueue interface {
	RequestDispatch(ctx context.Context, req *domain.DispatchRequest) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
