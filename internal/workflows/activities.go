package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/ports"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
)

// DispatchActivities holds the activity implementations for the route dispatch workflow.
type DispatchActivities struct {
	Farms     *usecases.FarmService
	Publisher ports.EventPublisher
}

// PlanRoute orders the requested farms from the dispatch origin.
// Requests the planner can never satisfy fail without retries.
func (a *DispatchActivities) PlanRoute(ctx context.Context, req domain.DispatchRequest) (*domain.RouteResult, error) {
	route, err := a.Farms.PlanRoute(ctx, req.Origin.Lat, req.Origin.Lon, req.FarmIDs)
	switch {
	case errors.Is(err, usecases.ErrNoLocatableTargets), errors.Is(err, usecases.ErrInvalidInput):
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "unplannable", err)
	case err != nil:
		return nil, fmt.Errorf("plan route for dispatch %s: %w", req.ID, err)
	}

	activity.GetLogger(ctx).Info("route planned",
		"dispatchID", req.ID, "stops", len(route.Stops), "distanceKm", route.TotalDistanceKm)
	return route, nil
}

// PublishRoute delivers a planned route to the driver's subject.
func (a *DispatchActivities) PublishRoute(ctx context.Context, driverID string, route *domain.RouteResult) error {
	if a.Publisher == nil {
		return temporal.NewNonRetryableApplicationError("no route publisher configured", "unconfigured", nil)
	}
	if err := a.Publisher.PublishRoute(ctx, driverID, route); err != nil {
		return fmt.Errorf("publish route to %s: %w", driverID, err)
	}
	return nil
}
