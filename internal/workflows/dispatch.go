package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// DispatchWorkflowID keys workflow runs by dispatch so a redelivered request
// does not plan twice.
func DispatchWorkflowID(req *domain.DispatchRequest) string {
	return "route-dispatch-" + req.ID
}

// RouteDispatchWorkflow plans a collection route for a dispatch request and
// sends it to the driver. Planning is pure and retried briefly; delivery is
// retried longer since the broker may be restarting.
func RouteDispatchWorkflow(ctx workflow.Context, req domain.DispatchRequest) (*domain.RouteResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting route dispatch", "dispatchID", req.ID, "driverID", req.DriverID, "farms", len(req.FarmIDs))

	planCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var route domain.RouteResult
	if err := workflow.ExecuteActivity(planCtx, "PlanRoute", req).Get(ctx, &route); err != nil {
		logger.Warn("route planning failed", "dispatchID", req.ID, "error", err)
		return nil, err
	}

	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    10,
		},
	})
	if err := workflow.ExecuteActivity(publishCtx, "PublishRoute", req.DriverID, &route).Get(ctx, nil); err != nil {
		logger.Warn("route delivery failed", "dispatchID", req.ID, "error", err)
		return nil, err
	}

	logger.Info("Route dispatched", "dispatchID", req.ID, "stops", len(route.Stops))
	return &route, nil
}
