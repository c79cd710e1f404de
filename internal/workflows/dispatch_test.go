package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
)

type stubFarmRepo struct {
	mu    sync.Mutex
	farms []domain.Farm
	loads int
}

func (r *stubFarmRepo) Upsert(ctx context.Context, f *domain.Farm) error       { return nil }
func (r *stubFarmRepo) UpsertBatch(ctx context.Context, f []domain.Farm) error { return nil }
func (r *stubFarmRepo) GetByID(ctx context.Context, id string) (*domain.Farm, error) {
	return nil, domain.ErrNotFound
}
func (r *stubFarmRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Farm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	var out []domain.Farm
	for _, f := range r.farms {
		for _, id := range ids {
			if f.ID == id {
				out = append(out, f)
			}
		}
	}
	return out, nil
}
func (r *stubFarmRepo) List(ctx context.Context) ([]domain.Farm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	return r.farms, nil
}
func (r *stubFarmRepo) ListInBounds(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]domain.Farm, error) {
	return r.farms, nil
}

type routePublisher struct {
	mu     sync.Mutex
	err    error
	calls  int
	driver string
	route  *domain.RouteResult
}

func (p *routePublisher) PublishLocation(ctx context.Context, u *domain.LocationUpdate) error { return nil }
func (p *routePublisher) PublishHealth(ctx context.Context, u *domain.HealthUpdate) error     { return nil }
func (p *routePublisher) PublishMembership(ctx context.Context, event string, m *domain.Membership) error {
	return nil
}
func (p *routePublisher) PublishAttendance(ctx context.Context, a *domain.Attendance) error { return nil }
func (p *routePublisher) PublishRoute(ctx context.Context, driverID string, r *domain.RouteResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.driver, p.route = driverID, r
	return nil
}

func newEnv(t *testing.T, repo *stubFarmRepo, pub *routePublisher) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(RouteDispatchWorkflow)
	env.RegisterActivity(&DispatchActivities{
		Farms:     usecases.NewFarmService(repo, nil, nil, nil),
		Publisher: pub,
	})
	return env
}

func dispatch(farmIDs ...string) domain.DispatchRequest {
	return domain.DispatchRequest{
		ID:          "d-1",
		DriverID:    "driver-7",
		Origin:      domain.GeoPoint{Lat: 0, Lon: 0},
		FarmIDs:     farmIDs,
		RequestedAt: time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
	}
}

func TestRouteDispatchWorkflow_Delivers(t *testing.T) {
	repo := &stubFarmRepo{farms: []domain.Farm{
		{ID: "far", Name: "Far", Location: &domain.GeoPoint{Lat: 0, Lon: 0.2}},
		{ID: "near", Name: "Near", Location: &domain.GeoPoint{Lat: 0, Lon: 0.1}},
	}}
	pub := &routePublisher{}
	env := newEnv(t, repo, pub)

	env.ExecuteWorkflow(RouteDispatchWorkflow, dispatch("far", "near"))

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var route domain.RouteResult
	if err := env.GetWorkflowResult(&route); err != nil {
		t.Fatal(err)
	}
	if len(route.Stops) != 2 || route.Stops[0].ID != "near" {
		t.Errorf("unexpected stops %+v", route.Stops)
	}
	if pub.driver != "driver-7" || pub.route == nil || len(pub.route.Stops) != 2 {
		t.Errorf("route not delivered: driver=%q route=%+v", pub.driver, pub.route)
	}
}

func TestRouteDispatchWorkflow_UnplannableIsNotRetried(t *testing.T) {
	repo := &stubFarmRepo{farms: []domain.Farm{{ID: "blank", Name: "No GPS"}}}
	pub := &routePublisher{}
	env := newEnv(t, repo, pub)

	env.ExecuteWorkflow(RouteDispatchWorkflow, dispatch("blank"))

	err := env.GetWorkflowError()
	if err == nil {
		t.Fatal("expected workflow error")
	}
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != "unplannable" || !appErr.NonRetryable() {
		t.Errorf("expected non-retryable unplannable error, got %v", err)
	}
	if repo.loads != 1 {
		t.Errorf("expected a single planning attempt, got %d", repo.loads)
	}
	if pub.calls != 0 {
		t.Errorf("nothing should be published, got %d calls", pub.calls)
	}
}

func TestRouteDispatchWorkflow_DeliveryRetries(t *testing.T) {
	repo := &stubFarmRepo{farms: []domain.Farm{
		{ID: "f1", Name: "One", Location: &domain.GeoPoint{Lat: 0, Lon: 0.1}},
	}}
	pub := &routePublisher{err: errors.New("nats: connection closed")}
	env := newEnv(t, repo, pub)

	env.ExecuteWorkflow(RouteDispatchWorkflow, dispatch("f1"))

	if env.GetWorkflowError() == nil {
		t.Fatal("expected delivery failure")
	}
	if pub.calls != 10 {
		t.Errorf("expected 10 delivery attempts, got %d", pub.calls)
	}
}

func TestDispatchWorkflowID(t *testing.T) {
	req := dispatch()
	if got := DispatchWorkflowID(&req); got != "route-dispatch-d-1" {
		t.Errorf("got %q", got)
	}
}
