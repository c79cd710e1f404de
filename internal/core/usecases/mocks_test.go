package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// --- Mock FarmRepository ---

type mockFarmRepo struct {
	listFn     func(ctx context.Context) ([]domain.Farm, error)
	getByIDFn  func(ctx context.Context, id string) (*domain.Farm, error)
	getByIDsFn func(ctx context.Context, ids []string) ([]domain.Farm, error)
	inBoundsFn func(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]domain.Farm, error)
	upserted   []domain.Farm
}

func (m *mockFarmRepo) Upsert(ctx context.Context, f *domain.Farm) error {
	m.upserted = append(m.upserted, *f)
	return nil
}
func (m *mockFarmRepo) UpsertBatch(ctx context.Context, fs []domain.Farm) error { return nil }

func (m *mockFarmRepo) GetByID(ctx context.Context, id string) (*domain.Farm, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockFarmRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Farm, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockFarmRepo) List(ctx context.Context) ([]domain.Farm, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockFarmRepo) ListInBounds(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]domain.Farm, error) {
	if m.inBoundsFn != nil {
		return m.inBoundsFn(ctx, minLat, minLon, maxLat, maxLon)
	}
	return nil, nil
}

// --- Mock FarmerRepository ---

type mockFarmerRepo struct {
	listFn    func(ctx context.Context) ([]domain.Farmer, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Farmer, error)
	upserted  []domain.Farmer
}

func (m *mockFarmerRepo) Upsert(ctx context.Context, f *domain.Farmer) error {
	m.upserted = append(m.upserted, *f)
	return nil
}
func (m *mockFarmerRepo) UpsertBatch(ctx context.Context, fs []domain.Farmer) error { return nil }

func (m *mockFarmerRepo) GetByID(ctx context.Context, id string) (*domain.Farmer, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockFarmerRepo) List(ctx context.Context) ([]domain.Farmer, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- Mock AttendanceRepository ---

type mockAttendanceRepo struct {
	insertFn func(ctx context.Context, a *domain.Attendance) error
	inserted []domain.Attendance
}

func (m *mockAttendanceRepo) Insert(ctx context.Context, a *domain.Attendance) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx, a); err != nil {
			return err
		}
	}
	m.inserted = append(m.inserted, *a)
	return nil
}

func (m *mockAttendanceRepo) ListByWorker(ctx context.Context, workerID string, limit int) ([]domain.Attendance, error) {
	var out []domain.Attendance
	for _, a := range m.inserted {
		if a.WorkerID == workerID {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- Mock LocationRepository ---

type mockLocationRepo struct {
	inserted []domain.WorkerPosition
}

func (m *mockLocationRepo) Insert(ctx context.Context, p *domain.WorkerPosition) error {
	m.inserted = append(m.inserted, *p)
	return nil
}

func (m *mockLocationRepo) LatestByFarm(ctx context.Context, farmID string) ([]domain.WorkerPosition, error) {
	var out []domain.WorkerPosition
	for _, p := range m.inserted {
		if p.FarmID == farmID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	attendance []domain.Attendance
	routes     map[string]*domain.RouteResult
	err        error
}

func (m *mockPublisher) PublishLocation(ctx context.Context, u *domain.LocationUpdate) error {
	return m.err
}
func (m *mockPublisher) PublishHealth(ctx context.Context, u *domain.HealthUpdate) error {
	return m.err
}
func (m *mockPublisher) PublishMembership(ctx context.Context, event string, ms *domain.Membership) error {
	return m.err
}
func (m *mockPublisher) PublishAttendance(ctx context.Context, a *domain.Attendance) error {
	m.attendance = append(m.attendance, *a)
	return m.err
}
func (m *mockPublisher) PublishRoute(ctx context.Context, driverID string, r *domain.RouteResult) error {
	if m.routes == nil {
		m.routes = map[string]*domain.RouteResult{}
	}
	m.routes[driverID] = r
	return m.err
}

// --- In-memory CacheService ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, errCacheMiss
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
