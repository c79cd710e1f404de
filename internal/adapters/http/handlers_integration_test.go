//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	handler "github.com/samirrijal/eggtrail/internal/adapters/http"
	"github.com/samirrijal/eggtrail/internal/adapters/postgres"
	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
	"github.com/samirrijal/eggtrail/internal/pkg/config"
)

// setupTestDB connects to the test database. The schema must already be
// migrated (cmd/migrate up).
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("eggtrail-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

// setupTestDeps creates dependencies with real DB and repos, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	farms := usecases.NewFarmService(postgres.NewFarmRepo(db), nil, nil, nil)
	return &handler.Dependencies{
		Farms:      farms,
		Farmers:    usecases.NewFarmerService(postgres.NewFarmerRepo(db)),
		Attendance: usecases.NewAttendanceService(postgres.NewAttendanceRepo(db), farms, nil),
		Locations:  usecases.NewLocationService(postgres.NewLocationRepo(db), nil),
		DB:         db,
	}
}

// seedFarm inserts a farmer with one farm at the given point and returns the
// farm ID. Rows are removed when the test ends.
func seedFarm(t *testing.T, db *postgres.DB, name string, lat, lon float64) string {
	ctx := context.Background()
	farmer := &domain.Farmer{ID: "it-" + uuid.NewString(), Name: "Farmer " + name}
	if err := postgres.NewFarmerRepo(db).Upsert(ctx, farmer); err != nil {
		t.Fatalf("seed farmer: %v", err)
	}
	farm := &domain.Farm{
		ID:       "it-" + uuid.NewString(),
		FarmerID: farmer.ID,
		Name:     name,
		Location: &domain.GeoPoint{Lat: lat, Lon: lon},
	}
	if err := postgres.NewFarmRepo(db).Upsert(ctx, farm); err != nil {
		t.Fatalf("seed farm: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM attendance WHERE farm_id = $1`, farm.ID)
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM farmers WHERE id = $1`, farmer.ID)
	})
	return farm.ID
}

func TestGetFarm_Integration_WithRealDB(t *testing.T) {
	db := setupTestDB(t)
	defer db.Pool.Close()

	id := seedFarm(t, db, "Integration Hilltop", -62.1, -151.2)
	app := setupApp(setupTestDeps(t, db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/farms/"+id, nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var farm domain.Farm
	if err := json.NewDecoder(resp.Body).Decode(&farm); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if farm.Location == nil || farm.Location.Lat != -62.1 {
		t.Errorf("unexpected location %+v", farm.Location)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/farms/it-missing", nil), -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for missing farm, got %d", resp.StatusCode)
	}
}

func TestNearbyAndRoute_Integration_WithRealDB(t *testing.T) {
	db := setupTestDB(t)
	defer db.Pool.Close()

	// Remote coordinates keep other rows out of the bounding box.
	a := seedFarm(t, db, "Integration A", -62.0, -150.01)
	b := seedFarm(t, db, "Integration B", -62.0, -150.02)
	app := setupApp(setupTestDeps(t, db))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/farms/nearby?lat=-62&lon=-150&radius_km=5", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var farms []domain.Farm
	json.NewDecoder(resp.Body).Decode(&farms)
	if len(farms) != 2 || farms[0].ID != a || farms[1].ID != b {
		t.Fatalf("unexpected nearby farms: %+v", farms)
	}

	body := `{"origin":{"lat":-62,"lon":-150},"farm_ids":["` + b + `","` + a + `"]}`
	resp, _ = app.Test(jsonRequest("POST", "/v1/routes/optimize", body), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var route domain.RouteResult
	json.NewDecoder(resp.Body).Decode(&route)
	if len(route.Stops) != 2 || route.Stops[0].ID != a {
		t.Errorf("unexpected route: %+v", route.Stops)
	}
}

func TestCheckIn_Integration_WithRealDB(t *testing.T) {
	db := setupTestDB(t)
	defer db.Pool.Close()

	id := seedFarm(t, db, "Integration Check-in", -63.5, -152.5)
	app := setupApp(setupTestDeps(t, db))

	workerID := "it-worker-" + uuid.NewString()
	body := `{"worker_id":"` + workerID + `","worker_name":"Tester","lat":-63.5,"lon":-152.501}`
	resp, _ := app.Test(jsonRequest("POST", "/v1/attendance", body), -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var a domain.Attendance
	json.NewDecoder(resp.Body).Decode(&a)
	if a.FarmID != id {
		t.Errorf("expected check-in at %s, got %s", id, a.FarmID)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/workers/"+workerID+"/attendance", nil), -1)
	var list []domain.Attendance
	json.NewDecoder(resp.Body).Decode(&list)
	if len(list) != 1 || list[0].FarmName != "Integration Check-in" {
		t.Errorf("unexpected attendance list: %+v", list)
	}
}

func TestReady_Integration_WithRealDB(t *testing.T) {
	db := setupTestDB(t)
	defer db.Pool.Close()

	app := setupApp(setupTestDeps(t, db))
	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
