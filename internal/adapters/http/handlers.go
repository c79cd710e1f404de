package http

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// queryNumber parses a finite float query parameter. A missing parameter
// yields def.
func queryNumber(c *fiber.Ctx, key string, def float64) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// requireCoords reads lat/lon query parameters. Both must be present and
// numeric; 0 is a valid coordinate.
func requireCoords(c *fiber.Ctx) (lat, lon float64, ok bool) {
	if c.Query("lat") == "" || c.Query("lon") == "" {
		return 0, 0, false
	}
	lat, latOK := queryNumber(c, "lat", 0)
	lon, lonOK := queryNumber(c, "lon", 0)
	return lat, lon, latOK && lonOK
}

// ---- Farms ----

// ListFarmsHandler returns the farm directory.
func ListFarmsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		farms, err := deps.Farms.List(c.UserContext())
		if err != nil {
			return errFromService(c, err)
		}
		page, pg := paginate(c, farms, 100, 500)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetFarmHandler returns a single farm by ID.
func GetFarmHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		farm, err := deps.Farms.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(farm)
	}
}

// UpsertFarmHandler creates or updates a farm.
func UpsertFarmHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var farm domain.Farm
		if err := c.BodyParser(&farm); err != nil {
			return errBadRequest(c, "invalid farm body")
		}
		if farm.FarmerID == "" {
			return errBadRequest(c, "farmer_id is required")
		}
		if err := deps.Farms.Upsert(c.UserContext(), &farm); err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(farm)
	}
}

// NearbyFarmsHandler returns farms within radius_km of a point, nearest first.
func NearbyFarmsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, ok := requireCoords(c)
		if !ok {
			return errBadRequest(c, "lat and lon are required and must be numeric")
		}
		radius, ok := queryNumber(c, "radius_km", 10)
		if !ok || radius <= 0 || radius > 200 {
			return errBadRequest(c, "radius_km must be between 0 and 200")
		}

		farms, err := deps.Farms.Nearby(c.UserContext(), lat, lon, radius, c.QueryInt("limit", 50))
		if err != nil {
			return errFromService(c, err)
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(farms)
	}
}

// ReconcileHandler matches a coordinate to the nearest farm.
func ReconcileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, ok := requireCoords(c)
		if !ok {
			return errBadRequest(c, "lat and lon are required and must be numeric")
		}
		result, err := deps.Farms.Reconcile(c.UserContext(), lat, lon)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(result)
	}
}

// FarmWorkersHandler returns the latest position of each worker seen at a farm.
func FarmWorkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		positions, err := deps.Locations.ByFarm(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		if positions == nil {
			positions = []domain.WorkerPosition{}
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(positions)
	}
}

// ---- Farmers ----

// ListFarmersHandler returns all farmer contacts.
func ListFarmersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		farmers, err := deps.Farmers.List(c.UserContext())
		if err != nil {
			return errFromService(c, err)
		}
		page, pg := paginate(c, farmers, 100, 500)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetFarmerHandler returns a farmer by ID.
func GetFarmerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		farmer, err := deps.Farmers.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(farmer)
	}
}

// UpsertFarmerHandler creates or updates a farmer.
func UpsertFarmerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var farmer domain.Farmer
		if err := c.BodyParser(&farmer); err != nil {
			return errBadRequest(c, "invalid farmer body")
		}
		if err := deps.Farmers.Upsert(c.UserContext(), &farmer); err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(farmer)
	}
}

// ---- Routes ----

type optimizeRequest struct {
	Origin  *domain.GeoPoint `json:"origin"`
	FarmIDs []string         `json:"farm_ids"`
}

// OptimizeRouteHandler plans a nearest-neighbour visit over the requested
// farms (all farms when farm_ids is empty). ?format=geojson returns a
// FeatureCollection instead of the JSON route.
func OptimizeRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req optimizeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid route request body")
		}
		if req.Origin == nil {
			return errBadRequest(c, "origin is required")
		}
		if len(req.FarmIDs) > 500 {
			return errBadRequest(c, "too many farm_ids (max 500)")
		}

		route, err := deps.Farms.PlanRoute(c.UserContext(), req.Origin.Lat, req.Origin.Lon, req.FarmIDs)
		if err != nil {
			return errFromService(c, err)
		}

		switch strings.ToLower(c.Query("format", "json")) {
		case "json":
			return c.JSON(route)
		case "geojson":
			data, err := routeGeoJSON(route).MarshalJSON()
			if err != nil {
				return errInternal(c, "encode geojson")
			}
			c.Set(fiber.HeaderContentType, "application/geo+json")
			return c.Send(data)
		default:
			return errBadRequest(c, "format must be json or geojson")
		}
	}
}

type dispatchRequest struct {
	DriverID string           `json:"driver_id"`
	Origin   *domain.GeoPoint `json:"origin"`
	FarmIDs  []string         `json:"farm_ids"`
}

// DispatchRouteHandler queues a route to be planned and delivered to a driver.
func DispatchRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Dispatch == nil {
			return errUnavailable(c, "dispatch queue not available")
		}
		var body dispatchRequest
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid dispatch body")
		}
		if body.DriverID == "" || body.Origin == nil {
			return errBadRequest(c, "driver_id and origin are required")
		}
		if !domain.ValidID(body.DriverID) {
			return errBadRequest(c, "driver_id must not contain '.', '*', '>' or whitespace")
		}
		if !body.Origin.Valid() {
			return errBadRequest(c, "origin out of range")
		}

		req := &domain.DispatchRequest{
			ID:          uuid.NewString(),
			DriverID:    body.DriverID,
			Origin:      *body.Origin,
			FarmIDs:     body.FarmIDs,
			RequestedAt: time.Now().UTC(),
		}
		if err := deps.Dispatch.RequestDispatch(c.UserContext(), req); err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(req)
	}
}

// ---- Attendance ----

type checkInRequest struct {
	WorkerID   string   `json:"worker_id"`
	WorkerName string   `json:"worker_name"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
}

// CheckInHandler records a worker check-in at the nearest farm.
func CheckInHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req checkInRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid check-in body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}

		a, err := deps.Attendance.CheckIn(c.UserContext(), req.WorkerID, req.WorkerName, *req.Lat, *req.Lon)
		if err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	}
}

// WorkerAttendanceHandler lists a worker's recent check-ins.
func WorkerAttendanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := deps.Attendance.ListByWorker(c.UserContext(), c.Params("id"), c.QueryInt("limit", 50))
		if err != nil {
			return errFromService(c, err)
		}
		if list == nil {
			list = []domain.Attendance{}
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(list)
	}
}

// WorkerLocationHandler returns a worker's last reported position.
func WorkerLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pos, err := deps.Locations.Latest(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(pos)
	}
}
