package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eggtrail",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eggtrail",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eggtrail",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Field operations
	RoutesOptimized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eggtrail",
		Subsystem: "routing",
		Name:      "routes_optimized_total",
		Help:      "Total routes planned by the nearest-neighbour optimizer",
	})

	RouteStops = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eggtrail",
		Subsystem: "routing",
		Name:      "route_stops",
		Help:      "Number of stops per planned route",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
	})

	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eggtrail",
		Subsystem: "attendance",
		Name:      "check_ins_total",
		Help:      "Total attendance check-ins by confidence score",
	}, []string{"confidence"})

	RowsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eggtrail",
		Subsystem: "importer",
		Name:      "rows_imported_total",
		Help:      "Total directory rows imported from CSV exports",
	}, []string{"kind"})

	// Sync
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eggtrail",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	SyncEventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eggtrail",
		Subsystem: "ws",
		Name:      "events_relayed_total",
		Help:      "Total sync events relayed to farm groups",
	}, []string{"event"})

	SyncChannelState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eggtrail",
		Subsystem: "sync_client",
		Name:      "state",
		Help:      "Current sync channel state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=error)",
	})

	SyncReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eggtrail",
		Subsystem: "sync_client",
		Name:      "reconnect_attempts_total",
		Help:      "Total reconnect attempts scheduled by the sync channel",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eggtrail",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eggtrail",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eggtrail",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eggtrail",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eggtrail",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// fiber resolves the route pattern, keeping /v1/farms/:id to one series
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

type poolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pgxpool stats into the pool gauges. It takes an
// interface so this package does not import pgx.
func UpdateDBPoolMetrics(stat any) {
	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
