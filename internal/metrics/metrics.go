// Package metrics provides Prometheus instrumentation for the geo
// intelligence engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheRequests counts result cache lookups by cache name and outcome.
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geopulse_cache_requests_total",
		Help: "Result cache lookups",
	}, []string{"cache", "result"})

	// CacheEvictions counts entries removed by TTL expiry or capacity.
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geopulse_cache_evictions_total",
		Help: "Result cache evictions",
	}, []string{"cache", "reason"})

	// StoreQueryDuration tracks store round trips issued by the aggregator.
	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geopulse_store_query_duration_seconds",
		Help:    "Store query latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"store", "status"})

	// HotspotsDetected counts hotspots returned, partitioned by side.
	HotspotsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geopulse_hotspots_detected_total",
		Help: "Hotspots returned by the detector",
	}, []string{"side"})

	// OpportunityZones counts opportunity zones returned, by zone type.
	OpportunityZones = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geopulse_opportunity_zones_total",
		Help: "Opportunity zones returned by the matcher",
	}, []string{"type"})

	// EventsLogged counts events accepted by the write path, by event type.
	EventsLogged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geopulse_events_logged_total",
		Help: "Interaction events written through the engine",
	}, []string{"type"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geopulse_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geopulse_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStore records the latency of one store round trip started at
// start.
func ObserveStore(store string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreQueryDuration.WithLabelValues(store, status).Observe(time.Since(start).Seconds())
}

// Middleware returns a gin middleware that records request metrics.
//
// c.FullPath() is the route template ("/api/v1/geo/categories/:categoryId/demand"),
// which keeps the path label low-cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
