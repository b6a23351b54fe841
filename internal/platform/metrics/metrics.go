// Package metrics holds the Prometheus collectors shared by the discovery and
// activity services. Collectors register on the default registry through
// promauto; Handler exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Feed composition
	FeedComposeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_compose_duration_seconds",
			Help:    "Time spent composing a personalised feed",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
	)

	FeedSections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_sections_total",
			Help: "Feed sections by kind and outcome (emitted, empty, failed)",
		},
		[]string{"kind", "outcome"},
	)

	HeroPicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hero_picks_total",
			Help: "Hero selections by source (featured, scored, none)",
		},
		[]string{"source"},
	)

	// Candidate providers
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidate_provider_requests_total",
			Help: "Candidate provider calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "candidate_provider_duration_seconds",
			Help:    "Candidate provider call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Caches
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by cache name",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by cache name",
		},
		[]string{"cache"},
	)

	// User state
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_recorded_total",
			Help: "Recorded interaction events by action",
		},
		[]string{"action"},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_state_store_operations_total",
			Help: "User state store operations by backend, operation and outcome",
		},
		[]string{"backend", "operation", "outcome"},
	)

	// NATS
	NATSPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Messages published by subject",
		},
		[]string{"subject"},
	)

	NATSConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Messages consumed by subject and outcome (ack, nak, dlq)",
		},
		[]string{"subject", "outcome"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func RecordProviderCall(operation string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderRequests.WithLabelValues(operation, outcome).Inc()
	ProviderDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func RecordCache(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
		return
	}
	CacheMisses.WithLabelValues(cache).Inc()
}

func RecordStoreOp(backend, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreOperations.WithLabelValues(backend, op, outcome).Inc()
}

// Middleware records request latency labelled by the matched chi route
// pattern so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		RecordHTTPRequest(r.Method, route, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
