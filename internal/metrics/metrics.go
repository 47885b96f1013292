// Package metrics holds the Prometheus collectors shared by the api and
// worker services.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fm_http_requests_total",
			Help: "HTTP requests handled, by service, method, route and status.",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fm_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	nodesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fm_nodes_created_total",
			Help: "File nodes created, by kind.",
		},
		[]string{"kind"},
	)

	thumbnailJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fm_thumbnail_jobs_total",
			Help: "Thumbnail job deliveries, by outcome (ok or an error kind).",
		},
		[]string{"outcome"},
	)

	thumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fm_thumbnail_job_duration_seconds",
			Help:    "Time to produce all variants of one image.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NodeCreated counts a successful upload of the given kind.
func NodeCreated(kind string) {
	nodesCreated.WithLabelValues(kind).Inc()
}

// ThumbnailJob records one delivery. An empty outcome means success.
func ThumbnailJob(outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "ok"
	}
	thumbnailJobs.WithLabelValues(outcome).Inc()
	thumbnailDuration.Observe(elapsed.Seconds())
}

// Middleware records request count and latency for service.
func Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		httpRequestsTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath replaces id segments with {id} to bound label cardinality.
//
//	/files/3f2a.../data -> /files/{id}/data
//	/jobs/9c1e...       -> /jobs/{id}
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && (parts[0] == "files" || parts[0] == "jobs") && parts[1] != "" {
		parts[1] = "{id}"
		if len(parts) > 3 {
			parts = parts[:3]
		}
		return "/" + strings.Join(parts, "/")
	}
	switch path {
	case "/", "/status", "/stats", "/healthz", "/metrics", "/connect", "/disconnect", "/users", "/users/me", "/files":
		return path
	}
	return "other"
}
