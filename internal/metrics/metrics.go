// Package metrics provides Prometheus metrics for the docs browser.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbrowser_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docbrowser_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog metrics
	projectsDiscovered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docbrowser_projects_discovered",
			Help: "Number of projects returned by the last discovery",
		},
	)

	// Search index metrics
	searchIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docbrowser_search_index_documents",
			Help: "Number of documents in the current search index",
		},
	)

	searchRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docbrowser_search_rebuild_duration_seconds",
			Help:    "Time to rebuild the search index",
			Buckets: prometheus.DefBuckets,
		},
	)

	searchQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docbrowser_search_queries_total",
			Help: "Total search queries served",
		},
	)

	// Upload metrics
	uploadFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbrowser_upload_files_total",
			Help: "Total uploaded files",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docbrowser_upload_bytes_total",
			Help: "Total bytes written by uploads",
		},
	)

	// Render metrics
	renderCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbrowser_render_cache_total",
			Help: "Rendered document cache lookups",
		},
		[]string{"result"},
	)

	// Live-reload metrics
	liveConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docbrowser_live_connections_active",
			Help: "Number of connected live-reload clients",
		},
	)

	liveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbrowser_live_events_total",
			Help: "Total live-reload events published",
		},
		[]string{"type"},
	)

	// Archive (S3) metrics
	archiveOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docbrowser_archive_operation_duration_seconds",
			Help:    "Archive operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	archiveOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbrowser_archive_operations_total",
			Help: "Total archive operations",
		},
		[]string{"operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetProjectsDiscovered sets the number of discovered projects.
func SetProjectsDiscovered(count int) {
	projectsDiscovered.Set(float64(count))
}

// SetSearchIndexSize sets the number of indexed documents.
func SetSearchIndexSize(count int) {
	searchIndexSize.Set(float64(count))
}

// RecordSearchRebuild records a search index rebuild duration.
func RecordSearchRebuild(duration time.Duration) {
	searchRebuildDuration.Observe(duration.Seconds())
}

// RecordSearchQuery records a served search query.
func RecordSearchQuery() {
	searchQueriesTotal.Inc()
}

// RecordUpload records one uploaded file.
func RecordUpload(bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	uploadFilesTotal.WithLabelValues(status).Inc()
	if success {
		uploadBytesTotal.Add(float64(bytes))
	}
}

// RecordRenderCache records a render cache hit or miss.
func RecordRenderCache(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	renderCacheTotal.WithLabelValues(result).Inc()
}

// SetLiveConnectionsActive sets the number of live-reload subscribers.
func SetLiveConnectionsActive(count int64) {
	liveConnectionsActive.Set(float64(count))
}

// RecordLiveEvent records a live-reload event publication.
func RecordLiveEvent(eventType string) {
	liveEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordArchiveOperation records an archive (S3) operation.
func RecordArchiveOperation(operation string, duration time.Duration, success bool) {
	archiveOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	archiveOperationsTotal.WithLabelValues(operation, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. It must sit
// inside any middleware that replaces the request, so the mux-assigned route
// pattern is visible after the handler returns.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
