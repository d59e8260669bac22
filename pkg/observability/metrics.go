package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Query metrics
	SearchRequestsTotal *prometheus.CounterVec
	SearchDuration      *prometheus.HistogramVec
	SearchHitsTotal     prometheus.Histogram

	// Indexing metrics
	IndexOperationsTotal *prometheus.CounterVec
	IndexDuration        *prometheus.HistogramVec
	IndexQueueDepth      prometheus.Gauge
	BulkIndexedTotal     prometheus.Counter
	BulkFailedTotal      prometheus.Counter

	// Extraction metrics
	ExtractionsTotal *prometheus.CounterVec

	// Suggestion cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Index size
	IndexedDocumentsTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_search_requests_total",
				Help: "Total number of search operations",
			},
			[]string{"operation", "status"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_search_duration_seconds",
				Help:    "Search operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		SearchHitsTotal: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docsearch_search_hits",
				Help:    "Number of hits per search",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		IndexOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_index_operations_total",
				Help: "Total number of index write operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		IndexDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_index_operation_duration_seconds",
				Help:    "Index write operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		IndexQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_index_queue_depth",
				Help: "Number of queued asynchronous index tasks",
			},
		),
		BulkIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docsearch_bulk_indexed_total",
				Help: "Documents successfully indexed by bulk runs",
			},
		),
		BulkFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docsearch_bulk_failed_total",
				Help: "Documents that failed during bulk runs",
			},
		),

		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_extractions_total",
				Help: "Total number of content extraction attempts",
			},
			[]string{"status"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_cache_hits_total",
				Help: "Total number of suggestion cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_cache_misses_total",
				Help: "Total number of suggestion cache misses",
			},
			[]string{"tier"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		IndexedDocumentsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_indexed_documents_total",
				Help: "Documents currently in the search index",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchRequestsTotal,
		m.SearchDuration,
		m.SearchHitsTotal,
		m.IndexOperationsTotal,
		m.IndexDuration,
		m.IndexQueueDepth,
		m.BulkIndexedTotal,
		m.BulkFailedTotal,
		m.ExtractionsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.IndexedDocumentsTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
