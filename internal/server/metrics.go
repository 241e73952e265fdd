package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every StudyMate metric.
const namespace = "studymate"

// Metrics holds all Prometheus collectors for the HTTP server and the
// retrieval pipeline. It implements [rag.Observer] so the retriever reports
// ingestion and search events directly, and [Metrics.GenerationRetry]
// matches [generate.RetryFunc].
//
// A single instance is created at startup and shared by the retriever, the
// generation client and the server so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type Metrics struct {
	// documentsIngested counts documents ingested successfully.
	documentsIngested prometheus.Counter

	// passagesIngested counts passages added to the index.
	passagesIngested prometheus.Counter

	// ingestionFailures counts documents that failed ingestion.
	ingestionFailures prometheus.Counter

	// searchDurationSeconds records the latency of similarity searches.
	searchDurationSeconds prometheus.Histogram

	// searchResults records how many passages each search returned.
	searchResults prometheus.Histogram

	// generationRetries counts retries of rate-limited generation calls.
	generationRetries prometheus.Counter

	// httpRequestsTotal counts all HTTP requests handled by the API,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of API requests.
	httpDurationSeconds *prometheus.HistogramVec

	// httpRateLimited counts requests rejected by the per-client limiter.
	httpRateLimited *prometheus.CounterVec
}

// NewMetrics registers all metrics against reg. promauto.With(reg) is used
// so that each call registers into the provided registry rather than the
// global default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		documentsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of documents ingested successfully.",
		}),

		passagesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "passages_total",
			Help:      "Total number of passages added to the index.",
		}),

		ingestionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Total number of documents that failed ingestion.",
		}),

		searchDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of similarity searches including query embedding.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),

		searchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of passages returned per search.",
			Buckets:   []float64{0, 1, 3, 5, 10, 20},
		}),

		generationRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "retries_total",
			Help:      "Total number of retries of rate-limited generation calls.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),

		httpRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of API requests rejected by the rate limiter, partitioned by handler.",
		}, []string{"handler"}),
	}
}

// DocumentIngested implements [rag.Observer].
func (m *Metrics) DocumentIngested(_ string, passages int) {
	m.documentsIngested.Inc()
	m.passagesIngested.Add(float64(passages))
}

// IngestionFailed implements [rag.Observer].
func (m *Metrics) IngestionFailed(string) { m.ingestionFailures.Inc() }

// SearchCompleted implements [rag.Observer].
func (m *Metrics) SearchCompleted(elapsed time.Duration, results int) {
	m.searchDurationSeconds.Observe(elapsed.Seconds())
	m.searchResults.Observe(float64(results))
}

// GenerationRetry counts one retry. Its signature matches generate.RetryFunc.
func (m *Metrics) GenerationRetry(int, time.Duration, error) { m.generationRetries.Inc() }

// RequestRateLimited counts one request rejected by the rate limiter.
func (m *Metrics) RequestRateLimited(handler string) {
	m.httpRateLimited.WithLabelValues(handler).Inc()
}

// instrument wraps next to record request count and latency under the
// logical handler name rather than the raw path.
func (s *Server) instrument(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rw, r)
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.statusCode())).Inc()
	})
}
