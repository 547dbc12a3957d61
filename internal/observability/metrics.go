package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for page and record counters.
const (
	OutcomeAccepted      = "accepted"
	OutcomeSkipped       = "skipped"
	OutcomeNormalization = "normalization_failed"
	OutcomeSchema        = "schema_failed"
	OutcomeExtracted     = "extracted"
	OutcomeExtractFailed = "extract_failed"
)

var (
	// PagesTotal counts processed pages by outcome.
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_pages_total",
			Help: "Total number of statement pages processed",
		},
		[]string{"outcome"},
	)

	// RecordsTotal counts candidate records by outcome.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_records_total",
			Help: "Total number of candidate records processed",
		},
		[]string{"outcome"},
	)

	// RunDuration tracks pipeline run duration
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HTTPRequestsTotal tracks API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "code"},
	)

	// HTTPRequestDuration tracks API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// ActiveRequests tracks in-flight API requests
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Metrics wraps an http.Handler and records request counts and latency.
// The path label is the route pattern when available to keep cardinality bounded.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ActiveRequests.Inc()
		defer ActiveRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
	})
}
