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

const namespace = "kybernus"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Device flow metrics
	deviceCodesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "codes_issued_total",
			Help:      "Total number of device/user code pairs issued",
		},
	)

	devicePolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "polls_total",
			Help:      "Device poll requests by outcome",
		},
		[]string{"outcome"},
	)

	deviceCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "completions_total",
			Help:      "Device completion attempts by outcome",
		},
		[]string{"outcome"},
	)

	// License metrics
	licenseValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "license",
			Name:      "validations_total",
			Help:      "License validations by account status",
		},
		[]string{"status", "valid"},
	)

	quotaConsumptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "license",
			Name:      "consumptions_total",
			Help:      "Quota consumption attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Billing metrics
	billingWebhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhooks_total",
			Help:      "Billing webhook deliveries by event type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// Rate limiting
	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Requests rejected by a rate limiter, by scope",
		},
		[]string{"scope"},
	)

	httpPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "panics_total",
			Help:      "Handler panics recovered",
		},
	)

	// Maintenance jobs
	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Maintenance job runs by type and status",
		},
		[]string{"type", "status"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDeviceCodeIssued counts an issued device code pair
func RecordDeviceCodeIssued() {
	deviceCodesIssued.Inc()
}

// RecordDevicePoll records a poll outcome (pending, complete, expired, slow_down)
func RecordDevicePoll(outcome string) {
	devicePolls.WithLabelValues(outcome).Inc()
}

// RecordDeviceCompletion records a completion outcome
func RecordDeviceCompletion(outcome string) {
	deviceCompletions.WithLabelValues(outcome).Inc()
}

// RecordValidation records a license validation result
func RecordValidation(status string, valid bool) {
	licenseValidations.WithLabelValues(status, strconv.FormatBool(valid)).Inc()
}

// RecordConsumption records a quota consumption outcome
func RecordConsumption(outcome string) {
	quotaConsumptions.WithLabelValues(outcome).Inc()
}

// RecordWebhook records a billing webhook outcome
func RecordWebhook(eventType, outcome string) {
	billingWebhooks.WithLabelValues(eventType, outcome).Inc()
}

// RecordRateLimited counts a rate limit rejection
func RecordRateLimited(scope string) {
	rateLimitRejections.WithLabelValues(scope).Inc()
}

// RecordPanic counts a recovered handler panic
func RecordPanic() {
	httpPanics.Inc()
}

// RecordJobRun counts a finished maintenance job
func RecordJobRun(jobType, status string) {
	jobRuns.WithLabelValues(jobType, status).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, start time.Time) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
