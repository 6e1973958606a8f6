// Package metrics exposes Prometheus collectors for the harvest service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestListingPagesTotal   *prometheus.CounterVec
	harvestJobsEnqueuedTotal   prometheus.Counter
	harvestJobsSkippedTotal    prometheus.Counter
	workerJobOutcomesTotal     *prometheus.CounterVec
	workerActiveWorkers        prometheus.Gauge
	workerEmptyPollsTotal      prometheus.Counter
	promotionsTotal            prometheus.Counter
	staleRecordedTotal         prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestListingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_listing_pages_total",
				Help: "Total listing pages fetched, labeled by tier and outcome.",
			},
			[]string{"tier", "outcome"},
		)

		harvestJobsEnqueuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_jobs_enqueued_total",
				Help: "Total detail jobs inserted into the queue.",
			},
		)

		harvestJobsSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_jobs_skipped_total",
				Help: "Total detail jobs skipped as already known.",
			},
		)

		workerJobOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_job_outcomes_total",
				Help: "Total processed jobs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		workerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		workerEmptyPollsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "worker_empty_polls_total",
				Help: "Total claim attempts that found no eligible job.",
			},
		)

		promotionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "promotions_total",
				Help: "Total staging rows promoted to the product tables.",
			},
		)

		staleRecordedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stale_recorded_total",
				Help: "Total stale observations recorded against keywords.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveListingPage increments the listing page counter.
func ObserveListingPage(tier int, outcome string) {
	harvestListingPagesTotal.WithLabelValues(strconv.Itoa(tier), outcome).Inc()
}

// AddEnqueued records the result of one enqueue batch.
func AddEnqueued(inserted, skipped int) {
	if inserted > 0 {
		harvestJobsEnqueuedTotal.Add(float64(inserted))
	}
	if skipped > 0 {
		harvestJobsSkippedTotal.Add(float64(skipped))
	}
}

// ObserveJobOutcome increments the outcome counter for the given status.
func ObserveJobOutcome(status string) {
	workerJobOutcomesTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	workerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	workerActiveWorkers.Dec()
}

// ObserveEmptyPoll increments the empty claim counter.
func ObserveEmptyPoll() {
	workerEmptyPollsTotal.Inc()
}

// ObservePromotion increments the promotions counter.
func ObservePromotion() {
	promotionsTotal.Inc()
}

// ObserveStaleRecorded increments the stale observation counter.
func ObserveStaleRecorded() {
	staleRecordedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
