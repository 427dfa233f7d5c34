package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	runTotal        *prometheus.CounterVec
	runDuration     prometheus.Histogram
	assignedTotal   prometheus.Counter
	unfilledTotal   prometheus.Counter
	runWarnings     prometheus.Histogram
	storeDuration   *prometheus.HistogramVec

	requestCount         uint64
	requestDurationTotal uint64
	runCount             uint64
	fatalRunCount        uint64
	assignedCount        uint64
	unfilledCount        uint64
}

// MetricsSnapshot is a JSON friendly summary of the collected metrics.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	RunsTotal                uint64    `json:"runsTotal"`
	FatalRuns                uint64    `json:"fatalRuns"`
	AssignmentsTotal         uint64    `json:"assignmentsTotal"`
	UnfilledTotal            uint64    `json:"unfilledTotal"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	runTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitution_runs_total",
		Help: "Assignment runs by outcome",
	}, []string{"outcome"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "substitution_run_duration_seconds",
		Help:    "Duration of assignment runs",
		Buckets: prometheus.DefBuckets,
	})

	assignedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "substitution_assignments_total",
		Help: "Substitute assignments made",
	})

	unfilledTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "substitution_unfilled_periods_total",
		Help: "Affected periods left without a substitute",
	})

	runWarnings := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "substitution_run_warnings",
		Help:    "Warnings emitted per run",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assignment_store_duration_seconds",
		Help:    "Duration of assignment store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, runTotal, runDuration, assignedTotal, unfilledTotal, runWarnings, storeDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		runTotal:        runTotal,
		runDuration:     runDuration,
		assignedTotal:   assignedTotal,
		unfilledTotal:   unfilledTotal,
		runWarnings:     runWarnings,
		storeDuration:   storeDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveRun records the outcome of one assignment run.
func (m *MetricsService) ObserveRun(outcome string, duration time.Duration, assigned, unfilled, warnings int) {
	if m == nil {
		return
	}
	m.runTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.assignedTotal.Add(float64(assigned))
	m.unfilledTotal.Add(float64(unfilled))
	m.runWarnings.Observe(float64(warnings))

	atomic.AddUint64(&m.runCount, 1)
	if outcome == "fatal" {
		atomic.AddUint64(&m.fatalRunCount, 1)
	}
	atomic.AddUint64(&m.assignedCount, uint64(assigned))
	atomic.AddUint64(&m.unfilledCount, uint64(unfilled))
}

// ObserveStore records assignment store timing.
func (m *MetricsService) ObserveStore(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Snapshot returns aggregated metrics suitable for a JSON endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		RunsTotal:                atomic.LoadUint64(&m.runCount),
		FatalRuns:                atomic.LoadUint64(&m.fatalRunCount),
		AssignmentsTotal:         atomic.LoadUint64(&m.assignedCount),
		UnfilledTotal:            atomic.LoadUint64(&m.unfilledCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
