package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "settlement_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "settlement_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	settlementsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement_layer",
			Subsystem: "engine",
			Name:      "settlements_initiated_total",
			Help:      "Total number of settlement initiations.",
		},
		[]string{"result"}, // created, replayed, rejected
	)

	settlementOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement_layer",
			Subsystem: "engine",
			Name:      "settlements_processed_total",
			Help:      "Total number of settlement processing attempts by outcome.",
		},
		[]string{"outcome"}, // completed, failed, skipped, compensated, compensation_failed
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "settlement_layer",
			Subsystem: "engine",
			Name:      "stage_duration_seconds",
			Help:      "Duration of burn/mint stages.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"stage"},
	)

	lockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "settlement_layer",
			Subsystem: "dlock",
			Name:      "contention_total",
			Help:      "Number of lock acquisitions refused because another holder owned the key.",
		},
	)

	workerSweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "settlement_layer",
			Subsystem: "workers",
			Name:      "sweeps_total",
			Help:      "Number of pending-settlement sweeps executed by the worker pool.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		settlementsInitiated,
		settlementOutcomes,
		stageDuration,
		lockContention,
		workerSweeps,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordInitiation counts one settlement initiation by result.
func RecordInitiation(result string) {
	settlementsInitiated.WithLabelValues(result).Inc()
}

// RecordOutcome counts one processing attempt by outcome.
func RecordOutcome(outcome string) {
	settlementOutcomes.WithLabelValues(outcome).Inc()
}

// RecordStage records the duration of one burn or mint stage.
func RecordStage(stage string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLockContention counts one refused lock acquisition.
func RecordLockContention() {
	lockContention.Inc()
}

// RecordWorkerSweep counts one worker-pool sweep.
func RecordWorkerSweep() {
	workerSweeps.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "settlements" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/settlements"
	}
	if len(parts) == 2 {
		return "/settlements/:id"
	}
	return "/settlements/:id/" + parts[2]
}
