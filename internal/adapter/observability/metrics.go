// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
// The package provides comprehensive observability features
// including metrics collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// TasksSubmittedTotal counts tasks accepted at the submission endpoint.
	TasksSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_submitted_total",
			Help: "Total number of tasks accepted for execution",
		},
	)
	// TasksProcessing is a gauge of tasks currently claimed by a worker.
	TasksProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasks_processing",
			Help: "Number of tasks currently being executed by a worker",
		},
	)
	// TasksCompletedTotal counts tasks that reached the completed state.
	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_completed_total",
			Help: "Total number of tasks completed successfully",
		},
	)
	// TasksFailedTotal counts tasks that reached the failed state, labeled by category.
	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_failed_total",
			Help: "Total number of tasks that failed, by error category",
		},
		[]string{"category"},
	)
	// TaskExecutionDuration records the wall-clock time a worker spends executing a circuit.
	TaskExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "task_execution_duration_seconds",
			Help:    "Time spent executing a circuit on the simulator backend",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)
	// BrokerPublishFailuresTotal counts publish attempts that could not reach the broker.
	BrokerPublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_publish_failures_total",
			Help: "Total number of task publish attempts that failed",
		},
	)
	// BrokerRedeliveriesTotal counts deliveries the broker marked as a redelivery.
	BrokerRedeliveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_redeliveries_total",
			Help: "Total number of consumed messages flagged as redelivered",
		},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(TasksSubmittedTotal)
	prometheus.MustRegister(TasksProcessing)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(TaskExecutionDuration)
	prometheus.MustRegister(BrokerPublishFailuresTotal)
	prometheus.MustRegister(BrokerRedeliveriesTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// SubmitTask records a task accepted for execution.
func SubmitTask() {
	TasksSubmittedTotal.Inc()
}

// StartProcessingTask increments the processing gauge when a worker claims a task.
func StartProcessingTask() {
	TasksProcessing.Inc()
}

// CompleteTask marks a task complete by decrementing the processing gauge and
// incrementing the completed counter.
func CompleteTask() {
	TasksProcessing.Dec()
	TasksCompletedTotal.Inc()
}

// FailTask marks a task failed by decrementing the processing gauge and
// incrementing the failed counter for category.
func FailTask(category string) {
	TasksProcessing.Dec()
	TasksFailedTotal.WithLabelValues(category).Inc()
}

// ObserveTaskExecution records the duration of a single simulator execution.
func ObserveTaskExecution(d time.Duration) {
	TaskExecutionDuration.Observe(d.Seconds())
}

// RecordBrokerPublishFailure increments the publish-failure counter.
func RecordBrokerPublishFailure() {
	BrokerPublishFailuresTotal.Inc()
}

// RecordBrokerRedelivery increments the redelivery counter.
func RecordBrokerRedelivery() {
	BrokerRedeliveriesTotal.Inc()
}
