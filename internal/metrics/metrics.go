package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, route, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, route, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RecordsWritten counts successful store writes by operation (create, update, delete).
	RecordsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irrigation_records_written_total",
			Help: "Total number of irrigation record writes by operation",
		},
		[]string{"op"},
	)

	// StatusTransitions counts status changes applied by the sweeper, by new status.
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irrigation_status_transitions_total",
			Help: "Total number of irrigation status transitions applied by the sweeper",
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, RecordsWritten, StatusTransitions)
	})
}

// RecordRequest records duration and count for an HTTP request. route should be the
// matched route pattern (e.g. /irrigation/{id}) so record ids do not explode cardinality.
func RecordRequest(method, route string, statusCode int, durationSeconds float64) {
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, route, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, route, status).Inc()
}

// IncRecordsWritten increments the write counter for op (create, update, delete).
func IncRecordsWritten(op string) {
	RecordsWritten.WithLabelValues(op).Inc()
}

// IncStatusTransition increments the transition counter for the new status.
func IncStatusTransition(status string) {
	StatusTransitions.WithLabelValues(status).Inc()
}
