package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OperationMetrics records file operation outcomes at the gateway.
// A nil *OperationMetrics is a valid no-op collector.
type OperationMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewOperationMetrics creates a Prometheus-backed OperationMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewOperationMetrics() *OperationMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &OperationMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftfs_operations_total",
				Help: "Total number of file operations by procedure, share, and status",
			},
			[]string{"procedure", "share", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "driftfs_operation_duration_milliseconds",
				Help: "Duration of file operations in milliseconds",
				Buckets: []float64{
					1,
					5,
					10,
					50,
					100,
					500,
					1000,
					5000,
				},
			},
			[]string{"procedure"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftfs_bytes_transferred_total",
				Help: "Total bytes transferred by direction",
			},
			[]string{"direction"},
		),
	}
}

// ObserveOperation records one completed operation.
func (m *OperationMetrics) ObserveOperation(procedure, share, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(procedure, share, status).Inc()
	m.operationDuration.WithLabelValues(procedure).Observe(float64(d.Microseconds()) / 1000.0)
}

// ObserveBytes records bytes moved in the given direction ("read" or
// "write").
func (m *OperationMetrics) ObserveBytes(direction string, n int64) {
	if m == nil {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(n))
}
