package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/driftlab/driftfs/pkg/impersonate"
)

// impersonationMetrics is the Prometheus implementation of
// impersonate.Metrics.
type impersonationMetrics struct {
	switchesTotal   *prometheus.CounterVec
	restoreFailures prometheus.Counter
	slotWait        prometheus.Histogram
}

// NewImpersonationMetrics creates a Prometheus-backed impersonate.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// the switcher treats as zero-overhead no-op collection.
func NewImpersonationMetrics() impersonate.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &impersonationMetrics{
		switchesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftfs_impersonation_switches_total",
				Help: "Total number of filesystem identity switches by status",
			},
			[]string{"status"},
		),
		restoreFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "driftfs_impersonation_restore_failures_total",
				Help: "Total number of failed identity restores during guard release",
			},
		),
		slotWait: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "driftfs_impersonation_slot_wait_milliseconds",
				Help: "Time spent waiting for the process-wide identity slot in milliseconds",
				Buckets: []float64{
					0.1, // sub-millisecond, uncontended
					1,
					5,
					10,
					50,
					100, // heavy contention
					500,
					1000,
				},
			},
		),
	}
}

func (m *impersonationMetrics) SwitchApplied() {
	m.switchesTotal.WithLabelValues("applied").Inc()
}

func (m *impersonationMetrics) SwitchFailed() {
	m.switchesTotal.WithLabelValues("failed").Inc()
}

func (m *impersonationMetrics) RestoreFailed() {
	m.restoreFailures.Inc()
}

func (m *impersonationMetrics) SlotWaitDuration(d time.Duration) {
	m.slotWait.Observe(float64(d.Microseconds()) / 1000.0)
}
