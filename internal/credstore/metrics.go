package credstore

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolveTotal        *prometheus.CounterVec
	saveTotal           *prometheus.CounterVec
	durableErrorsTotal  *prometheus.CounterVec
	durableDuration     *prometheus.HistogramVec
	repairWritesTotal   *prometheus.CounterVec
	tenantMismatchTotal *prometheus.CounterVec
	guardClearedTotal   prometheus.Counter

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics records resolver, writer and guard events. Methods are no-ops
// until InitMetrics has run, so library callers that never enable the
// metrics endpoint pay nothing.
type Metrics struct{}

// NewMetrics creates a Metrics instance. Registration happens separately
// via InitMetrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers all Prometheus metrics. Call once at startup when
// metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		resolveTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credsync_resolve_total",
				Help: "Total number of credential resolutions by outcome and source tier",
			},
			[]string{"outcome", "source"},
		)

		saveTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credsync_save_total",
				Help: "Total number of credential saves by outcome",
			},
			[]string{"outcome"},
		)

		durableErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credsync_durable_errors_total",
				Help: "Total number of durable store failures by backend and operation",
			},
			[]string{"backend", "operation"},
		)

		durableDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credsync_durable_duration_seconds",
				Help:    "Duration of durable store operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend", "operation"},
		)

		repairWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credsync_repair_writes_total",
				Help: "Total number of cache tier repairs performed on read",
			},
			[]string{"tier"},
		)

		tenantMismatchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credsync_tenant_mismatch_total",
				Help: "Total number of tenant-mismatched cache entries skipped during resolution",
			},
			[]string{"tier"},
		)

		guardClearedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credsync_guard_cleared_total",
				Help: "Total number of cache entries purged by the tenant guard",
			},
		)

		metricsRegistered = true
	})
}

// RecordResolve records a resolution outcome.
func (m *Metrics) RecordResolve(outcome, source string) {
	if !metricsRegistered || resolveTotal == nil {
		return
	}
	resolveTotal.WithLabelValues(outcome, source).Inc()
}

// RecordSave records a save outcome.
func (m *Metrics) RecordSave(outcome string) {
	if !metricsRegistered || saveTotal == nil {
		return
	}
	saveTotal.WithLabelValues(outcome).Inc()
}

// RecordDurableError records a durable store failure.
func (m *Metrics) RecordDurableError(backend, operation string) {
	if !metricsRegistered || durableErrorsTotal == nil {
		return
	}
	durableErrorsTotal.WithLabelValues(backend, operation).Inc()
}

// RecordDurableDuration records how long a durable store call took.
func (m *Metrics) RecordDurableDuration(backend, operation string, seconds float64) {
	if !metricsRegistered || durableDuration == nil {
		return
	}
	durableDuration.WithLabelValues(backend, operation).Observe(seconds)
}

// RecordRepairWrite records a cache tier repair.
func (m *Metrics) RecordRepairWrite(tierName string) {
	if !metricsRegistered || repairWritesTotal == nil {
		return
	}
	repairWritesTotal.WithLabelValues(tierName).Inc()
}

// RecordTenantMismatch records a mismatched cache entry found during
// resolution.
func (m *Metrics) RecordTenantMismatch(tierName string) {
	if !metricsRegistered || tenantMismatchTotal == nil {
		return
	}
	tenantMismatchTotal.WithLabelValues(tierName).Inc()
}

// RecordGuardCleared records entries purged by the tenant guard.
func (m *Metrics) RecordGuardCleared(count int) {
	if !metricsRegistered || guardClearedTotal == nil {
		return
	}
	guardClearedTotal.Add(float64(count))
}
