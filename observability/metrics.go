package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type unitMetrics struct {
	calls   *prometheus.CounterVec
	errors  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var (
	unitMetricsOnce sync.Once
	unitRegistry    *unitMetrics
)

// UnitMetrics returns the lazily-initialised registry used to record unit
// call activity.
func UnitMetrics() *unitMetrics {
	unitMetricsOnce.Do(func() {
		unitRegistry = &unitMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mintgate",
				Subsystem: "unit",
				Name:      "calls_total",
				Help:      "Total unit calls segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mintgate",
				Subsystem: "unit",
				Name:      "errors_total",
				Help:      "Total unit call failures segmented by module and method.",
			}, []string{"module", "method"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "mintgate",
				Subsystem: "unit",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for unit call handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			unitRegistry.calls,
			unitRegistry.errors,
			unitRegistry.latency,
		)
	})
	return unitRegistry
}

// Observe records one unit call outcome.
func (m *unitMetrics) Observe(module, method string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(module, method).Inc()
	}
	m.calls.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}
