// Package metrics exposes ledger activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/spirits-ledger/inventory"
)

const namespace = "spirits"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec

	mismatches    prometheus.Gauge
	discrepancies prometheus.Gauge
	lastCheck     prometheus.Gauge
}

var _ inventory.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent in ledger operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		mismatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consistency_mismatches",
			Help:      "Containers whose log does not sum to their net weight at the last check.",
		}),
		discrepancies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consistency_discrepancies",
			Help:      "Containers with any net weight or proof gallon drift at the last check.",
		}),
		lastCheck: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consistency_last_check_timestamp_seconds",
			Help:      "Unix time of the last consistency check.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations, m.duration, m.mismatches, m.discrepancies, m.lastCheck,
	)
	return m
}

// ObserveOperation implements inventory.Recorder.
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveConsistency records the result of a consistency check.
func (m *Metrics) ObserveConsistency(r inventory.ConsistencyReport) {
	m.mismatches.Set(float64(r.Mismatches()))
	m.discrepancies.Set(float64(len(r.Discrepancies)))
	m.lastCheck.Set(float64(r.CheckedAt.Unix()))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
