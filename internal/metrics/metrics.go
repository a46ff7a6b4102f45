// Package metrics exposes the Prometheus instrumentation for the device
// daemon. Everything registers on a dedicated registry so tests can build
// isolated instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every instrument the daemon records.
type Metrics struct {
	Registry *prometheus.Registry

	FetchesTotal    *prometheus.CounterVec
	FetchErrors     *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	CyclesTotal     prometheus.Counter
	CycleFailures   prometheus.Counter
	RefreshesTotal  *prometheus.CounterVec
	ConnectionState prometheus.Gauge
	ChangeFraction  prometheus.Gauge
}

// New builds a fresh metrics set on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "candles",
			Name:      "fetches_total",
			Help:      "Candle fetch attempts by exchange and outcome.",
		}, []string{"exchange", "outcome"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "candles",
			Name:      "fetch_errors_total",
			Help:      "Candle fetch failures by exchange and operation.",
		}, []string{"exchange", "op"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "candles",
			Name:      "fetch_duration_seconds",
			Help:      "Candle fetch latency by exchange.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"exchange"}),
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "candles",
			Name:      "cycles_total",
			Help:      "Completed refresh cycles.",
		}),
		CycleFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "candles",
			Name:      "cycle_failures_total",
			Help:      "Cycles in which every chart fetch failed.",
		}),
		RefreshesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "candles",
			Name:      "display_refreshes_total",
			Help:      "Physical display pushes by waveform kind.",
		}, []string{"kind"}),
		ConnectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "candles",
			Name:      "connection_state",
			Help:      "Resilience state machine state as an enum value.",
		}),
		ChangeFraction: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "candles",
			Name:      "display_change_fraction",
			Help:      "Changed-pixel fraction of the most recent push.",
		}),
	}
}
