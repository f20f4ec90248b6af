// Package metrics exports watcher activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mail_idler"

// Metrics implements idler.Recorder on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles     *prometheus.CounterVec
	relocated  prometheus.Counter
	skipped    prometheus.Counter
	reconnects prometheus.Counter
	loopErrors prometheus.Counter
	waiting    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cycles_total",
			Help:      "Fetch cycles by result.",
		}, []string{"result"}),
		relocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relocated_total",
			Help:      "Messages moved to the destination folder.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_skipped_total",
			Help:      "Messages left in the source folder after a cycle.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connections rebuilt after a failure.",
		}),
		loopErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_errors_total",
			Help:      "Errors recovered inside the wait loop.",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting",
			Help:      "1 while an IDLE command is outstanding.",
		}),
	}

	m.registry.MustRegister(m.cycles, m.relocated, m.skipped, m.reconnects, m.loopErrors, m.waiting)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) CycleCompleted(relocated, skipped int) {
	m.cycles.WithLabelValues("ok").Inc()
	m.relocated.Add(float64(relocated))
	m.skipped.Add(float64(skipped))
}

// CycleFailed counts messages moved before the error as relocated.
func (m *Metrics) CycleFailed(relocated int) {
	m.cycles.WithLabelValues("error").Inc()
	m.relocated.Add(float64(relocated))
}

func (m *Metrics) Reconnect() { m.reconnects.Inc() }

func (m *Metrics) LoopError() { m.loopErrors.Inc() }

func (m *Metrics) WaitStateChanged(waiting bool) {
	if waiting {
		m.waiting.Set(1)
		return
	}
	m.waiting.Set(0)
}
