// Package metrics holds the Prometheus collectors shared by the engine, the
// live view and the HTTP server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op
type Metrics struct {
	transitions        *prometheus.CounterVec
	transitionFailures *prometheus.CounterVec
	refetches          prometheus.Counter
	refetchFailures    prometheus.Counter
	sessions           prometheus.Gauge
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shift_calendar_transitions_total",
			Help: "number of committed shift transitions",
		}, []string{"kind"}),
		transitionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shift_calendar_transition_failures_total",
			Help: "number of rejected or failed shift transitions",
		}, []string{"kind", "error"}),
		refetches: factory.NewCounter(prometheus.CounterOpts{
			Name: "shift_calendar_view_refetches_total",
			Help: "number of live view bulk fetches",
		}),
		refetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "shift_calendar_view_refetch_failures_total",
			Help: "number of live view bulk fetches that failed",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shift_calendar_live_sessions",
			Help: "number of connected live view sessions",
		}),
	}
}

func (m *Metrics) TransitionApplied(kind string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) TransitionFailed(kind, errKind string) {
	if m == nil {
		return
	}
	m.transitionFailures.WithLabelValues(kind, errKind).Inc()
}

func (m *Metrics) Refetched(err error) {
	if m == nil {
		return
	}
	m.refetches.Inc()
	if err != nil {
		m.refetchFailures.Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// Handler exposes the gatherer in the Prometheus text format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
