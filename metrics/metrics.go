// Package metrics exposes lifecycle activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/castellan/castellan/core"
)

// Lifecycle records module lifecycle outcomes. It satisfies the lifecycle
// manager's metrics sink interface.
type Lifecycle struct {
	starts   *prometheus.CounterVec
	stops    *prometheus.CounterVec
	failures *prometheus.CounterVec
	states   *prometheus.GaugeVec
}

// NewLifecycle creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer for the usual global registry.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	l := &Lifecycle{
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castellan_module_starts_total",
			Help: "Successful module starts.",
		}, []string{"module"}),
		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castellan_module_stops_total",
			Help: "Successful module stops.",
		}, []string{"module"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castellan_module_failures_total",
			Help: "Failed lifecycle operations, by operation.",
		}, []string{"module", "op"}),
		states: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "castellan_module_state",
			Help: "Current lifecycle state per module (1 for the active state).",
		}, []string{"module", "state"}),
	}
	reg.MustRegister(l.starts, l.stops, l.failures, l.states)
	return l
}

func (l *Lifecycle) ModuleStarted(name string) {
	l.starts.WithLabelValues(name).Inc()
}

func (l *Lifecycle) ModuleStopped(name string) {
	l.stops.WithLabelValues(name).Inc()
}

func (l *Lifecycle) ModuleFailed(name, op string) {
	l.failures.WithLabelValues(name, op).Inc()
}

func (l *Lifecycle) StateChanged(name string, from, to core.State) {
	l.states.WithLabelValues(name, string(from)).Set(0)
	l.states.WithLabelValues(name, string(to)).Set(1)
}

// ModuleRemoved clears the state gauge series for a module that no longer
// has an instance.
func (l *Lifecycle) ModuleRemoved(name string) {
	l.states.DeletePartialMatch(prometheus.Labels{"module": name})
}
