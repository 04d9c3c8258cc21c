package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
)

// Metrics exports engine activity to Prometheus. It is both an engine hook and
// an exec notifier.
type Metrics struct {
	registry *prometheus.Registry
	events   prometheus.Counter
	halts    *prometheus.CounterVec
	vtime    prometheus.Gauge
}

// NewMetrics creates the collectors in a registry of their own.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vpsim_events_dispatched_total",
			Help: "Number of events handed to their handlers.",
		}),
		halts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vpsim_halts_total",
			Help: "Number of dispatch loop halts, by reason.",
		}, []string{"reason"}),
		vtime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vpsim_virtual_time",
			Help: "Virtual time of the last halt.",
		}),
	}

	m.registry.MustRegister(m.events, m.halts, m.vtime)

	return m
}

// Registry returns the registry that holds the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Func implements hooking.Hook.
func (m *Metrics) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosAfterEvent:
		m.events.Inc()
	case timing.HookPosHalt:
		reason, _ := ctx.Detail.(timing.HaltReason)
		m.halts.WithLabelValues(reason.String()).Inc()
	}
}

// Notify implements timing.Notifier.
func (m *Metrics) Notify(now timing.VTime) error {
	m.vtime.Set(float64(now))

	return nil
}
