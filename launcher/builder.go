package launcher

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/simulation"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/tracing"
)

// Builder can be used to build a Launcher.
type Builder struct {
	platform       simulation.Platform
	async          bool
	signalStop     bool
	budget         time.Duration
	logger         *log.Logger
	tracerProvider trace.TracerProvider
	hooks          []hooking.Hook
	notifiers      []timing.Notifier
}

// MakeBuilder creates a new builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		budget: 10 * time.Millisecond,
	}
}

// WithPlatform sets the platform that builds the instance tree at Open.
func (b Builder) WithPlatform(p simulation.Platform) Builder {
	b.platform = p
	return b
}

// WithAsync makes Run, Step and StepUntil return as soon as the request is
// queued. Outcomes are collected with WaitStopped or Join.
func (b Builder) WithAsync() Builder {
	b.async = true
	return b
}

// WithSignalStop makes the launcher stop the engine on os.Interrupt.
func (b Builder) WithSignalStop() Builder {
	b.signalStop = true
	return b
}

// WithNotifierBudget sets how long a notifier may run before it is reported.
func (b Builder) WithNotifierBudget(budget time.Duration) Builder {
	b.budget = budget
	return b
}

// WithLogger sets the logger for engine and launcher diagnostics.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithTracerProvider sets the OpenTelemetry provider that receives a span per
// processed request. The global provider is used otherwise.
func (b Builder) WithTracerProvider(tp trace.TracerProvider) Builder {
	b.tracerProvider = tp
	return b
}

// WithHook attaches a hook to the engine when it is created.
func (b Builder) WithHook(h hooking.Hook) Builder {
	b.hooks = append(append([]hooking.Hook(nil), b.hooks...), h)
	return b
}

// WithNotifier registers an exec notifier when the engine is created.
func (b Builder) WithNotifier(n timing.Notifier) Builder {
	b.notifiers = append(append([]timing.Notifier(nil), b.notifiers...), n)
	return b
}

// Build creates the Launcher. Call Open before using it.
func (b Builder) Build() *Launcher {
	logger := b.logger
	if logger == nil {
		logger = log.New(os.Stderr, "vpsim: ", log.LstdFlags)
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	l := &Launcher{
		id:         xid.New().String(),
		platform:   b.platform,
		async:      b.async,
		signalStop: b.signalStop,
		budget:     b.budget,
		logger:     logger,
		tracer:     tp.Tracer("github.com/sarchlab/vpsim/launcher"),
		hooks:      b.hooks,
		notifiers:  b.notifiers,
		selector:   tracing.NewSelector(),
		engineDone: make(chan struct{}),
		signalDone: make(chan struct{}),
		signalQuit: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)

	return l
}
