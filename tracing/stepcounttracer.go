package tracing

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
)

type named interface {
	Name() string
}

// StepCountTracer counts the events each handler processes and the wall-clock
// time spent in the handler. Handlers are identified by their name, or by
// their type when they have none.
type StepCountTracer struct {
	lock         sync.Mutex
	stepNames    []string
	stepCount    map[string]uint64
	payloadCount map[string]uint64
	busyTime     map[string]time.Duration

	inflight      *timing.Event
	inflightStart time.Time
}

// NewStepCountTracer creates a new StepCountTracer
func NewStepCountTracer() *StepCountTracer {
	return &StepCountTracer{
		stepCount:    make(map[string]uint64),
		payloadCount: make(map[string]uint64),
		busyTime:     make(map[string]time.Duration),
	}
}

// Func implements hooking.Hook.
func (t *StepCountTracer) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(*timing.Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case timing.HookPosBeforeEvent:
		t.lock.Lock()
		t.inflight = evt
		t.inflightStart = time.Now()
		t.lock.Unlock()
	case timing.HookPosAfterEvent:
		t.endStep(evt)
	}
}

func (t *StepCountTracer) endStep(evt *timing.Event) {
	name := handlerName(evt.Handler)

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.stepCount[name]; !ok {
		t.stepNames = append(t.stepNames, name)
	}

	t.stepCount[name]++
	t.payloadCount[payloadName(evt.Payload)]++

	if t.inflight == evt {
		t.busyTime[name] += time.Since(t.inflightStart)
		t.inflight = nil
	}
}

// GetStepNames returns the handler names in the order they were first seen.
func (t *StepCountTracer) GetStepNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.stepNames...)
}

// GetStepCount returns the number of events handled by the named handler.
func (t *StepCountTracer) GetStepCount(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.stepCount[name]
}

// GetPayloadCount returns the number of events carrying a payload of the given
// type, as printed by %T.
func (t *StepCountTracer) GetPayloadCount(typeName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.payloadCount[typeName]
}

// BusyTime returns the wall-clock time the named handler spent on events.
func (t *StepCountTracer) BusyTime(name string) time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime[name]
}

func handlerName(h timing.Handler) string {
	if n, ok := h.(named); ok {
		return n.Name()
	}

	if h == nil {
		return "<nil>"
	}

	return reflect.TypeOf(h).String()
}

func payloadName(p any) string {
	return fmt.Sprintf("%T", p)
}
