package timing

import (
	"fmt"
	"log"
	"math"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sarchlab/vpsim/sim/hooking"
)

// HaltReason tells why a dispatch loop returned.
type HaltReason int

// The reasons a dispatch loop can stop.
const (
	HaltStopped HaltReason = iota
	HaltBoundary
	HaltFinished
	HaltFatal
)

func (r HaltReason) String() string {
	switch r {
	case HaltStopped:
		return "stopped"
	case HaltBoundary:
		return "boundary"
	case HaltFinished:
		return "finished"
	case HaltFatal:
		return "fatal"
	default:
		return fmt.Sprintf("HaltReason(%d)", int(r))
	}
}

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	*hooking.HookableBase

	timeLock sync.RWMutex
	now      VTime
	queue    *EventQueue

	stopRequested atomic.Bool
	quitRequested atomic.Bool

	stateLock   sync.Mutex
	pendingExit int
	finished    bool
	exitCode    int

	singleRunLock sync.Mutex

	notifiers             *NotifierRegistry
	simulationEndHandlers []SimulationEndHandler
	logger                *log.Logger
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	return NewSerialEngineWithLogger(log.New(os.Stderr, "vpsim: ", log.LstdFlags))
}

// NewSerialEngineWithLogger creates a SerialEngine that reports handler and
// notifier failures to logger.
func NewSerialEngineWithLogger(logger *log.Logger) *SerialEngine {
	return &SerialEngine{
		HookableBase: hooking.NewHookableBase(),
		queue:        NewEventQueue(),
		notifiers:    NewNotifierRegistry(logger),
		logger:       logger,
	}
}

// SetNotifierBudget bounds how long a notifier may run before it is reported.
func (e *SerialEngine) SetNotifierBudget(budget time.Duration) {
	e.notifiers.SetBudget(budget)
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt *Event) error {
	now := e.readNow()
	if evt.Time < now {
		return errors.Wrapf(ErrInvalidSchedule,
			"event %s @ %d, now %d", reflect.TypeOf(evt.Payload), evt.Time, now)
	}

	return e.queue.Push(evt)
}

// ScheduleEvent schedules payload for handler delay units from now and
// returns the event as a handle for Cancel.
func (e *SerialEngine) ScheduleEvent(
	handler Handler,
	delay VTime,
	payload any,
) (*Event, error) {
	if delay < 0 {
		return nil, errors.Wrapf(ErrInvalidSchedule, "negative delay %d", delay)
	}

	evt := NewEvent(e.readNow()+delay, handler, payload)

	err := e.Schedule(evt)
	if err != nil {
		return nil, err
	}

	return evt, nil
}

// Cancel removes a pending event.
func (e *SerialEngine) Cancel(evt *Event) {
	e.queue.Remove(evt)
}

// Reschedule moves an event to time t. An event that is not pending is simply
// scheduled.
func (e *SerialEngine) Reschedule(evt *Event, t VTime) error {
	now := e.readNow()
	if t < now {
		return errors.Wrapf(ErrInvalidSchedule,
			"reschedule to %d, now %d", t, now)
	}

	e.queue.Remove(evt)
	evt.Time = t

	return e.queue.Push(evt)
}

// Pending returns the number of events waiting in the queue.
func (e *SerialEngine) Pending() int {
	return e.queue.Len()
}

func (e *SerialEngine) readNow() VTime {
	e.timeLock.RLock()
	t := e.now
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTime) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// Run processes all the events scheduled in the SerialEngine
func (e *SerialEngine) Run() (VTime, error) {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	if done, _ := e.Finished(); done {
		return e.readNow(), nil
	}

	reason, err := e.dispatch(TimeUnspecified, false)

	return e.halt(reason), err
}

// Step processes events for duration time units.
func (e *SerialEngine) Step(duration VTime) (VTime, error) {
	if duration <= 0 {
		return e.readNow(), errors.Wrapf(ErrInvalidDuration,
			"step of %d", duration)
	}

	now := e.readNow()
	target := VTime(math.MaxInt64)
	if duration <= target-now {
		target = now + duration
	}

	return e.StepUntil(target)
}

// StepUntil processes the events due at or before timestamp. The clock ends
// at timestamp unless a stop or a quit interrupts the step.
func (e *SerialEngine) StepUntil(timestamp VTime) (VTime, error) {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	now := e.readNow()
	if timestamp < now {
		return now, errors.Wrapf(ErrInvalidDuration,
			"step until %d, now %d", timestamp, now)
	}

	if done, _ := e.Finished(); done {
		return now, nil
	}

	reason, err := e.dispatch(timestamp, true)
	if reason == HaltBoundary {
		e.writeNow(timestamp)
	}

	return e.halt(reason), err
}

func (e *SerialEngine) dispatch(limit VTime, bounded bool) (HaltReason, error) {
	var firstErr error

	for {
		if e.quitRequested.Load() {
			return HaltFinished, firstErr
		}

		next, ok := e.queue.PeekTime()

		if bounded && (!ok || next > limit) {
			return HaltBoundary, firstErr
		}

		if !ok {
			return HaltFinished, firstErr
		}

		if e.stopRequested.Load() {
			return HaltStopped, firstErr
		}

		err := e.dispatchOne()
		if err == nil {
			continue
		}

		if errors.Is(err, ErrFatal) {
			e.setExitCode(1)
			return HaltFatal, err
		}

		e.logger.Print(err)

		if firstErr == nil {
			firstErr = err
		}
	}
}

func (e *SerialEngine) dispatchOne() error {
	evt := e.queue.Pop()

	now := e.readNow()
	if evt.Time < now {
		panic(fmt.Sprintf(
			"timing: cannot run event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt.Payload), evt.Time, now,
		))
	}

	e.writeNow(evt.Time)

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := e.handle(evt)

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return err
}

func (e *SerialEngine) handle(evt *Event) (err error) {
	if evt.Handler == nil {
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(ErrFatal, "handler panicked on %s @ %d: %v",
				reflect.TypeOf(evt.Payload), evt.Time, p)
		}
	}()

	err = evt.Handler.Handle(evt)
	if err != nil && !errors.Is(err, ErrFatal) {
		err = errors.Wrapf(err, "event %s @ %d",
			reflect.TypeOf(evt.Payload), evt.Time)
	}

	return err
}

func (e *SerialEngine) halt(reason HaltReason) VTime {
	e.stopRequested.Store(false)

	if reason == HaltFinished || reason == HaltFatal {
		e.finish()
	}

	now := e.readNow()

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    HookPosHalt,
		Item:   now,
		Detail: reason,
	})

	e.Update(now)

	return now
}

func (e *SerialEngine) setExitCode(code int) {
	e.stateLock.Lock()
	e.pendingExit = code
	e.stateLock.Unlock()
}

func (e *SerialEngine) finish() {
	e.stateLock.Lock()
	if e.finished {
		e.stateLock.Unlock()
		return
	}

	e.finished = true
	e.exitCode = e.pendingExit
	code := e.exitCode
	handlers := e.simulationEndHandlers
	e.stateLock.Unlock()

	now := e.readNow()
	for _, h := range handlers {
		h.Handle(now, code)
	}
}

// Stop requests the dispatch loop to halt after the event in flight and
// returns the current time.
func (e *SerialEngine) Stop() VTime {
	e.stopRequested.Store(true)

	return e.readNow()
}

// ClearStop drops a pending stop request.
func (e *SerialEngine) ClearStop() {
	e.stopRequested.Store(false)
}

// Quit marks the simulated program as exited. Dispatch halts at the next safe
// point and the engine is finished from then on.
func (e *SerialEngine) Quit(exitCode int) {
	e.setExitCode(exitCode)
	e.quitRequested.Store(true)
}

// Finished reports whether the simulated program has exited, and its exit
// code.
func (e *SerialEngine) Finished() (bool, int) {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()

	return e.finished, e.exitCode
}

// CurrentTime returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) CurrentTime() VTime {
	return e.readNow()
}

// RegisterNotifier appends a notifier to the registry.
func (e *SerialEngine) RegisterNotifier(n Notifier) {
	e.notifiers.Register(n)
}

// RegisterSimulationEndHandler registers a handler that runs once when the
// engine finishes.
func (e *SerialEngine) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	e.stateLock.Lock()
	e.simulationEndHandlers = append(e.simulationEndHandlers, handler)
	e.stateLock.Unlock()
}

// Update calls the registered notifiers with now.
func (e *SerialEngine) Update(now VTime) {
	e.notifiers.Update(now)
}

var _ Engine = (*SerialEngine)(nil)
