// Package launcher is the control plane of a simulation. It owns the engine,
// runs it on a dedicated goroutine, and serializes run and step requests
// coming from any number of external controllers.
package launcher

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/simulation"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/tracing"
)

// A Launcher brings up a platform and drives its engine.
//
// At most one run or step request is in flight at any time. The slot is
// reserved when the request is queued, so a second request is rejected with
// ErrEngineBusy until the first one completes.
type Launcher struct {
	id         string
	platform   simulation.Platform
	async      bool
	signalStop bool
	budget     time.Duration
	logger     *log.Logger
	tracer     trace.Tracer
	hooks      []hooking.Hook
	notifiers  []timing.Notifier

	engine   *timing.SerialEngine
	tree     *simulation.Tree
	selector *tracing.Selector
	vcd      *tracing.VCDTracer

	mu       sync.Mutex
	cond     *sync.Cond
	opened   bool
	started  bool
	closed   bool
	state    State
	requests []*request
	inFlight *request
	last     *request
	exitCode int
	user     User

	engineDone chan struct{}
	signalDone chan struct{}
	signalQuit chan struct{}
}

// ID returns the unique ID of the launcher.
func (l *Launcher) ID() string {
	return l.id
}

// Open creates the engine and builds the platform into a fresh instance tree.
func (l *Launcher) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrEngineClosed
	}

	if l.opened {
		return ErrAlreadyOpen
	}

	engine := timing.NewSerialEngineWithLogger(l.logger)
	engine.SetNotifierBudget(l.budget)

	tree := simulation.NewTree()
	vcd := tracing.NewVCDTracer(tree, l.selector)
	engine.AcceptHook(vcd)

	for _, h := range l.hooks {
		engine.AcceptHook(h)
	}

	for _, n := range l.notifiers {
		engine.RegisterNotifier(n)
	}

	if l.platform != nil {
		if err := l.platform.Build(engine, tree); err != nil {
			return errors.Wrap(err, "failed to build platform")
		}
	}

	l.engine = engine
	l.tree = tree
	l.vcd = vcd
	l.opened = true
	l.state = StateIdle

	return nil
}

// Bind attaches the external controller. Only one user can be bound at a
// time.
func (l *Launcher) Bind(user User) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrEngineClosed
	}

	if l.user != nil {
		return ErrAlreadyBound
	}

	l.user = user

	return nil
}

// Unbind detaches the current user.
func (l *Launcher) Unbind() {
	l.mu.Lock()
	l.user = nil
	l.mu.Unlock()
}

// Start spawns the engine goroutine, and the signal goroutine if signal stop
// is enabled.
func (l *Launcher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrEngineClosed
	}

	if !l.opened {
		return ErrNotOpen
	}

	if l.started {
		return ErrAlreadyStarted
	}

	l.started = true

	go l.engineRoutine()

	if l.signalStop {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt)
		go l.signalRoutine(sigs)
	} else {
		close(l.signalDone)
	}

	return nil
}

// Run lets the engine dispatch until it is stopped or the program exits. In
// async mode it returns as soon as the request is queued.
func (l *Launcher) Run() error {
	req, err := l.submit(&request{kind: reqRun, time: timing.TimeUnspecified})
	if err != nil {
		return err
	}

	if l.async {
		return nil
	}

	_, err = l.wait(req)

	return err
}

// RunAsync queues a run and returns once the request holds the single-flight
// slot, whatever the launcher mode. The outcome is collected with
// WaitStopped or Join.
func (l *Launcher) RunAsync() error {
	_, err := l.submit(&request{kind: reqRun, time: timing.TimeUnspecified})
	return err
}

// Step advances the simulation by duration. It returns the time at which the
// engine halted, or TimeUnspecified in async mode.
func (l *Launcher) Step(duration timing.VTime) (timing.VTime, error) {
	if duration <= 0 {
		return timing.TimeUnspecified, errors.Wrapf(
			ErrInvalidDuration, "step of %d", duration)
	}

	return l.runUntil(&request{
		kind:     reqRunUntil,
		time:     duration,
		relative: true,
	})
}

// StepUntil advances the simulation up to and including timestamp. A
// timestamp in the past is reported as ErrInvalidDuration through the
// request result.
func (l *Launcher) StepUntil(timestamp timing.VTime) (timing.VTime, error) {
	return l.runUntil(&request{kind: reqRunUntil, time: timestamp})
}

func (l *Launcher) runUntil(req *request) (timing.VTime, error) {
	req, err := l.submit(req)
	if err != nil {
		return timing.TimeUnspecified, err
	}

	if l.async {
		return timing.TimeUnspecified, nil
	}

	return l.wait(req)
}

// Stop asks the engine to halt at the next event boundary and waits until the
// in-flight request completes. With nothing in flight it returns the current
// time.
func (l *Launcher) Stop() (timing.VTime, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkOpen(); err != nil {
		return timing.TimeUnspecified, err
	}

	req := l.inFlight
	if req == nil {
		return l.engine.CurrentTime(), nil
	}

	l.engine.Stop()

	for !req.done {
		l.cond.Wait()
	}

	return req.stopTime, nil
}

// WaitStopped blocks until no request is in flight and returns the outcome of
// the most recent request.
func (l *Launcher) WaitStopped() (timing.VTime, error) {
	return l.WaitStoppedContext(context.Background())
}

// WaitStoppedContext is WaitStopped bounded by ctx.
func (l *Launcher) WaitStoppedContext(
	ctx context.Context,
) (timing.VTime, error) {
	stopWatch := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stopWatch()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkOpen(); err != nil {
		return timing.TimeUnspecified, err
	}

	req := l.inFlight
	if req == nil {
		req = l.last
	}

	if req == nil {
		return l.engine.CurrentTime(), nil
	}

	for !req.done {
		if err := ctx.Err(); err != nil {
			return timing.TimeUnspecified, err
		}

		l.cond.Wait()
	}

	return req.stopTime, req.err
}

// Join waits for the simulated program to exit and returns its exit code.
// Later calls return the same code.
func (l *Launcher) Join() (int, error) {
	l.mu.Lock()

	if err := l.checkControl(); err != nil {
		l.mu.Unlock()
		return 0, err
	}

	for l.state != StateFinished && !l.closed {
		l.cond.Wait()
	}

	if l.state != StateFinished {
		l.mu.Unlock()
		return 0, ErrEngineClosed
	}

	code := l.exitCode
	l.mu.Unlock()

	<-l.engineDone

	return code, nil
}

// Close stops the engine, joins the goroutines, and tears the platform down.
// Every later call returns ErrEngineClosed.
func (l *Launcher) Close() error {
	l.mu.Lock()

	if l.closed {
		l.mu.Unlock()
		return ErrEngineClosed
	}

	l.closed = true
	if l.inFlight != nil {
		l.engine.Stop()
	}

	l.cond.Broadcast()
	started := l.started
	l.mu.Unlock()

	if started {
		close(l.signalQuit)
		<-l.engineDone
		<-l.signalDone
	}

	var err error
	if td, ok := l.platform.(simulation.Teardowner); ok && l.opened {
		err = td.Teardown()
	}

	l.mu.Lock()
	l.user = nil
	if l.vcd != nil {
		l.vcd.Bind(nil)
	}

	if l.tree != nil {
		l.tree.Clear()
	}
	l.mu.Unlock()

	return err
}

// RegisterExecNotifier adds a notifier that is called each time the engine
// halts.
func (l *Launcher) RegisterExecNotifier(n timing.Notifier) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkOpen(); err != nil {
		return err
	}

	l.engine.RegisterNotifier(n)

	return nil
}

// Update runs the exec notifiers as if the engine halted at now. The
// notifiers run without the launcher lock, so they may query the launcher.
func (l *Launcher) Update(now timing.VTime) error {
	l.mu.Lock()
	if err := l.checkOpen(); err != nil {
		l.mu.Unlock()
		return err
	}

	engine := l.engine
	l.mu.Unlock()

	engine.Update(now)

	return nil
}

// State returns the current execution state.
func (l *Launcher) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// CurrentTime returns the engine clock. It is safe to call while running.
func (l *Launcher) CurrentTime() timing.VTime {
	l.mu.Lock()
	engine := l.engine
	l.mu.Unlock()

	if engine == nil {
		return 0
	}

	return engine.CurrentTime()
}

// Engine returns the engine created by Open.
func (l *Launcher) Engine() timing.Engine {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine == nil {
		return nil
	}

	return l.engine
}

// Tree returns the instance tree created by Open.
func (l *Launcher) Tree() *simulation.Tree {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.tree
}

func (l *Launcher) submit(req *request) (*request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkControl(); err != nil {
		return nil, err
	}

	if l.state == StateFinished {
		return nil, ErrFinished
	}

	if l.inFlight != nil {
		return nil, ErrEngineBusy
	}

	l.inFlight = req
	l.requests = append(l.requests, req)
	l.cond.Broadcast()

	return req, nil
}

func (l *Launcher) wait(req *request) (timing.VTime, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for !req.done {
		l.cond.Wait()
	}

	return req.stopTime, req.err
}

func (l *Launcher) checkOpen() error {
	if l.closed {
		return ErrEngineClosed
	}

	if !l.opened {
		return ErrNotOpen
	}

	return nil
}

func (l *Launcher) checkControl() error {
	if err := l.checkOpen(); err != nil {
		return err
	}

	if !l.started {
		return ErrNotStarted
	}

	return nil
}
