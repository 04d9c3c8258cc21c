package launcher

import (
	"context"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/vpsim/sim/timing"
)

// engineRoutine is the only goroutine that calls into the engine's dispatch
// loop. It owns the transitions out of StateRunning.
func (l *Launcher) engineRoutine() {
	defer close(l.engineDone)

	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		for len(l.requests) == 0 && !l.closed {
			l.cond.Wait()
		}

		if l.closed {
			l.failQueued()
			return
		}

		req := l.requests[0]
		l.requests = l.requests[1:]
		l.state = StateRunning
		l.cond.Broadcast()
		l.mu.Unlock()

		stopTime, err := l.process(req)

		l.mu.Lock()
		l.engine.ClearStop()
		req.stopTime = stopTime
		req.err = err
		req.done = true
		l.inFlight = nil
		l.last = req

		finished, code := l.engine.Finished()
		if finished {
			l.state = StateFinished
			l.exitCode = code
		} else {
			l.state = StateIdle
		}

		l.cond.Broadcast()
		user := l.user
		l.mu.Unlock()

		if !errors.Is(err, ErrInvalidDuration) {
			notifyUser(user, stopTime, finished, code)
		}

		l.mu.Lock()
		if finished {
			l.failQueued()
			return
		}
	}
}

func (l *Launcher) process(req *request) (timing.VTime, error) {
	_, span := l.tracer.Start(context.Background(), "vpsim."+req.kind.String(),
		trace.WithAttributes(
			attribute.String("vpsim.request.kind", req.kind.String()),
			attribute.Int64("vpsim.request.time", int64(req.time)),
			attribute.Bool("vpsim.request.relative", req.relative),
		))
	defer span.End()

	var (
		now timing.VTime
		err error
	)

	switch req.kind {
	case reqRun:
		now, err = l.engine.Run()
	case reqRunUntil:
		if req.relative {
			now, err = l.engine.Step(req.time)
		} else {
			now, err = l.engine.StepUntil(req.time)
		}
	default:
		now = l.engine.CurrentTime()
	}

	span.SetAttributes(attribute.Int64("vpsim.stop_time", int64(now)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return now, err
}

// failQueued completes the requests that will never be processed. Must be
// called with the lock held.
func (l *Launcher) failQueued() {
	for _, req := range l.requests {
		req.stopTime = timing.TimeUnspecified
		req.err = ErrEngineClosed
		if l.state == StateFinished {
			req.err = ErrFinished
		}
		req.done = true

		if l.inFlight == req {
			l.inFlight = nil
		}
	}

	l.requests = nil
	l.cond.Broadcast()
}

func notifyUser(user User, now timing.VTime, finished bool, code int) {
	if user == nil {
		return
	}

	if finished {
		user.HasEnded(code)
		return
	}

	user.WasStopped(now)
}

// signalRoutine turns interrupts into stop requests until the launcher
// closes.
func (l *Launcher) signalRoutine(sigs chan os.Signal) {
	defer close(l.signalDone)
	defer signal.Stop(sigs)

	for {
		select {
		case <-l.signalQuit:
			return
		case <-sigs:
			now, err := l.Stop()
			if err != nil {
				l.logger.Printf("interrupt ignored: %v", err)
				continue
			}

			l.logger.Printf("interrupted, stopped at %d", now)
		}
	}
}
