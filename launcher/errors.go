package launcher

import (
	"github.com/pkg/errors"
	"github.com/sarchlab/vpsim/sim/timing"
)

var (
	// ErrEngineBusy is returned when a run or step is requested while another
	// one is in flight.
	ErrEngineBusy = errors.New("engine busy")

	// ErrEngineClosed is returned by every call made after Close.
	ErrEngineClosed = errors.New("engine closed")

	// ErrAlreadyBound is returned when a user is bound while another one is.
	ErrAlreadyBound = errors.New("user already bound")

	// ErrNotOpen is returned when the launcher is used before Open.
	ErrNotOpen = errors.New("launcher not open")

	// ErrAlreadyOpen is returned by a second Open.
	ErrAlreadyOpen = errors.New("launcher already open")

	// ErrNotStarted is returned by control calls issued before Start.
	ErrNotStarted = errors.New("engine goroutine not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine goroutine already started")

	// ErrFinished is returned when a run or step is requested after the
	// simulated program exited.
	ErrFinished = errors.New("simulation finished")

	// ErrInvalidDuration is returned for step targets in the past and for
	// non-positive step lengths.
	ErrInvalidDuration = timing.ErrInvalidDuration
)
