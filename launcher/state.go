package launcher

import (
	"fmt"

	"github.com/sarchlab/vpsim/sim/timing"
)

// State is the execution state of the engine goroutine.
type State int

// The execution states. A user stop goes back to StateIdle; StateFinished is
// only reached when the simulated program exits.
const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type requestKind int

const (
	reqNone requestKind = iota
	reqRun
	reqRunUntil
)

func (k requestKind) String() string {
	switch k {
	case reqNone:
		return "none"
	case reqRun:
		return "run"
	case reqRunUntil:
		return "run_until"
	default:
		return fmt.Sprintf("requestKind(%d)", int(k))
	}
}

// A request travels from a caller to the engine goroutine. The engine
// goroutine fills the result fields and sets done under the launcher lock.
type request struct {
	kind requestKind

	// time is the step target, or the step length when relative is set.
	time     timing.VTime
	relative bool

	done     bool
	stopTime timing.VTime
	err      error
}

// A User is the external controller bound to the launcher. Its methods are
// called on the engine goroutine.
type User interface {
	// WasStopped is called each time the engine halts without finishing.
	WasStopped(now timing.VTime)

	// HasEnded is called once when the simulated program exits.
	HasEnded(exitCode int)
}
