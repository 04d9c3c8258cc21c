package timing

import "github.com/pkg/errors"

var (
	// ErrInvalidDuration is returned when a step target is before the current
	// time, or a step length is not positive.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidSchedule is returned when an event is scheduled in the past.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrAlreadyScheduled is returned when an event that is still pending is
	// pushed again.
	ErrAlreadyScheduled = errors.New("event already scheduled")

	// ErrNotifierFault wraps the failure of a notifier. Dispatch is not
	// affected by it.
	ErrNotifierFault = errors.New("notifier fault")

	// ErrFatal is wrapped by handlers that cannot let the simulation go on.
	// The engine stops and finishes with a non-zero exit code.
	ErrFatal = errors.New("fatal simulation error")
)
