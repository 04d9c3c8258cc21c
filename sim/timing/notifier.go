package timing

import (
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// A Notifier observes execution-state changes. It is called on the engine
// goroutine each time dispatch halts, so it must return quickly.
type Notifier interface {
	Notify(now VTime) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(now VTime) error

// Notify calls f(now).
func (f NotifierFunc) Notify(now VTime) error {
	return f(now)
}

// A SimulationEndHandler is a handler that is called after the simulation
// finishes.
type SimulationEndHandler interface {
	Handle(now VTime, exitCode int)
}

// NotifierRegistry keeps the notifiers in registration order. Registration is
// allowed while the engine runs.
type NotifierRegistry struct {
	lock      sync.RWMutex
	notifiers []Notifier
	budget    time.Duration
	logger    *log.Logger
}

// NewNotifierRegistry creates an empty registry that reports faults to the
// logger.
func NewNotifierRegistry(logger *log.Logger) *NotifierRegistry {
	return &NotifierRegistry{logger: logger}
}

// SetBudget sets how long a single notifier may run before an overrun is
// logged. Zero disables the check.
func (r *NotifierRegistry) SetBudget(budget time.Duration) {
	r.lock.Lock()
	r.budget = budget
	r.lock.Unlock()
}

// Register appends a notifier.
func (r *NotifierRegistry) Register(n Notifier) {
	r.lock.Lock()
	r.notifiers = append(r.notifiers, n)
	r.lock.Unlock()
}

// Len returns the number of registered notifiers.
func (r *NotifierRegistry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.notifiers)
}

// Update calls every notifier with now. Failures are logged and returned; they
// never stop the remaining notifiers.
func (r *NotifierRegistry) Update(now VTime) []error {
	r.lock.RLock()
	notifiers := make([]Notifier, len(r.notifiers))
	copy(notifiers, r.notifiers)
	budget := r.budget
	r.lock.RUnlock()

	var faults []error

	for i, n := range notifiers {
		start := time.Now()
		err := invokeNotifier(n, now)
		elapsed := time.Since(start)

		if budget > 0 && elapsed > budget {
			r.logger.Printf("notifier %d took %s at %d, budget is %s",
				i, elapsed, now, budget)
		}

		if err != nil {
			fault := errors.Wrapf(ErrNotifierFault,
				"notifier %d at %d: %v", i, now, err)
			r.logger.Print(fault)
			faults = append(faults, fault)
		}
	}

	return faults
}

func invokeNotifier(n Notifier, now VTime) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()

	return n.Notify(now)
}
