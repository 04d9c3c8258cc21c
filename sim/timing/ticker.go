package timing

import (
	"sync"

	"github.com/pkg/errors"
)

// TickEvent is the payload of the events a TickScheduler sends.
type TickEvent struct{}

// A Ticker is an object that updates states with ticks. Tick returns true if
// progress was made and another tick is wanted.
type Ticker interface {
	Tick() bool
}

// TickScheduler can help schedule tick events on a fixed period grid.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	Period    VTime
	Engine    EventScheduler
	secondary bool

	nextTickTime VTime
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	engine EventScheduler,
	period VTime,
) *TickScheduler {
	if period <= 0 {
		panic("tick period must be positive")
	}

	ticker := new(TickScheduler)

	ticker.handler = handler
	ticker.Engine = engine
	ticker.Period = period
	ticker.nextTickTime = -1 // This will make sure the first tick is scheduled

	return ticker
}

// NewSecondaryTickScheduler creates a scheduler that always schedule secondary
// tick events.
func NewSecondaryTickScheduler(
	handler Handler,
	engine EventScheduler,
	period VTime,
) *TickScheduler {
	ticker := NewTickScheduler(handler, engine, period)
	ticker.secondary = true

	return ticker
}

// ThisTick returns the first grid point at or after now.
func (t *TickScheduler) ThisTick(now VTime) VTime {
	ticks := (now + t.Period - 1) / t.Period
	return ticks * t.Period
}

// NextTick returns the first grid point strictly after now.
func (t *TickScheduler) NextTick(now VTime) VTime {
	return (now/t.Period + 1) * t.Period
}

// TickNow schedule a Tick event at the current time.
func (t *TickScheduler) TickNow() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.scheduleAt(t.ThisTick(t.Now()))
}

// TickLater will schedule a tick event at the cycle after the now time.
func (t *TickScheduler) TickLater() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.scheduleAt(t.NextTick(t.Now()))
}

func (t *TickScheduler) scheduleAt(time VTime) error {
	if t.nextTickTime >= time {
		return nil
	}

	evt := NewEvent(time, t.handler, TickEvent{})
	evt.Secondary = t.secondary

	err := t.Engine.Schedule(evt)
	if err != nil {
		return errors.Wrap(err, "schedule tick")
	}

	t.nextTickTime = time

	return nil
}

// Now returns the engine time.
func (t *TickScheduler) Now() VTime {
	return t.Engine.CurrentTime()
}

// TickingComponent is a handler that calls a Ticker on every tick and keeps
// ticking as long as the Ticker makes progress.
type TickingComponent struct {
	*TickScheduler

	name   string
	ticker Ticker
}

// NewTickingComponent creates a TickingComponent that drives ticker.
func NewTickingComponent(
	name string,
	engine EventScheduler,
	period VTime,
	ticker Ticker,
) *TickingComponent {
	return NewTickingComponentFor(name, engine, period, ticker, nil)
}

// NewTickingComponentFor is NewTickingComponent with the tick events sent to
// target. Components that embed a TickingComponent and handle more payloads
// than ticks pass themselves as target. A nil target means the
// TickingComponent itself.
func NewTickingComponentFor(
	name string,
	engine EventScheduler,
	period VTime,
	ticker Ticker,
	target Handler,
) *TickingComponent {
	tc := &TickingComponent{name: name, ticker: ticker}
	if target == nil {
		target = tc
	}

	tc.TickScheduler = NewTickScheduler(target, engine, period)

	return tc
}

// Name returns the name of the component.
func (c *TickingComponent) Name() string {
	return c.name
}

// Handle handles tick events.
func (c *TickingComponent) Handle(evt *Event) error {
	if _, ok := evt.Payload.(TickEvent); !ok {
		return errors.Errorf("%s cannot handle %T", c.name, evt.Payload)
	}

	if c.ticker.Tick() {
		return c.TickLater()
	}

	return nil
}
