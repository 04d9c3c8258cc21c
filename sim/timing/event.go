package timing

import (
	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/id"
)

// VTime is a point or a span on the simulated timeline. The unit is fixed by
// the platform; picoseconds by convention.
type VTime int64

// TimeUnspecified marks a time argument that carries no explicit target.
const TimeUnspecified VTime = -1

// A Handler receives the events scheduled for it.
//
// Payloads are plain data. Handlers type-switch on evt.Payload to tell event
// kinds apart.
type Handler interface {
	Handle(evt *Event) error
}

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTime
}

// EventScheduler is the scheduling surface the engine offers to components.
type EventScheduler interface {
	TimeTeller

	// Schedule inserts an event at its absolute time.
	Schedule(evt *Event) error

	// ScheduleEvent creates and schedules an event delay units from now.
	ScheduleEvent(handler Handler, delay VTime, payload any) (*Event, error)

	// Cancel removes a pending event. It does nothing if the event was
	// already dispatched.
	Cancel(evt *Event)
}

// HookPosBeforeEvent is a hook position that triggers before handling an event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// HookPosHalt triggers each time the dispatch loop stops. The hook item is the
// halt time and the detail is the HaltReason.
var HookPosHalt = &hooking.HookPos{Name: "Halt"}

// An Event is something going to happen in the future.
type Event struct {
	// Time is when the event fires.
	Time VTime

	// Handler is the component that receives the event.
	Handler Handler

	// Payload is delivered untouched to the handler.
	Payload any

	// Secondary events run after all the primary events of the same time.
	Secondary bool

	seq     id.ID
	index   int
	pending bool
}

// NewEvent creates an event that is not scheduled yet.
func NewEvent(t VTime, handler Handler, payload any) *Event {
	return &Event{
		Time:    t,
		Handler: handler,
		Payload: payload,
		index:   -1,
	}
}

// IsPending tells if the event sits in an event queue.
func (e *Event) IsPending() bool {
	return e.pending
}

// Seq returns the sequence number assigned when the event was last queued.
// Equal-time events dispatch in Seq order.
func (e *Event) Seq() id.ID {
	return e.seq
}
