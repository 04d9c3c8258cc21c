package simulation

import "github.com/sarchlab/vpsim/sim/timing"

// Named describes an object that has a name.
type Named interface {
	Name() string
}

// A Component is a hardware model that receives timed events.
type Component interface {
	Named
	timing.Handler
}

// ComponentBase provides the name of a component.
type ComponentBase struct {
	name string
}

// NewComponentBase creates a ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	return &ComponentBase{name: name}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}

// A Platform builds the instance tree of a simulated system. It is the
// bring-up collaborator of the launcher.
type Platform interface {
	// Build creates the components, registers them into tree, and schedules
	// their initial events on engine.
	Build(engine timing.Engine, tree *Tree) error
}

// A Teardowner is a Platform that needs to release resources when the
// launcher closes.
type Teardowner interface {
	Teardown() error
}

// IORequest is a memory-mapped access coming from outside the simulation.
type IORequest struct {
	Addr    uint64
	Data    []byte
	IsWrite bool
	Err     error
}

// An IOUser receives the replies of asynchronous I/O accesses.
type IOUser interface {
	Reply(req *IORequest)
}

// An IOBinding is the handle an IOUser uses to access a component interface.
type IOBinding interface {
	Access(req *IORequest) error
	Close()
}

// An IOBinder is a component that exposes I/O interfaces to the outside.
type IOBinder interface {
	BindIO(user IOUser, itf string) (IOBinding, error)
}

// A WireUser is told when a bound wire changes value.
type WireUser interface {
	Update(value int64)
}

// A WireBinding lets the outside drive a component wire.
type WireBinding interface {
	Update(value int64) error
	Close()
}

// A WireBinder is a component that exposes wires to the outside.
type WireBinder interface {
	BindWire(user WireUser, itf string) (WireBinding, error)
}
