package tracing

import (
	"reflect"
	"sync"

	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/simulation"
	"github.com/sarchlab/vpsim/sim/timing"
)

// A VCDUser receives the trace of selected components. It owns the waveform
// format.
type VCDUser interface {
	Trace(now timing.VTime, path string, payload any)
}

// VCDTracer is an engine hook that forwards the events dispatched to selected
// components to the bound VCDUser.
type VCDTracer struct {
	tree     *simulation.Tree
	selector *Selector

	lock  sync.RWMutex
	user  VCDUser
	paths map[timing.Handler]string
}

// NewVCDTracer creates a tracer that resolves handlers through tree.
func NewVCDTracer(tree *simulation.Tree, selector *Selector) *VCDTracer {
	return &VCDTracer{
		tree:     tree,
		selector: selector,
	}
}

// Bind attaches the user that receives the trace. A nil user detaches.
func (t *VCDTracer) Bind(user VCDUser) {
	t.lock.Lock()
	t.user = user
	t.paths = nil
	t.lock.Unlock()
}

// Func implements hooking.Hook.
func (t *VCDTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timing.HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(*timing.Event)
	if !ok || evt.Handler == nil {
		return
	}

	t.lock.RLock()
	user := t.user
	t.lock.RUnlock()

	if user == nil {
		return
	}

	path, ok := t.pathOf(evt.Handler)
	if !ok || !t.selector.Selected(path) {
		return
	}

	user.Trace(evt.Time, path, evt.Payload)
}

func (t *VCDTracer) pathOf(h timing.Handler) (string, bool) {
	if !reflect.TypeOf(h).Comparable() {
		return "", false
	}

	t.lock.RLock()
	paths := t.paths
	t.lock.RUnlock()

	if paths == nil {
		paths = t.index()
	}

	path, ok := paths[h]

	return path, ok
}

func (t *VCDTracer) index() map[timing.Handler]string {
	paths := make(map[timing.Handler]string)

	_ = t.tree.Walk(func(path string, c simulation.Component) error {
		if reflect.TypeOf(c).Comparable() {
			paths[c] = path
		}

		return nil
	})

	t.lock.Lock()
	t.paths = paths
	t.lock.Unlock()

	return paths
}
