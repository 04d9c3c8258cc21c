package launcher

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/vpsim/sim/simulation"
	"github.com/sarchlab/vpsim/tracing"
)

// GetComponent returns the component registered at path.
func (l *Launcher) GetComponent(path string) (simulation.Component, error) {
	tree, err := l.openTree()
	if err != nil {
		return nil, err
	}

	return tree.Get(path)
}

// IOBind connects user to the I/O interface itf of the component at path.
func (l *Launcher) IOBind(
	user simulation.IOUser,
	path, itf string,
) (simulation.IOBinding, error) {
	c, err := l.GetComponent(path)
	if err != nil {
		return nil, err
	}

	binder, ok := c.(simulation.IOBinder)
	if !ok {
		return nil, errors.Wrapf(simulation.ErrNotSupported,
			"%s has no I/O interface", path)
	}

	return binder.BindIO(user, itf)
}

// WireBind connects user to the wire itf of the component at path.
func (l *Launcher) WireBind(
	user simulation.WireUser,
	path, itf string,
) (simulation.WireBinding, error) {
	c, err := l.GetComponent(path)
	if err != nil {
		return nil, err
	}

	binder, ok := c.(simulation.WireBinder)
	if !ok {
		return nil, errors.Wrapf(simulation.ErrNotSupported,
			"%s has no wire", path)
	}

	return binder.BindWire(user, itf)
}

// VCDBind attaches the user that receives the trace of selected components.
func (l *Launcher) VCDBind(user tracing.VCDUser) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkOpen(); err != nil {
		return err
	}

	l.vcd.Bind(user)

	return nil
}

// EventAdd selects the components matching path for tracing.
func (l *Launcher) EventAdd(path string, isRegex bool) error {
	if err := l.checkClosed(); err != nil {
		return err
	}

	return l.selector.Add(path, isRegex)
}

// EventExclude removes the components matching path from tracing.
func (l *Launcher) EventExclude(path string, isRegex bool) error {
	if err := l.checkClosed(); err != nil {
		return err
	}

	return l.selector.Exclude(path, isRegex)
}

func (l *Launcher) checkClosed() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrEngineClosed
	}

	return nil
}

func (l *Launcher) openTree() (*simulation.Tree, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	return l.tree, nil
}
