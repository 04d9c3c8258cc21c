package simulation

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// A Tree indexes the components of a simulation by hierarchical path, such
// as "/soc/cluster/pe0".
type Tree struct {
	lock   sync.RWMutex
	byPath map[string]Component
	order  []string
}

// NewTree creates an empty Tree.
func NewTree() *Tree {
	return &Tree{byPath: make(map[string]Component)}
}

// CleanPath validates a component path and returns it without a trailing
// slash.
func CleanPath(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", errors.Wrapf(ErrInvalidPath, "%q is not absolute", path)
	}

	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == "" {
		return "", errors.Wrapf(ErrInvalidPath, "%q has no element", path)
	}

	for _, elem := range strings.Split(trimmed[1:], "/") {
		if elem == "" {
			return "", errors.Wrapf(ErrInvalidPath,
				"%q has an empty element", path)
		}
	}

	return trimmed, nil
}

// Register adds a component at path. Registering a path twice panics.
func (t *Tree) Register(path string, c Component) error {
	clean, err := CleanPath(path)
	if err != nil {
		return err
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.byPath[clean]; ok {
		panic("component " + clean + " already registered")
	}

	t.byPath[clean] = c
	t.order = append(t.order, clean)

	return nil
}

// Get returns the component at path.
func (t *Tree) Get(path string) (Component, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	t.lock.RLock()
	defer t.lock.RUnlock()

	c, ok := t.byPath[clean]
	if !ok {
		return nil, errors.Wrap(ErrComponentNotFound, clean)
	}

	return c, nil
}

// Paths returns all the registered paths in registration order.
func (t *Tree) Paths() []string {
	t.lock.RLock()
	defer t.lock.RUnlock()

	paths := make([]string, len(t.order))
	copy(paths, t.order)

	return paths
}

// Children returns the paths registered directly below path, in registration
// order. Use "/" for the top level.
func (t *Tree) Children(path string) []string {
	prefix := "/"
	if path != "/" {
		clean, err := CleanPath(path)
		if err != nil {
			return nil
		}

		prefix = clean + "/"
	}

	t.lock.RLock()
	defer t.lock.RUnlock()

	var children []string

	for _, p := range t.order {
		rest, ok := strings.CutPrefix(p, prefix)
		if ok && rest != "" && !strings.Contains(rest, "/") {
			children = append(children, p)
		}
	}

	return children
}

// Walk calls fn for every component in registration order and stops at the
// first error.
func (t *Tree) Walk(fn func(path string, c Component) error) error {
	for _, p := range t.Paths() {
		t.lock.RLock()
		c, ok := t.byPath[p]
		t.lock.RUnlock()

		if !ok {
			continue
		}

		if err := fn(p, c); err != nil {
			return err
		}
	}

	return nil
}

// Len returns the number of registered components.
func (t *Tree) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return len(t.order)
}

// Clear removes every component.
func (t *Tree) Clear() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.byPath = make(map[string]Component)
	t.order = nil
}
