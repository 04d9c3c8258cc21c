package simulation

import "github.com/pkg/errors"

var (
	// ErrComponentNotFound is returned when no component lives at a path.
	ErrComponentNotFound = errors.New("component not found")

	// ErrNotSupported is returned when a component does not offer the
	// requested binding.
	ErrNotSupported = errors.New("not supported")

	// ErrInvalidPath is returned for paths that are not absolute or that
	// contain empty elements.
	ErrInvalidPath = errors.New("invalid component path")
)
