// Package id provides the sequence numbers that keep event dispatch
// deterministic.
package id

import "sync/atomic"

// ID is a unique, monotonically increasing identifier.
type ID uint64

// An IDGenerator produces unique identifiers.
type IDGenerator interface {
	Generate() ID
}

// NewIDGenerator returns a sequential generator whose first emitted ID is 1.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.nextID, 1))
}
