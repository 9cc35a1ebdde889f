package compiler

import "github.com/pkg/errors"

// Common errors.
var (
	// ErrUnsupportedGraph marks a graph interface pico-cnn cannot run:
	// several inputs or outputs, a batch other than 1 or an unusable rank.
	ErrUnsupportedGraph = errors.New("unsupported graph")
	// ErrNotTopological means a node reads a tensor produced later.
	ErrNotTopological = errors.New("graph is not topologically ordered")
)
