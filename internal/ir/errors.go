package ir

import "errors"

// Sentinel errors for graph construction.
var (
	// ErrDuplicateProducer indicates two nodes claim the same output tensor.
	ErrDuplicateProducer = errors.New("tensor produced by more than one node")

	// ErrEmptyOpType indicates a node without an operator type.
	ErrEmptyOpType = errors.New("node has no op type")
)
