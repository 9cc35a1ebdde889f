package ir

import "github.com/born-ml/picogen/internal/tensor"

// TensorID names a value flowing along one graph edge.
type TensorID = string

// NodeID is a handle into the graph's node arena.
type NodeID int

// Node is a single operator application.
type Node struct {
	ID      NodeID
	Name    string
	OpType  string
	Attrs   Attrs
	Inputs  []TensorID
	Outputs []TensorID

	constants  map[TensorID]*tensor.Array
	constOrder []TensorID
	parents    []NodeID
	children   []NodeID
}

// InputTensor returns the compile-time value of input id, if known.
func (n *Node) InputTensor(id TensorID) (*tensor.Array, bool) {
	v, ok := n.constants[id]
	return v, ok
}

// HasConstantInput reports whether input id carries a compile-time value.
func (n *Node) HasConstantInput(id TensorID) bool {
	_, ok := n.constants[id]
	return ok
}

// ConstantInputs returns the ids of constant inputs in the order they were
// attached.
func (n *Node) ConstantInputs() []TensorID {
	out := make([]TensorID, len(n.constOrder))
	copy(out, n.constOrder)
	return out
}

// DataInputs returns the non-empty inputs that carry no constant value.
func (n *Node) DataInputs() []TensorID {
	out := make([]TensorID, 0, len(n.Inputs))
	for _, in := range n.Inputs {
		if in == "" || n.HasConstantInput(in) {
			continue
		}
		out = append(out, in)
	}
	return out
}

// Input returns the i-th input or "" when absent.
func (n *Node) Input(i int) TensorID {
	if i < 0 || i >= len(n.Inputs) {
		return ""
	}
	return n.Inputs[i]
}

// Output returns the i-th output or "" when absent.
func (n *Node) Output(i int) TensorID {
	if i < 0 || i >= len(n.Outputs) {
		return ""
	}
	return n.Outputs[i]
}

func (n *Node) setInputTensor(id TensorID, v *tensor.Array) {
	if n.constants == nil {
		n.constants = make(map[TensorID]*tensor.Array)
	}
	if _, ok := n.constants[id]; !ok {
		n.constOrder = append(n.constOrder, id)
	}
	n.constants[id] = v
}

func (n *Node) producesAny(ids map[TensorID]bool) bool {
	for _, out := range n.Outputs {
		if ids[out] {
			return true
		}
	}
	return false
}

func without(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(ids []NodeID, id NodeID) []NodeID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
