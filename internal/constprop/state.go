package constprop

import "github.com/born-ml/picogen/internal/tensor"

// State is the propagated knowledge about one tensor.
type State struct {
	// Value is the exact compile-time value, nil when unknown.
	Value *tensor.Array
	// Shape is valid when Known is set.
	Shape tensor.Shape
	// Known reports that Shape is meaningful. A zero State is unknown.
	Known bool
}

// Unknown returns the state carrying no information.
func Unknown() State { return State{} }

// ShapeOnly returns a state with a known shape and no value.
func ShapeOnly(s tensor.Shape) State {
	if s == nil {
		return Unknown()
	}
	return State{Shape: s.Clone(), Known: true}
}

// Exact returns a state with a known value.
func Exact(v *tensor.Array) State {
	if v == nil {
		return Unknown()
	}
	return State{Value: v, Shape: v.Shape.Clone(), Known: true}
}

// HasValue reports whether the exact value is known.
func (s State) HasValue() bool { return s.Value != nil }

// WithoutValue drops the value, keeping the shape.
func (s State) WithoutValue() State {
	if !s.Known {
		return Unknown()
	}
	return State{Shape: s.Shape, Known: true}
}

// Equal is structural equality on value and shape.
func (s State) Equal(o State) bool {
	if s.Known != o.Known {
		return false
	}
	if !s.Known {
		return true
	}
	return s.Shape.Equal(o.Shape) && s.Value.Equal(o.Value)
}

func unknowns(n int) []State {
	return make([]State, n)
}
