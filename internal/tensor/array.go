package tensor

import (
	"fmt"
	"math"
)

// Array is a dense, row-major constant tensor known at compile time.
// Elements of every data type are held as float64; integral types keep
// their exact value up to 2^53.
type Array struct {
	Shape Shape
	DType DataType
	Data  []float64
}

// NewArray creates an array, checking that data matches shape.
func NewArray(shape Shape, dtype DataType, data []float64) (*Array, error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("array of shape %v needs %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	return &Array{Shape: shape.Clone(), DType: dtype, Data: data}, nil
}

// FromFloat32s builds a float32 array.
func FromFloat32s(shape Shape, values []float32) (*Array, error) {
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	return NewArray(shape, Float32, data)
}

// FromInt64s builds an int64 array.
func FromInt64s(shape Shape, values []int64) (*Array, error) {
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	return NewArray(shape, Int64, data)
}

// Vector builds a 1-D int64 array from values.
func Vector(values ...int64) *Array {
	a, _ := FromInt64s(Shape{len(values)}, values)
	return a
}

// Zeros builds a zero-filled array.
func Zeros(shape Shape, dtype DataType) *Array {
	return &Array{Shape: shape.Clone(), DType: dtype, Data: make([]float64, shape.NumElements())}
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.Data) }

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.Shape) }

// Clone returns a deep copy of a.
func (a *Array) Clone() *Array {
	if a == nil {
		return nil
	}
	data := make([]float64, len(a.Data))
	copy(data, a.Data)
	return &Array{Shape: a.Shape.Clone(), DType: a.DType, Data: data}
}

// Equal reports structural equality: same type, shape and elements.
// NaN elements compare equal to each other. Two nil arrays are equal.
func (a *Array) Equal(other *Array) bool {
	if a == nil || other == nil {
		return a == nil && other == nil
	}
	if a.DType != other.DType || !a.Shape.Equal(other.Shape) || len(a.Data) != len(other.Data) {
		return false
	}
	for i, v := range a.Data {
		w := other.Data[i]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}

// Float32s returns the elements narrowed to float32.
func (a *Array) Float32s() []float32 {
	out := make([]float32, len(a.Data))
	for i, v := range a.Data {
		out[i] = float32(v)
	}
	return out
}

// Int64s returns the elements truncated to int64.
func (a *Array) Int64s() []int64 {
	out := make([]int64, len(a.Data))
	for i, v := range a.Data {
		out[i] = int64(v)
	}
	return out
}

// Ints returns the elements truncated to int.
func (a *Array) Ints() []int {
	out := make([]int, len(a.Data))
	for i, v := range a.Data {
		out[i] = int(v)
	}
	return out
}

// Reshape returns a copy of a with the target shape resolved by ResolveReshape.
func (a *Array) Reshape(target []int64) (*Array, error) {
	shape, err := ResolveReshape(a.Shape, target)
	if err != nil {
		return nil, err
	}
	out := a.Clone()
	out.Shape = shape
	return out, nil
}

// ExpandDims returns a copy of a with size-1 axes inserted.
func (a *Array) ExpandDims(axes []int) (*Array, error) {
	shape, err := Unsqueeze(a.Shape, axes)
	if err != nil {
		return nil, err
	}
	out := a.Clone()
	out.Shape = shape
	return out, nil
}

// Take gathers slices of a along axis at the given indices.
// The result has shape a.Shape[:axis] + indices.Shape + a.Shape[axis+1:].
// Negative indices count from the end of the axis.
func (a *Array) Take(indices *Array, axis int) (*Array, error) {
	axis, err := NormalizeAxis(axis, a.Rank())
	if err != nil {
		return nil, err
	}
	dim := a.Shape[axis]
	outer := Shape(a.Shape[:axis]).NumElements()
	inner := Shape(a.Shape[axis+1:]).NumElements()

	idx := make([]int, indices.Len())
	for i, v := range indices.Data {
		j := int(v)
		if j < 0 {
			j += dim
		}
		if j < 0 || j >= dim {
			return nil, fmt.Errorf("gather index %d out of range for axis of size %d", int(v), dim)
		}
		idx[i] = j
	}

	shape := make(Shape, 0, a.Rank()-1+indices.Rank())
	shape = append(shape, a.Shape[:axis]...)
	shape = append(shape, indices.Shape...)
	shape = append(shape, a.Shape[axis+1:]...)

	data := make([]float64, 0, outer*len(idx)*inner)
	for o := 0; o < outer; o++ {
		for _, j := range idx {
			start := (o*dim + j) * inner
			data = append(data, a.Data[start:start+inner]...)
		}
	}
	return &Array{Shape: shape, DType: a.DType, Data: data}, nil
}

// ConcatShapes returns the shape of concatenating shapes along axis.
func ConcatShapes(shapes []Shape, axis int) (Shape, error) {
	if len(shapes) == 0 {
		return nil, fmt.Errorf("concat of zero tensors")
	}
	rank := len(shapes[0])
	axis, err := NormalizeAxis(axis, rank)
	if err != nil {
		return nil, err
	}
	out := shapes[0].Clone()
	for _, s := range shapes[1:] {
		if len(s) != rank {
			return nil, fmt.Errorf("concat rank mismatch: %v vs %v", shapes[0], s)
		}
		for i := range s {
			if i == axis {
				continue
			}
			if s[i] != out[i] {
				return nil, fmt.Errorf("concat shape mismatch on axis %d: %v vs %v", i, shapes[0], s)
			}
		}
		out[axis] += s[axis]
	}
	return out, nil
}

// Concat joins arrays along axis. The result takes the first array's type.
func Concat(arrays []*Array, axis int) (*Array, error) {
	shapes := make([]Shape, len(arrays))
	for i, a := range arrays {
		shapes[i] = a.Shape
	}
	shape, err := ConcatShapes(shapes, axis)
	if err != nil {
		return nil, err
	}
	axis, _ = NormalizeAxis(axis, len(shape))
	outer := Shape(shape[:axis]).NumElements()

	data := make([]float64, 0, shape.NumElements())
	for o := 0; o < outer; o++ {
		for _, a := range arrays {
			chunk := Shape(a.Shape[axis:]).NumElements()
			data = append(data, a.Data[o*chunk:(o+1)*chunk]...)
		}
	}
	return &Array{Shape: shape, DType: arrays[0].DType, Data: data}, nil
}
