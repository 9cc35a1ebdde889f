package constprop

import (
	"fmt"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// registerShapeOps adds shape manipulation operators.
func (e *Engine) registerShapeOps() {
	e.Register("Transpose", Transfer{Fn: transferTranspose})
	e.Register("Unsqueeze", Transfer{Fn: transferUnsqueeze, Folds: true})
	e.Register("Shape", Transfer{Fn: transferShape, Folds: true})
	e.Register("Gather", Transfer{Fn: transferGather, Folds: true})
	e.Register("Concat", Transfer{Fn: transferConcat, Folds: true})
	e.Register("Reshape", Transfer{Fn: transferReshape, Folds: true})
	e.Register("Flatten", Transfer{Fn: transferFlatten})
	e.Register("Pad", Transfer{Fn: transferPad, Folds: true})
}

func transferTranspose(node *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	rank := len(in.Shape)
	perm := toInts(node.Attrs.Ints("perm"))
	if len(perm) == 0 {
		perm = make([]int, rank)
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	}
	if len(perm) != rank {
		return nil, fmt.Errorf("perm %v does not match rank %d", perm, rank)
	}
	out := make(tensor.Shape, rank)
	for i, p := range perm {
		if p < 0 || p >= rank {
			return nil, fmt.Errorf("perm %v out of range", perm)
		}
		out[i] = in.Shape[p]
	}
	return []State{ShapeOnly(out)}, nil
}

// unsqueezeAxes reads axes from the attribute or, from opset 13 on, the
// second input.
func unsqueezeAxes(node *ir.Node, inputs []State) ([]int, error) {
	if axes := node.Attrs.Ints("axes"); len(axes) > 0 {
		return toInts(axes), nil
	}
	if len(inputs) > 1 && inputs[1].HasValue() {
		return inputs[1].Value.Ints(), nil
	}
	return nil, fmt.Errorf("unsqueeze axes: %w", errUnknownInput)
}

func transferUnsqueeze(node *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	axes, err := unsqueezeAxes(node, inputs)
	if err != nil {
		return nil, err
	}
	if in.HasValue() {
		v, err := in.Value.ExpandDims(axes)
		if err != nil {
			return nil, err
		}
		return []State{Exact(v)}, nil
	}
	out, err := tensor.Unsqueeze(in.Shape, axes)
	if err != nil {
		return nil, err
	}
	return []State{ShapeOnly(out)}, nil
}

func transferShape(_ *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	dims := make([]int64, len(in.Shape))
	for i, d := range in.Shape {
		dims[i] = int64(d)
	}
	return []State{Exact(tensor.Vector(dims...))}, nil
}

func transferGather(node *ir.Node, inputs []State) ([]State, error) {
	data, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	indices, err := need(inputs, 1)
	if err != nil {
		return nil, err
	}
	axis := int(node.Attrs.Int("axis", 0))
	if data.HasValue() && indices.HasValue() {
		v, err := data.Value.Take(indices.Value, axis)
		if err != nil {
			return nil, err
		}
		return []State{Exact(v)}, nil
	}
	axis, err = tensor.NormalizeAxis(axis, len(data.Shape))
	if err != nil {
		return nil, err
	}
	out := make(tensor.Shape, 0, len(data.Shape)-1+len(indices.Shape))
	out = append(out, data.Shape[:axis]...)
	out = append(out, indices.Shape...)
	out = append(out, data.Shape[axis+1:]...)
	return []State{ShapeOnly(out)}, nil
}

func transferConcat(node *ir.Node, inputs []State) ([]State, error) {
	axis := int(node.Attrs.Int("axis", 0))
	values := make([]*tensor.Array, 0, len(inputs))
	shapes := make([]tensor.Shape, 0, len(inputs))
	for i := range inputs {
		in, err := need(inputs, i)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, in.Shape)
		if in.HasValue() {
			values = append(values, in.Value)
		}
	}
	if len(values) == len(inputs) {
		v, err := tensor.Concat(values, axis)
		if err != nil {
			return nil, err
		}
		return []State{Exact(v)}, nil
	}
	out, err := tensor.ConcatShapes(shapes, axis)
	if err != nil {
		return nil, err
	}
	return []State{ShapeOnly(out)}, nil
}

func transferReshape(_ *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	if len(inputs) < 2 || !inputs[1].HasValue() {
		return nil, fmt.Errorf("reshape target: %w", errUnknownInput)
	}
	target := inputs[1].Value.Int64s()
	if in.HasValue() {
		v, err := in.Value.Reshape(target)
		if err != nil {
			return nil, err
		}
		return []State{Exact(v)}, nil
	}
	out, err := tensor.ResolveReshape(in.Shape, target)
	if err != nil {
		return nil, err
	}
	return []State{ShapeOnly(out)}, nil
}

func transferFlatten(node *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	rank := len(in.Shape)
	axis := int(node.Attrs.Int("axis", 1))
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis > rank {
		return nil, fmt.Errorf("flatten axis %d out of range for rank %d", axis, rank)
	}
	out := tensor.Shape{in.Shape[:axis].NumElements(), in.Shape[axis:].NumElements()}
	return []State{ShapeOnly(out)}, nil
}

// padAmounts reads pads from the attribute (before opset 11) or the second
// input.
func padAmounts(node *ir.Node, inputs []State) ([]int, error) {
	if pads := node.Attrs.Ints("pads"); len(pads) > 0 {
		return toInts(pads), nil
	}
	if len(inputs) > 1 && inputs[1].HasValue() {
		return inputs[1].Value.Ints(), nil
	}
	return nil, fmt.Errorf("pads: %w", errUnknownInput)
}

func transferPad(node *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	pads, err := padAmounts(node, inputs)
	if err != nil {
		return nil, err
	}
	rank := len(in.Shape)
	if len(pads) != 2*rank {
		return nil, fmt.Errorf("pads %v do not match rank %d", pads, rank)
	}
	out := make(tensor.Shape, rank)
	for i, d := range in.Shape {
		out[i] = d + pads[i] + pads[i+rank]
	}
	return []State{ShapeOnly(out)}, nil
}
