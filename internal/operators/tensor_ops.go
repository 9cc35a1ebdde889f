package operators

import (
	"github.com/sirupsen/logrus"

	"github.com/born-ml/picogen/internal/tensor"
)

// registerTensorOps adds data movement and element-wise tensor variants.
func (r *Registry) registerTensorOps() {
	r.Register("Concat", NewVariant("Concat", createConcat))
	r.Register("Reshape", NewVariant("Reshape", createReshape))
	r.Register("Flatten", NewVariant("Flatten", createReshape))
	r.Register("Add", NewVariant("Add", createAdd))
	r.Register("Pad", NewVariant("Pad", createPad))
}

// createConcat supports concatenation along the channel axis only.
func createConcat(ctx *Context) (Implementation, error) {
	n := ctx.Node
	out := ctx.Shape(n.Output(0))
	axis := int(n.Attrs.Int("axis", 1))
	if axis < 0 {
		axis += len(out)
	}
	if axis != 1 {
		return nil, unsupported(ctx, "concatenation along axis %d", axis)
	}

	inputs := make([]string, 0, len(n.Inputs))
	for _, id := range n.Inputs {
		in := ctx.Shape(id)
		if out != nil && in != nil {
			if len(in) != len(out) {
				return nil, unsupported(ctx, "input %s%s does not match output %s", id, in, out)
			}
			for i := range in {
				if i != axis && in[i] != out[i] {
					return nil, unsupported(ctx, "input %s%s does not match output %s", id, in, out)
				}
			}
		}
		inputs = append(inputs, ctx.Buffer(id).Name)
	}

	l := newTensorOp(ctx, "Concat", "layers/concat_exec")
	return l.set("inputs", inputs).set("axis", axis), nil
}

// createReshape copies the data of a Reshape or Flatten into its output
// buffer. The element count must not change.
func createReshape(ctx *Context) (Implementation, error) {
	n := ctx.Node
	in, out := ctx.Shape(n.Input(0)), ctx.Shape(n.Output(0))
	if in == nil || out == nil {
		return nil, nil
	}
	if in.NumElements() != out.NumElements() {
		return nil, unsupported(ctx, "cannot reshape %s to %s", in, out)
	}
	l := newTensorOp(ctx, n.OpType, "layers/reshape_exec")
	return l.set("input", ctx.Buffer(n.Input(0)).Name), nil
}

// createAdd accepts equal operand shapes. Operands of rank at most two are
// added element by element even when their shapes differ.
func createAdd(ctx *Context) (Implementation, error) {
	n := ctx.Node
	if len(n.Inputs) != 2 {
		return nil, nil
	}
	lhs, rhs := ctx.Shape(n.Input(0)), ctx.Shape(n.Input(1))
	broadcast := !lhs.Equal(rhs)
	if broadcast {
		if len(lhs) > 2 || len(rhs) > 2 {
			ctx.Log.WithFields(logrus.Fields{"lhs": lhs.String(), "rhs": rhs.String()}).
				Debug("broadcasting add is not supported")
			return nil, nil
		}
		ctx.Log.WithFields(logrus.Fields{"lhs": lhs.String(), "rhs": rhs.String()}).
			Info("operands of rank <= 2 differ in shape, adding element by element")
	}

	l := newTensorOp(ctx, "Add", "layers/add_exec")
	return l.
		set("broadcast", broadcast).
		set("lhs_shape", lhs.String()).
		set("rhs_shape", rhs.String()).
		set("lhs", ctx.Buffer(n.Input(0)).Name).
		set("rhs", ctx.Buffer(n.Input(1)).Name), nil
}

// createPad supports constant padding of the spatial axes.
func createPad(ctx *Context) (Implementation, error) {
	n := ctx.Node
	if mode := n.Attrs.Str("mode", "constant"); mode != "constant" {
		return nil, unsupported(ctx, "mode %q", mode)
	}

	pads := intsAttr(n, "pads")
	if pads == nil {
		v, ok := constantInts(n, 1)
		if !ok {
			return nil, unsupported(ctx, "pads are not constant")
		}
		pads = v
	}
	value := n.Attrs.Float("value", 0)
	if n.Input(2) != "" {
		v, ok := constantFloat(n, 2)
		if !ok {
			return nil, unsupported(ctx, "pad value is not constant")
		}
		value = v
	}

	spatial, err := spatialPads(ctx, ctx.Shape(n.Input(0)), pads)
	if err != nil {
		return nil, err
	}
	l := newTensorOp(ctx, "Pad", "layers/pad_exec")
	return l.
		set("input", ctx.Buffer(n.Input(0)).Name).
		set("padding", spatial).
		set("value", value), nil
}

// spatialPads drops the batch and channel entries of pads, which must be
// zero. Rank 2 inputs keep all entries.
func spatialPads(ctx *Context, in tensor.Shape, pads []int) ([]int, error) {
	rank := len(in)
	if len(pads) != 2*rank {
		return nil, unsupported(ctx, "pads %v do not match input %s", pads, in)
	}
	switch rank {
	case 2:
		return pads, nil
	case 3, 4:
		if pads[0] != 0 || pads[1] != 0 || pads[rank] != 0 || pads[rank+1] != 0 {
			return nil, unsupported(ctx, "padding only the spatial axes is supported, pads %v", pads)
		}
		out := append([]int{}, pads[2:rank]...)
		return append(out, pads[rank+2:]...), nil
	default:
		return nil, unsupported(ctx, "input rank %d", rank)
	}
}
