package constprop

import (
	"fmt"
	"math"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// registerPoolOps adds sliding-window operators.
func (e *Engine) registerPoolOps() {
	e.Register("MaxPool", Transfer{Fn: transferPool})
	e.Register("AveragePool", Transfer{Fn: transferPool})
	e.Register("Conv", Transfer{Fn: transferConv})
	e.Register("GlobalAveragePool", Transfer{Fn: transferGlobalPool})
	e.Register("GlobalMaxPool", Transfer{Fn: transferGlobalPool})
}

// need returns input i, failing when its shape is unknown.
func need(inputs []State, i int) (State, error) {
	if i >= len(inputs) || !inputs[i].Known {
		return State{}, fmt.Errorf("input %d: %w", i, errUnknownInput)
	}
	return inputs[i], nil
}

func toInts(v []int64) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}

// window holds the sliding-window attributes shared by pooling and convolution.
type window struct {
	kernel    []int
	strides   []int
	pads      []int
	dilations []int
	ceil      bool
}

func readWindow(node *ir.Node, kernel []int) (window, error) {
	n := len(kernel)
	w := window{kernel: kernel, ceil: node.Attrs.Int("ceil_mode", 0) != 0}

	if pad := node.Attrs.Str("auto_pad", "NOTSET"); pad != "NOTSET" && pad != "VALID" {
		return w, fmt.Errorf("auto_pad %q not supported", pad)
	}

	w.strides = fill(toInts(node.Attrs.Ints("strides")), n, 1)
	w.dilations = fill(toInts(node.Attrs.Ints("dilations")), n, 1)
	w.pads = fill(toInts(node.Attrs.Ints("pads")), 2*n, 0)
	if len(w.strides) != n || len(w.dilations) != n || len(w.pads) != 2*n {
		return w, fmt.Errorf("window attributes do not match %d spatial dims", n)
	}
	return w, nil
}

func fill(v []int, n, def int) []int {
	if len(v) > 0 {
		return v
	}
	out := make([]int, n)
	for i := range out {
		out[i] = def
	}
	return out
}

// spatial computes the output extent of each spatial dim.
func (w window) spatial(dims []int) ([]int, error) {
	if len(dims) != len(w.kernel) {
		return nil, fmt.Errorf("kernel rank %d does not match %d spatial dims", len(w.kernel), len(dims))
	}
	out := make([]int, len(dims))
	for i, d := range dims {
		span := w.dilations[i]*(w.kernel[i]-1) + 1
		extent := d + w.pads[i] + w.pads[i+len(dims)] - span
		if extent < 0 || w.strides[i] <= 0 {
			return nil, fmt.Errorf("window %d does not fit dim %d of size %d", w.kernel[i], i, d)
		}
		q := float64(extent) / float64(w.strides[i])
		if w.ceil {
			out[i] = int(math.Ceil(q)) + 1
		} else {
			out[i] = int(math.Floor(q)) + 1
		}
	}
	return out, nil
}

func transferPool(node *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	if len(in.Shape) < 3 {
		return nil, fmt.Errorf("pool input rank %d, need at least 3", len(in.Shape))
	}
	w, err := readWindow(node, toInts(node.Attrs.Ints("kernel_shape")))
	if err != nil {
		return nil, err
	}
	dims, err := w.spatial(in.Shape[2:])
	if err != nil {
		return nil, err
	}
	out := append(tensor.Shape{in.Shape[0], in.Shape[1]}, dims...)
	return []State{ShapeOnly(out), ShapeOnly(out)}, nil
}

func transferConv(node *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	weight, err := need(inputs, 1)
	if err != nil {
		return nil, err
	}
	if len(in.Shape) < 3 || len(weight.Shape) != len(in.Shape) {
		return nil, fmt.Errorf("conv input %v and weight %v ranks disagree", in.Shape, weight.Shape)
	}
	kernel := toInts(node.Attrs.Ints("kernel_shape"))
	if len(kernel) == 0 {
		kernel = []int(weight.Shape[2:].Clone())
	}
	w, err := readWindow(node, kernel)
	if err != nil {
		return nil, err
	}
	dims, err := w.spatial(in.Shape[2:])
	if err != nil {
		return nil, err
	}
	out := append(tensor.Shape{in.Shape[0], weight.Shape[0]}, dims...)
	return []State{ShapeOnly(out)}, nil
}

func transferGlobalPool(_ *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	if len(in.Shape) < 3 {
		return nil, fmt.Errorf("global pool input rank %d, need at least 3", len(in.Shape))
	}
	out := in.Shape.Clone()
	for i := 2; i < len(out); i++ {
		out[i] = 1
	}
	return []State{ShapeOnly(out)}, nil
}
