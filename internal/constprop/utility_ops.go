package constprop

import (
	"fmt"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// registerUtilityOps adds shape-preserving operators and Constant.
func (e *Engine) registerUtilityOps() {
	for _, op := range []string{
		"BatchNormalization", "Clip", "Relu", "Sigmoid", "Tanh",
		"Softmax", "LRN", "Identity",
	} {
		e.Register(op, Transfer{Fn: transferSameShape})
	}
	e.Register("Dropout", Transfer{Fn: transferDropout})
	e.Register("Constant", Transfer{Fn: transferConstant, Folds: true})
}

func transferSameShape(_ *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	return []State{ShapeOnly(in.Shape)}, nil
}

// transferDropout covers the data output and the optional mask.
func transferDropout(_ *ir.Node, inputs []State) ([]State, error) {
	in, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	return []State{ShapeOnly(in.Shape), ShapeOnly(in.Shape)}, nil
}

func transferConstant(node *ir.Node, _ []State) ([]State, error) {
	if v := node.Attrs.Tensor("value"); v != nil {
		return []State{Exact(v)}, nil
	}
	a := node.Attrs
	switch {
	case a.Has("value_float"):
		v, _ := tensor.FromFloat32s(tensor.Shape{}, []float32{a.Float("value_float", 0)})
		return []State{Exact(v)}, nil
	case a.Has("value_floats"):
		fs := a["value_floats"].Floats
		v, _ := tensor.FromFloat32s(tensor.Shape{len(fs)}, fs)
		return []State{Exact(v)}, nil
	case a.Has("value_int"):
		v, _ := tensor.FromInt64s(tensor.Shape{}, []int64{a.Int("value_int", 0)})
		return []State{Exact(v)}, nil
	case a.Has("value_ints"):
		return []State{Exact(tensor.Vector(a.Ints("value_ints")...))}, nil
	}
	return nil, fmt.Errorf("constant %q has no supported value attribute", node.Name)
}
