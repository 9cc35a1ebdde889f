package constprop

import (
	"fmt"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// registerMathOps adds arithmetic operators.
func (e *Engine) registerMathOps() {
	e.Register("MatMul", Transfer{Fn: transferMatMul})
	e.Register("Gemm", Transfer{Fn: transferGemm})
	e.Register("Add", Transfer{Fn: elementwise(func(a, b float64) float64 { return a + b }), Folds: true})
	e.Register("Sub", Transfer{Fn: elementwise(func(a, b float64) float64 { return a - b }), Folds: true})
	e.Register("Mul", Transfer{Fn: elementwise(func(a, b float64) float64 { return a * b }), Folds: true})
	e.Register("Div", Transfer{Fn: elementwise(divide), Folds: true})
}

func divide(a, b float64) float64 { return a / b }

// elementwise builds a broadcasting binary transfer. Values are folded when
// both operands are known.
func elementwise(op func(a, b float64) float64) TransferFunc {
	return func(node *ir.Node, inputs []State) ([]State, error) {
		a, err := need(inputs, 0)
		if err != nil {
			return nil, err
		}
		b, err := need(inputs, 1)
		if err != nil {
			return nil, err
		}
		out, _, err := tensor.BroadcastShapes(a.Shape, b.Shape)
		if err != nil {
			return nil, err
		}
		if !a.HasValue() || !b.HasValue() {
			return []State{ShapeOnly(out)}, nil
		}
		v := broadcastApply(a.Value, b.Value, out, op)
		if a.Value.DType.IsInteger() && node.OpType == "Div" {
			for i, x := range v.Data {
				v.Data[i] = float64(int64(x))
			}
		}
		return []State{Exact(v)}, nil
	}
}

func broadcastApply(a, b *tensor.Array, out tensor.Shape, op func(a, b float64) float64) *tensor.Array {
	res := tensor.Zeros(out, a.DType)
	strides := out.ComputeStrides()
	aStrides := broadcastStrides(a.Shape, out)
	bStrides := broadcastStrides(b.Shape, out)
	for flat := range res.Data {
		ai, bi, rem := 0, 0, flat
		for d, s := range strides {
			idx := rem / s
			rem %= s
			ai += idx * aStrides[d]
			bi += idx * bStrides[d]
		}
		res.Data[flat] = op(a.Data[ai], b.Data[bi])
	}
	return res
}

// broadcastStrides returns strides of s aligned to out, zero on broadcast dims.
func broadcastStrides(s, out tensor.Shape) []int {
	own := s.ComputeStrides()
	res := make([]int, len(out))
	offset := len(out) - len(s)
	for i := range s {
		if s[i] != 1 {
			res[offset+i] = own[i]
		}
	}
	return res
}

func transferMatMul(_ *ir.Node, inputs []State) ([]State, error) {
	a, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	b, err := need(inputs, 1)
	if err != nil {
		return nil, err
	}
	out, err := matmulShape(a.Shape, b.Shape)
	if err != nil {
		return nil, err
	}
	return []State{ShapeOnly(out)}, nil
}

// matmulShape follows numpy.matmul: 1-D operands are promoted and the added
// axis removed again; leading dims broadcast.
func matmulShape(a, b tensor.Shape) (tensor.Shape, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, fmt.Errorf("matmul of scalar operands %v, %v", a, b)
	}
	aVec, bVec := len(a) == 1, len(b) == 1
	if aVec {
		a = tensor.Shape{1, a[0]}
	}
	if bVec {
		b = tensor.Shape{b[0], 1}
	}
	m, k := a[len(a)-2], a[len(a)-1]
	k2, n := b[len(b)-2], b[len(b)-1]
	if k != k2 {
		return nil, fmt.Errorf("matmul inner dims differ: %v x %v", a, b)
	}
	batch, _, err := tensor.BroadcastShapes(a[:len(a)-2], b[:len(b)-2])
	if err != nil {
		return nil, err
	}
	out := append(tensor.Shape{}, batch...)
	if !aVec {
		out = append(out, m)
	}
	if !bVec {
		out = append(out, n)
	}
	return out, nil
}

func transferGemm(node *ir.Node, inputs []State) ([]State, error) {
	a, err := need(inputs, 0)
	if err != nil {
		return nil, err
	}
	b, err := need(inputs, 1)
	if err != nil {
		return nil, err
	}
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("gemm needs rank-2 operands, got %v and %v", a.Shape, b.Shape)
	}
	m, k := a.Shape[0], a.Shape[1]
	if node.Attrs.Int("transA", 0) != 0 {
		m, k = k, m
	}
	k2, n := b.Shape[0], b.Shape[1]
	if node.Attrs.Int("transB", 0) != 0 {
		k2, n = n, k2
	}
	if k != k2 {
		return nil, fmt.Errorf("gemm inner dims differ: %v x %v", a.Shape, b.Shape)
	}
	return []State{ShapeOnly(tensor.Shape{m, n})}, nil
}
