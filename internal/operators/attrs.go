package operators

import "github.com/born-ml/picogen/internal/ir"

// intsAttr returns the named int list attribute, or def when absent.
func intsAttr(n *ir.Node, name string, def ...int) []int {
	vals := n.Attrs.Ints(name)
	if vals == nil {
		return def
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(v)
	}
	return out
}

// repeat returns a list of n copies of v.
func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// padsOrNil returns pads, or nil when every entry is zero.
func padsOrNil(pads []int) []int {
	for _, p := range pads {
		if p != 0 {
			return pads
		}
	}
	return nil
}

// autoPadSet reports whether n asks for automatic padding.
func autoPadSet(n *ir.Node) bool {
	mode := n.Attrs.Str("auto_pad", "NOTSET")
	return mode != "NOTSET" && mode != ""
}

// constantInts returns the value of input i as ints when it is a
// compile-time constant.
func constantInts(n *ir.Node, i int) ([]int, bool) {
	v, ok := n.InputTensor(n.Input(i))
	if !ok {
		return nil, false
	}
	return v.Ints(), true
}

// constantFloat returns the first element of input i when it is a
// compile-time constant.
func constantFloat(n *ir.Node, i int) (float32, bool) {
	v, ok := n.InputTensor(n.Input(i))
	if !ok || v.Len() == 0 {
		return 0, false
	}
	return float32(v.Data[0]), true
}
