package weights

import (
	"fmt"

	"github.com/born-ml/picogen/internal/ir"
)

// Format constants.
const (
	MagicBytes = "FD\n"
	EndMarker  = "end\n"
)

// ignoredOps carry constant inputs that configure the operation rather than
// hold weights.
var ignoredOps = map[string]bool{
	"Reshape": true,
	"Mul":     true,
	"Clip":    true,
	"Pad":     true,
}

// Eligible reports whether n is written to the weights file.
func Eligible(n *ir.Node) bool {
	return len(n.ConstantInputs()) > 0 && !ignoredOps[n.OpType]
}

// fieldCount returns the number of dimension fields written for rank.
func fieldCount(rank int) (int, error) {
	switch rank {
	case 1:
		return 1, nil
	case 2:
		return 3, nil
	case 3, 4:
		return 4, nil
	default:
		return 0, fmt.Errorf("rank %d: %w", rank, ErrUnsupportedRank)
	}
}

// dimFields returns the dimension fields of a tensor of the given shape.
func dimFields(shape []int) ([]uint32, error) {
	if _, err := fieldCount(len(shape)); err != nil {
		return nil, err
	}
	switch len(shape) {
	case 4:
		return []uint32{uint32(shape[0]), uint32(shape[1]), uint32(shape[2]), uint32(shape[3])}, nil
	case 3:
		return []uint32{uint32(shape[0]), uint32(shape[1]), 1, uint32(shape[2])}, nil
	case 2:
		return []uint32{1, uint32(shape[0]), uint32(shape[1])}, nil
	default:
		return []uint32{uint32(shape[0])}, nil
	}
}

// Layout describes the layers of a weights file.
type Layout struct {
	ModelName string
	Layers    []LayerLayout
}

// LayerLayout describes one layer of a weights file.
type LayerLayout struct {
	Name     string
	OpType   string
	Tensors  []ir.TensorID
	Ranks    []int
	ZeroBias bool
}

// LayoutOf returns the layout of the weights file for nodes.
func LayoutOf(modelName string, nodes []*ir.Node) (*Layout, error) {
	l := &Layout{ModelName: modelName}
	for _, n := range nodes {
		if !Eligible(n) {
			continue
		}
		ll := LayerLayout{Name: n.Name, OpType: n.OpType}
		for _, id := range n.ConstantInputs() {
			v, _ := n.InputTensor(id)
			if _, err := fieldCount(v.Rank()); err != nil {
				return nil, fmt.Errorf("layer %s input %s: %w", n.Name, id, err)
			}
			ll.Tensors = append(ll.Tensors, id)
			ll.Ranks = append(ll.Ranks, v.Rank())
		}
		ll.ZeroBias = len(ll.Tensors) == 1 && n.OpType != "Add"
		l.Layers = append(l.Layers, ll)
	}
	return l, nil
}

// File is a decoded weights file.
type File struct {
	ModelName string
	Layers    []Layer
}

// Layer is one decoded layer.
type Layer struct {
	Name     string
	OpType   string
	Entries  []Entry
	ZeroBias bool
}

// Entry is one decoded tensor. Repeated entries refer to a tensor written
// by an earlier layer and carry no data.
type Entry struct {
	Tensor   ir.TensorID
	Dims     []uint32
	Data     []float32
	Repeated bool
}
