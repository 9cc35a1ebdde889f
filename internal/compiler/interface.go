package compiler

import (
	"github.com/pkg/errors"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// checkInterface verifies that g has one input and one output that
// pico-cnn can bind to run(). Ranks 3 and 4 carry a leading batch
// dimension that must be 1; rank 2 tensors are a single channel.
func checkInterface(g *ir.Graph) error {
	if len(g.Inputs) != 1 {
		return errors.Wrapf(ErrUnsupportedGraph, "%d inputs, only one is supported", len(g.Inputs))
	}
	if len(g.Outputs) != 1 {
		return errors.Wrapf(ErrUnsupportedGraph, "%d outputs, only one is supported", len(g.Outputs))
	}
	if err := checkEdge(g, "input", g.Inputs[0].ID); err != nil {
		return err
	}
	return checkEdge(g, "output", g.Outputs[0].ID)
}

func checkEdge(g *ir.Graph, kind string, id ir.TensorID) error {
	shape := g.ShapeOf(id)
	if shape == nil {
		return errors.Wrapf(ErrUnsupportedGraph, "%s %q has no known shape", kind, id)
	}
	switch shape.Rank() {
	case 2:
		return nil
	case 3, 4:
		if shape[0] != 1 {
			return errors.Wrapf(ErrUnsupportedGraph, "%s %q has batch size %d", kind, id, shape[0])
		}
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedGraph, "%s %q has rank %d", kind, id, shape.Rank())
	}
}

// interfaceShapes returns the shapes bound to run().
func interfaceShapes(g *ir.Graph) (in, out tensor.Shape) {
	return g.ShapeOf(g.Inputs[0].ID), g.ShapeOf(g.Outputs[0].ID)
}
