package simplify

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/picogen/internal/constprop"
	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// Options configures a Simplifier.
type Options struct {
	// Logger receives rewrite diagnostics (default: logrus standard logger).
	Logger logrus.FieldLogger
}

// Simplifier applies graph rewrites.
type Simplifier struct {
	log logrus.FieldLogger
}

// Conflict records a shape table entry replaced by an inferred shape.
type Conflict struct {
	Tensor   ir.TensorID
	Declared tensor.Shape
	Inferred tensor.Shape
}

// Report summarises the rewrites applied by Run.
type Report struct {
	Folded   []string
	Bypassed []string
}

// New creates a Simplifier.
func New(opts ...Options) *Simplifier {
	opt := Options{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	return &Simplifier{log: opt.Logger}
}

// Run removes folded constants and then no-op nodes.
func (s *Simplifier) Run(g *ir.Graph, res *constprop.Result) (*Report, error) {
	report := &Report{Folded: s.RemoveConstants(g, res)}
	bypassed, err := s.RemoveNops(g, res)
	if err != nil {
		return nil, err
	}
	report.Bypassed = bypassed
	return report, nil
}

// RemoveConstants deletes every node whose outputs all have known values.
// Each folded value is attached to the surviving consumers as a constant
// input. Nodes producing a declared graph output are kept.
func (s *Simplifier) RemoveConstants(g *ir.Graph, res *constprop.Result) []string {
	var removed []string
	for _, n := range g.Nodes() {
		if g.Node(n.ID) == nil || !res.Folded(n) {
			continue
		}
		entry := s.log.WithFields(logrus.Fields{"node": n.Name, "op": n.OpType})
		if producesOutput(g, n) {
			entry.Warn("constant node produces a graph output, keeping it")
			continue
		}
		for _, out := range n.Outputs {
			v, ok := res.Value(out)
			if !ok {
				continue
			}
			for _, c := range g.Consumers(out) {
				g.AttachConstant(c.ID, out, v)
			}
		}
		g.RemoveNode(n.ID)
		removed = append(removed, n.Name)
		entry.Debug("removed constant node")
	}
	return removed
}

// RemoveNops bypasses Unsqueeze, Dropout, Identity and shape-preserving
// Reshape nodes: consumers are rewired to the node's data input and a
// declared graph output it produced is renamed to that input.
func (s *Simplifier) RemoveNops(g *ir.Graph, res *constprop.Result) ([]string, error) {
	var removed []string
	for _, n := range g.Nodes() {
		if g.Node(n.ID) == nil || !s.isNop(g, n, res) {
			continue
		}
		in, out := n.Input(0), n.Output(0)
		if in == "" || out == "" {
			return removed, errors.Errorf("nop %q (%s) lacks a data input or output", n.Name, n.OpType)
		}
		if extra := extraOutputInUse(g, n); extra != "" {
			s.log.WithFields(logrus.Fields{"node": n.Name, "op": n.OpType, "tensor": extra}).
				Debug("secondary output in use, keeping node")
			continue
		}

		g.Unlink(n.ID)
		if g.IsOutput(out) {
			g.RetargetOutput(out, in)
		}
		g.ReplaceInput(out, in)
		removed = append(removed, n.Name)
		s.log.WithFields(logrus.Fields{"node": n.Name, "op": n.OpType, "tensor": in}).Info("removed nop")
	}
	return removed, nil
}

func (s *Simplifier) isNop(g *ir.Graph, n *ir.Node, res *constprop.Result) bool {
	switch n.OpType {
	case "Unsqueeze", "Dropout", "Identity":
		return true
	case "Reshape":
		inShape, ok := res.Shape(n.Input(0))
		if !ok {
			inShape = g.ShapeOf(n.Input(0))
		}
		target, ok := res.Value(n.Input(1))
		if !ok {
			target, ok = n.InputTensor(n.Input(1))
		}
		if !ok || inShape == nil {
			return false
		}
		return ReshapeIsNop(inShape, target.Int64s())
	default:
		return false
	}
}

// ReshapeIsNop reports whether reshaping in to target keeps every dimension:
// each target entry equals the input dimension, copies it (0), or is a
// trailing -1.
func ReshapeIsNop(in tensor.Shape, target []int64) bool {
	if len(target) != len(in) {
		return false
	}
	for i, t := range target {
		switch {
		case t == 0:
		case t == -1 && i == len(target)-1:
		case int(t) == in[i]:
		default:
			return false
		}
	}
	return true
}

// MergeShapes writes every inferred shape into the graph's shape table. An
// existing entry that disagrees is replaced and reported as a Conflict. A
// declared input or output shape that disagrees is reported too but keeps
// precedence in ShapeOf.
func (s *Simplifier) MergeShapes(g *ir.Graph, res *constprop.Result) []Conflict {
	ids := make([]ir.TensorID, 0, len(res.States))
	for id, st := range res.States {
		if st.Known {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var conflicts []Conflict
	for _, id := range ids {
		inferred := res.States[id].Shape
		if declared, ok := g.DeclaredShape(id); ok {
			if !declared.Equal(inferred) {
				conflicts = append(conflicts, Conflict{Tensor: id, Declared: declared.Clone(), Inferred: inferred.Clone()})
				s.log.WithFields(logrus.Fields{
					"tensor":   id,
					"declared": declared.String(),
					"inferred": inferred.String(),
				}).Warn("shape conflict, keeping declared shape")
			}
		} else if declared, ok := g.TableShape(id); ok && !declared.Equal(inferred) {
			conflicts = append(conflicts, Conflict{Tensor: id, Declared: declared, Inferred: inferred.Clone()})
			s.log.WithFields(logrus.Fields{
				"tensor":   id,
				"declared": declared.String(),
				"inferred": inferred.String(),
			}).Warn("shape conflict, using inferred shape")
		}
		g.SetShape(id, inferred)
	}
	return conflicts
}

func producesOutput(g *ir.Graph, n *ir.Node) bool {
	for _, out := range n.Outputs {
		if g.IsOutput(out) {
			return true
		}
	}
	return false
}

func extraOutputInUse(g *ir.Graph, n *ir.Node) ir.TensorID {
	for _, out := range n.Outputs[1:] {
		if out != "" && (len(g.Consumers(out)) > 0 || g.IsOutput(out)) {
			return out
		}
	}
	return ""
}
