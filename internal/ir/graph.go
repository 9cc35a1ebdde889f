package ir

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/picogen/internal/tensor"
)

// EdgeInfo describes a declared graph input or output.
type EdgeInfo struct {
	ID       TensorID
	ElemType int32
	Shape    tensor.Shape
}

// RawNode is a node as read from the interchange format.
type RawNode struct {
	Name    string
	OpType  string
	Inputs  []TensorID
	Outputs []TensorID
	Attrs   Attrs
}

// RawGraph is the format-neutral input to New.
type RawGraph struct {
	Name         string
	Nodes        []RawNode
	Inputs       []EdgeInfo
	Outputs      []EdgeInfo
	Initializers map[TensorID]*tensor.Array
	ValueInfo    []EdgeInfo
}

// Options configures graph construction.
type Options struct {
	// Logger receives structural diagnostics (default: logrus standard logger).
	Logger logrus.FieldLogger
}

// Graph is the mutable compute graph.
type Graph struct {
	Name    string
	Inputs  []EdgeInfo
	Outputs []EdgeInfo

	nodes     []*Node
	constants map[TensorID]*tensor.Array
	shapes    map[TensorID]tensor.Shape
	producers map[TensorID]NodeID
	consumers map[TensorID][]NodeID
	log       logrus.FieldLogger
}

// New builds a graph from raw. Every initializer consumed by a node is
// attached to that node as a constant input. Unnamed nodes are named after
// their op type and outputs.
func New(raw RawGraph, opts ...Options) (*Graph, error) {
	opt := Options{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}

	g := &Graph{
		Name:      raw.Name,
		constants: make(map[TensorID]*tensor.Array, len(raw.Initializers)),
		shapes:    make(map[TensorID]tensor.Shape),
		log:       opt.Logger,
	}
	for id, v := range raw.Initializers {
		g.constants[id] = v
	}
	for _, in := range raw.Inputs {
		if _, isConst := g.constants[in.ID]; isConst {
			continue
		}
		g.Inputs = append(g.Inputs, cloneEdge(in))
	}
	for _, out := range raw.Outputs {
		g.Outputs = append(g.Outputs, cloneEdge(out))
	}
	for _, vi := range raw.ValueInfo {
		if vi.Shape != nil {
			g.shapes[vi.ID] = vi.Shape.Clone()
		}
	}

	seen := make(map[TensorID]string)
	for i, rn := range raw.Nodes {
		if rn.OpType == "" {
			return nil, fmt.Errorf("node %d (%q): %w", i, rn.Name, ErrEmptyOpType)
		}
		name := rn.Name
		if name == "" {
			name = rn.OpType + "_" + strings.Join(rn.Outputs, "_")
		}
		n := &Node{
			ID:      NodeID(i),
			Name:    name,
			OpType:  rn.OpType,
			Attrs:   rn.Attrs,
			Inputs:  append([]TensorID(nil), rn.Inputs...),
			Outputs: append([]TensorID(nil), rn.Outputs...),
		}
		if n.Attrs == nil {
			n.Attrs = Attrs{}
		}
		for _, out := range n.Outputs {
			if out == "" {
				continue
			}
			if prev, dup := seen[out]; dup {
				return nil, fmt.Errorf("tensor %q (nodes %q and %q): %w", out, prev, name, ErrDuplicateProducer)
			}
			seen[out] = name
		}
		for _, in := range n.Inputs {
			if v, ok := g.constants[in]; ok {
				n.setInputTensor(in, v)
			}
		}
		g.nodes = append(g.nodes, n)
	}

	g.relink()
	return g, nil
}

func cloneEdge(e EdgeInfo) EdgeInfo {
	return EdgeInfo{ID: e.ID, ElemType: e.ElemType, Shape: e.Shape.Clone()}
}

// relink recomputes producer, consumer, parent and child relations of the
// live nodes from their inputs and outputs.
func (g *Graph) relink() {
	g.producers = make(map[TensorID]NodeID)
	g.consumers = make(map[TensorID][]NodeID)
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		n.parents = nil
		n.children = nil
		for _, out := range n.Outputs {
			if out != "" {
				g.producers[out] = n.ID
			}
		}
	}
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		for _, in := range n.Inputs {
			if in == "" {
				continue
			}
			g.consumers[in] = appendUnique(g.consumers[in], n.ID)
			if p, ok := g.producers[in]; ok {
				n.parents = appendUnique(n.parents, p)
				g.nodes[p].children = appendUnique(g.nodes[p].children, n.ID)
			}
		}
	}
}

// Logger returns the graph's diagnostic logger.
func (g *Graph) Logger() logrus.FieldLogger { return g.log }

// Nodes returns the live nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	count := 0
	for _, n := range g.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// Node returns the live node for id, or nil if it was removed.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Parents returns the live producers of id's inputs.
func (g *Graph) Parents(id NodeID) []*Node {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	return g.resolve(n.parents)
}

// Children returns the live consumers of id's outputs.
func (g *Graph) Children(id NodeID) []*Node {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	return g.resolve(n.children)
}

func (g *Graph) resolve(ids []NodeID) []*Node {
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n := g.Node(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Producer returns the live node producing t.
func (g *Graph) Producer(t TensorID) (*Node, bool) {
	id, ok := g.producers[t]
	if !ok {
		return nil, false
	}
	n := g.Node(id)
	return n, n != nil
}

// Consumers returns the live nodes reading t, in declaration order.
func (g *Graph) Consumers(t TensorID) []*Node {
	return g.resolve(g.consumers[t])
}

// RemoveNode deletes the node and, recursively, every parent left without
// children. Parents producing a declared graph output are kept. Removing an
// absent node is a no-op.
func (g *Graph) RemoveNode(id NodeID) {
	n := g.Node(id)
	if n == nil {
		return
	}
	g.nodes[id] = nil
	g.log.WithFields(logrus.Fields{"node": n.Name, "op": n.OpType}).Debug("removed node")

	outputs := g.outputSet()
	for _, pid := range n.parents {
		p := g.Node(pid)
		if p == nil {
			continue
		}
		p.children = without(p.children, id)
		if len(p.children) == 0 && !p.producesAny(outputs) {
			g.RemoveNode(pid)
		}
	}
	for _, cid := range n.children {
		if c := g.Node(cid); c != nil {
			c.parents = without(c.parents, id)
		}
	}
	g.dropIndex(n)
}

func (g *Graph) dropIndex(n *Node) {
	for _, out := range n.Outputs {
		if g.producers[out] == n.ID {
			delete(g.producers, out)
		}
	}
	for _, in := range n.Inputs {
		if ids, ok := g.consumers[in]; ok {
			if ids = without(ids, n.ID); len(ids) == 0 {
				delete(g.consumers, in)
			} else {
				g.consumers[in] = ids
			}
		}
	}
}

// Unlink deletes one node without cascading into its parents.
func (g *Graph) Unlink(id NodeID) {
	n := g.Node(id)
	if n == nil {
		return
	}
	g.nodes[id] = nil
	g.log.WithFields(logrus.Fields{"node": n.Name, "op": n.OpType}).Debug("unlinked node")
	g.relink()
}

// ReplaceInput rewrites every live node reading old to read replacement
// instead. A constant value known for replacement is attached to the
// rewritten nodes.
func (g *Graph) ReplaceInput(old, replacement TensorID) {
	value, isConst := g.constants[replacement]
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		rewritten := false
		for i, in := range n.Inputs {
			if in == old {
				n.Inputs[i] = replacement
				rewritten = true
			}
		}
		if rewritten && isConst {
			n.setInputTensor(replacement, value)
		}
	}
	g.relink()
}

// RetargetOutput renames a declared graph output, keeping its element type
// and shape.
func (g *Graph) RetargetOutput(old, replacement TensorID) {
	for i := range g.Outputs {
		if g.Outputs[i].ID == old {
			g.Outputs[i].ID = replacement
		}
	}
}

// AttachConstant records v as the compile-time value of input t on node id.
func (g *Graph) AttachConstant(id NodeID, t TensorID, v *tensor.Array) {
	n := g.Node(id)
	if n == nil {
		return
	}
	g.constants[t] = v
	n.setInputTensor(t, v)
}

// Constant returns the compile-time value of t, if any.
func (g *Graph) Constant(t TensorID) (*tensor.Array, bool) {
	v, ok := g.constants[t]
	return v, ok
}

// Constants returns a copy of every known constant tensor.
func (g *Graph) Constants() map[TensorID]*tensor.Array {
	out := make(map[TensorID]*tensor.Array, len(g.constants))
	for k, v := range g.constants {
		out[k] = v
	}
	return out
}

// IsInput reports whether t is a declared graph input.
func (g *Graph) IsInput(t TensorID) bool {
	_, ok := findEdge(g.Inputs, t)
	return ok
}

// IsOutput reports whether t is a declared graph output.
func (g *Graph) IsOutput(t TensorID) bool {
	_, ok := findEdge(g.Outputs, t)
	return ok
}

// IsConstant reports whether t has a compile-time value.
func (g *Graph) IsConstant(t TensorID) bool {
	_, ok := g.constants[t]
	return ok
}

// ShapeOf returns the best known shape of t: the declared input or output
// shape, then the constant's shape, then the shape table. Declarations
// without a shape are skipped. It returns nil when nothing is known.
func (g *Graph) ShapeOf(t TensorID) tensor.Shape {
	if e, ok := findEdge(g.Inputs, t); ok && e.Shape != nil {
		return e.Shape
	}
	if e, ok := findEdge(g.Outputs, t); ok && e.Shape != nil {
		return e.Shape
	}
	if v, ok := g.constants[t]; ok {
		return v.Shape
	}
	return g.shapes[t]
}

// DeclaredShape returns the shape t was declared with as a graph input or
// output. Declarations without a shape are ignored.
func (g *Graph) DeclaredShape(t TensorID) (tensor.Shape, bool) {
	for _, edges := range [][]EdgeInfo{g.Inputs, g.Outputs} {
		if e, ok := findEdge(edges, t); ok && e.Shape != nil {
			return e.Shape, true
		}
	}
	return nil, false
}

// TableShape returns the shape table entry for t.
func (g *Graph) TableShape(t TensorID) (tensor.Shape, bool) {
	s, ok := g.shapes[t]
	return s, ok
}

// SetShape records s in the shape table.
func (g *Graph) SetShape(t TensorID, s tensor.Shape) {
	g.shapes[t] = s.Clone()
}

// ShapeTable returns a copy of the shape table.
func (g *Graph) ShapeTable() map[TensorID]tensor.Shape {
	out := make(map[TensorID]tensor.Shape, len(g.shapes))
	for k, v := range g.shapes {
		out[k] = v.Clone()
	}
	return out
}

func (g *Graph) outputSet() map[TensorID]bool {
	out := make(map[TensorID]bool, len(g.Outputs))
	for _, e := range g.Outputs {
		out[e.ID] = true
	}
	return out
}

func findEdge(edges []EdgeInfo, t TensorID) (EdgeInfo, bool) {
	for _, e := range edges {
		if e.ID == t {
			return e, true
		}
	}
	return EdgeInfo{}, false
}
