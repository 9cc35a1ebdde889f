package constprop

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// TransferFunc computes output states from input states. Missing inputs are
// passed as Unknown. Returning fewer states than the node has outputs leaves
// the rest unknown.
type TransferFunc func(node *ir.Node, inputs []State) ([]State, error)

// Transfer is a registered transfer function.
type Transfer struct {
	Fn TransferFunc

	// Folds marks transfer functions that compute values. Graph inputs and
	// constants reach every other transfer function as shape-only states.
	Folds bool
}

// Options configures an Engine.
type Options struct {
	// Logger receives coverage warnings (default: logrus standard logger).
	Logger logrus.FieldLogger

	// MaxIterations bounds node visits (default: 64 per node).
	MaxIterations int
}

// Engine runs constant and shape propagation.
type Engine struct {
	transfers map[string]Transfer
	log       logrus.FieldLogger
	maxIter   int
}

// Result is the fixed point reached by Run.
type Result struct {
	States     map[ir.TensorID]State
	Unhandled  []string
	Iterations int
}

// NewEngine creates an engine with every built-in transfer function.
func NewEngine(opts ...Options) *Engine {
	opt := Options{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	e := &Engine{
		transfers: make(map[string]Transfer),
		log:       opt.Logger,
		maxIter:   opt.MaxIterations,
	}

	e.registerPoolOps()
	e.registerShapeOps()
	e.registerMathOps()
	e.registerUtilityOps()

	return e
}

// Register adds or replaces the transfer function for opType.
func (e *Engine) Register(opType string, t Transfer) {
	e.transfers[opType] = t
}

// Supports reports whether opType has a transfer function.
func (e *Engine) Supports(opType string) bool {
	_, ok := e.transfers[opType]
	return ok
}

// SupportedOps returns the op types with transfer functions, sorted.
func (e *Engine) SupportedOps() []string {
	ops := make([]string, 0, len(e.transfers))
	for op := range e.transfers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Run propagates states through g until nothing changes.
func (e *Engine) Run(g *ir.Graph) (*Result, error) {
	states := make(map[ir.TensorID]State)
	for id, v := range g.Constants() {
		states[id] = Exact(v)
	}
	for _, in := range g.Inputs {
		if in.Shape != nil {
			states[in.ID] = ShapeOnly(in.Shape)
		}
	}

	nodes := g.Nodes()
	limit := e.maxIter
	if limit <= 0 {
		limit = 64 * (len(nodes) + 1)
	}

	queue := make([]ir.NodeID, 0, len(nodes))
	queued := make(map[ir.NodeID]bool, len(nodes))
	for _, n := range nodes {
		queue = append(queue, n.ID)
		queued[n.ID] = true
	}

	res := &Result{States: states}
	unhandled := make(map[ir.NodeID]bool)
	for len(queue) > 0 {
		if res.Iterations >= limit {
			return nil, fmt.Errorf("%w after %d visits", ErrNoFixpoint, res.Iterations)
		}
		res.Iterations++

		id := queue[0]
		queue = queue[1:]
		queued[id] = false
		node := g.Node(id)

		outs := e.visit(g, node, states, unhandled)
		for i, out := range node.Outputs {
			if out == "" {
				continue
			}
			next := Unknown()
			if i < len(outs) {
				next = outs[i]
			}
			prev, seen := states[out]
			if (!seen && !next.Known) || (seen && prev.Equal(next)) {
				continue
			}
			states[out] = next
			for _, c := range g.Consumers(out) {
				if !queued[c.ID] {
					queue = append(queue, c.ID)
					queued[c.ID] = true
				}
			}
		}
	}

	for _, n := range nodes {
		if unhandled[n.ID] {
			res.Unhandled = append(res.Unhandled, n.Name)
		}
	}
	return res, nil
}

func (e *Engine) visit(g *ir.Graph, node *ir.Node, states map[ir.TensorID]State, unhandled map[ir.NodeID]bool) []State {
	entry := e.log.WithFields(logrus.Fields{"node": node.Name, "op": node.OpType})

	t, ok := e.transfers[node.OpType]
	if !ok {
		if !unhandled[node.ID] {
			entry.Warn("no transfer function, using shape table")
			unhandled[node.ID] = true
		}
		outs := make([]State, len(node.Outputs))
		for i, out := range node.Outputs {
			if s, ok := g.TableShape(out); ok {
				outs[i] = ShapeOnly(s)
			}
		}
		return outs
	}

	inputs := make([]State, len(node.Inputs))
	for i, in := range node.Inputs {
		if in == "" {
			continue
		}
		s := states[in]
		if !t.Folds && (g.IsInput(in) || g.IsConstant(in)) {
			s = s.WithoutValue()
		}
		inputs[i] = s
	}

	outs, err := t.Fn(node, inputs)
	if err != nil {
		if errors.Is(err, errUnknownInput) {
			entry.WithError(err).Debug("transfer deferred")
		} else {
			entry.WithError(err).Warn("transfer failed")
		}
		return unknowns(len(node.Outputs))
	}
	return outs
}

// State returns the state of id, Unknown if none.
func (r *Result) State(id ir.TensorID) State {
	return r.States[id]
}

// Shape returns the propagated shape of id.
func (r *Result) Shape(id ir.TensorID) (tensor.Shape, bool) {
	s := r.States[id]
	return s.Shape, s.Known
}

// Value returns the propagated value of id.
func (r *Result) Value(id ir.TensorID) (*tensor.Array, bool) {
	s := r.States[id]
	return s.Value, s.Value != nil
}

// Folded reports whether every output of n has a known value.
func (r *Result) Folded(n *ir.Node) bool {
	if len(n.Outputs) == 0 {
		return false
	}
	for _, out := range n.Outputs {
		if out == "" {
			continue
		}
		if !r.States[out].HasValue() {
			return false
		}
	}
	return true
}
