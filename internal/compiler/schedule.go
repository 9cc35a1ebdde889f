package compiler

import (
	"github.com/pkg/errors"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/operators"
)

// Task is one step of the schedule.
type Task struct {
	Step int
	Node *ir.Node
	Impl operators.Implementation
}

// Schedule lists the nodes of g in declaration order, each with its
// implementation. Declaration order must already be topological: every
// input is a graph input, a constant, or produced at an earlier step.
func Schedule(g *ir.Graph, impls map[ir.NodeID]operators.Implementation) ([]Task, error) {
	available := make(map[ir.TensorID]bool)
	for _, in := range g.Inputs {
		available[in.ID] = true
	}

	nodes := g.Nodes()
	tasks := make([]Task, 0, len(nodes))
	for step, n := range nodes {
		for _, in := range n.Inputs {
			if in == "" || available[in] || n.HasConstantInput(in) || g.IsConstant(in) {
				continue
			}
			return nil, errors.Wrapf(ErrNotTopological, "node %q reads %q before it is produced", n.Name, in)
		}
		for _, out := range n.Outputs {
			if out != "" {
				available[out] = true
			}
		}

		impl, ok := impls[n.ID]
		if !ok {
			return nil, errors.Wrapf(operators.ErrNoImplementation, "node %q (%s) was not selected", n.Name, n.OpType)
		}
		tasks = append(tasks, Task{Step: step, Node: n, Impl: impl})
	}
	return tasks, nil
}

// Order returns the scheduled nodes.
func Order(tasks []Task) []*ir.Node {
	nodes := make([]*ir.Node, len(tasks))
	for i, t := range tasks {
		nodes[i] = t.Node
	}
	return nodes
}
