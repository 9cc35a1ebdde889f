package compiler

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/picogen/internal/codegen"
	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/memory"
	"github.com/born-ml/picogen/internal/operators"
	"github.com/born-ml/picogen/internal/parallel"
	"github.com/born-ml/picogen/internal/weights"
)

// Phase is the part of the generated program a fragment belongs to.
type Phase int

// Phases in program order. Declarations go to the class definition,
// allocations to the constructor, executions to run() and deletions to the
// destructor.
const (
	PhaseDeclaration Phase = iota
	PhaseAllocation
	PhaseExecution
	PhaseDeletion
)

func (p Phase) String() string {
	switch p {
	case PhaseDeclaration:
		return "declaration"
	case PhaseAllocation:
		return "allocation"
	case PhaseExecution:
		return "execution"
	case PhaseDeletion:
		return "deletion"
	default:
		return "unknown"
	}
}

// Fragment is one rendered piece of the program.
type Fragment struct {
	Phase Phase
	Owner string // Node or buffer name.
	Text  string
}

// Program is the emitted network code.
type Program struct {
	Fragments  []Fragment
	NumKernels int
	NumBiases  int
	RunParams  string
}

// Text concatenates the fragments of phase p in order.
func (p *Program) Text(phase Phase) string {
	var sb strings.Builder
	for _, f := range p.Fragments {
		if f.Phase == phase {
			sb.WriteString(f.Text)
		}
	}
	return sb.String()
}

// CheckOrder verifies that no execution precedes a declaration or
// allocation and no deletion precedes an execution.
func (p *Program) CheckOrder() error {
	rank := func(ph Phase) int {
		if ph == PhaseDeclaration {
			return int(PhaseAllocation)
		}
		return int(ph)
	}
	last := 0
	for i, f := range p.Fragments {
		r := rank(f.Phase)
		if r < last {
			return errors.Errorf("fragment %d (%s of %s) follows a later phase", i, f.Phase, f.Owner)
		}
		last = r
	}
	return nil
}

// piece is a fragment still to be rendered.
type piece struct {
	phase  Phase
	owner  string
	render func(codegen.Renderer) (string, error)
}

type emitter struct {
	g       *ir.Graph
	buffers *memory.Manager
	prog    *Program
	pieces  []piece
	owned   []*memory.Buffer
	seen    map[ir.TensorID]bool
}

// Emit renders the program for tasks. Buffers must already be assigned.
// Fragments are rendered concurrently within cfg and assembled in order.
func Emit(ctx context.Context, g *ir.Graph, tasks []Task, buffers *memory.Manager, r codegen.Renderer, cfg parallel.Config) (*Program, error) {
	e := &emitter{
		g:       g,
		buffers: buffers,
		prog:    &Program{},
		seen:    make(map[ir.TensorID]bool),
	}

	for _, in := range g.Inputs {
		if err := e.addBuffer(in.ID); err != nil {
			return nil, err
		}
	}
	for _, t := range tasks {
		if err := e.addWeights(t.Node); err != nil {
			return nil, err
		}
		for i, out := range t.Node.Outputs {
			if out == "" || (i > 0 && !g.IsOutput(out) && len(g.Consumers(out)) == 0) {
				continue
			}
			if err := e.addBuffer(out); err != nil {
				return nil, errors.WithMessagef(err, "node %q", t.Node.Name)
			}
		}
		e.add(PhaseDeclaration, t.Node.Name, t.Impl.Declaration)
		e.add(PhaseAllocation, t.Node.Name, t.Impl.Allocation)
	}
	for _, t := range tasks {
		t := t
		e.add(PhaseExecution, t.Node.Name, func(r codegen.Renderer) (string, error) {
			return r.Render("program/provenance", provenance(g, t))
		})
		e.add(PhaseExecution, t.Node.Name, t.Impl.Execution)
	}
	for _, t := range tasks {
		e.add(PhaseDeletion, t.Node.Name, t.Impl.Deletion)
	}
	for _, b := range e.owned {
		e.add(PhaseDeletion, b.Name, operators.BufferCleanup(b).Render)
	}

	texts := make([]string, len(e.pieces))
	err := parallel.For(ctx, len(e.pieces), cfg, func(_ context.Context, i int) error {
		p := e.pieces[i]
		text, err := p.render(r)
		if err != nil {
			return errors.WithMessagef(err, "%s of %s", p.phase, p.owner)
		}
		texts[i] = text
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, p := range e.pieces {
		if texts[i] == "" {
			continue
		}
		e.prog.Fragments = append(e.prog.Fragments, Fragment{Phase: p.phase, Owner: p.owner, Text: texts[i]})
	}
	e.prog.RunParams = runParams(g, buffers)
	return e.prog, nil
}

func (e *emitter) add(phase Phase, owner string, render func(codegen.Renderer) (string, error)) {
	e.pieces = append(e.pieces, piece{phase: phase, owner: owner, render: render})
}

// addBuffer declares and allocates the buffer of id once. Unused secondary
// outputs are skipped by the caller.
func (e *emitter) addBuffer(id ir.TensorID) error {
	if e.seen[id] {
		return nil
	}
	e.seen[id] = true
	b, err := e.buffers.BufferFor(e.g, id)
	if err != nil {
		return err
	}
	e.owned = append(e.owned, b)
	e.add(PhaseDeclaration, b.Name, operators.BufferDeclaration(b).Render)
	e.add(PhaseAllocation, b.Name, operators.BufferAllocation(b).Render)
	return nil
}

// addWeights binds the constant inputs of a weights-file layer to the next
// kernel or bias table positions, in the order the weights file lists them.
func (e *emitter) addWeights(n *ir.Node) error {
	if !weights.Eligible(n) {
		return nil
	}
	for _, id := range n.ConstantInputs() {
		if e.seen[id] {
			continue
		}
		e.seen[id] = true
		b, err := e.buffers.BufferFor(e.g, id)
		if err != nil {
			return errors.WithMessagef(err, "node %q", n.Name)
		}

		pos := e.prog.NumKernels
		if operators.WeightTable(b) == operators.BiasTable {
			pos = e.prog.NumBiases
		}
		code, err := operators.KernelAllocation(b, pos)
		if err != nil {
			return errors.WithMessagef(err, "node %q", n.Name)
		}
		if operators.WeightTable(b) == operators.BiasTable {
			e.prog.NumBiases++
		} else {
			e.prog.NumKernels++
		}

		e.owned = append(e.owned, b)
		e.add(PhaseDeclaration, b.Name, operators.BufferDeclaration(b).Render)
		e.add(PhaseAllocation, b.Name, code.Render)
	}
	return nil
}

func provenance(g *ir.Graph, t Task) codegen.Params {
	n := t.Node
	attrs := make([]string, 0, len(n.Attrs))
	for _, k := range n.Attrs.Keys() {
		attrs = append(attrs, k+": "+n.Attrs[k].Value())
	}
	var shapes []string
	for _, ids := range [][]ir.TensorID{n.Inputs, n.Outputs} {
		for _, id := range ids {
			if id != "" {
				shapes = append(shapes, id+": "+g.ShapeOf(id).String())
			}
		}
	}
	return codegen.Params{
		"step":    t.Step,
		"name":    n.Name,
		"op":      n.OpType,
		"attrs":   attrs,
		"inputs":  strings.Join(n.Inputs, ","),
		"outputs": strings.Join(n.Outputs, ","),
		"shapes":  shapes,
	}
}

// runParams lists the run() parameters: the graph inputs, then the outputs.
func runParams(g *ir.Graph, buffers *memory.Manager) string {
	var params []string
	for _, edges := range [][]ir.EdgeInfo{g.Inputs, g.Outputs} {
		for _, e := range edges {
			params = append(params, "pico_cnn::naive::Tensor *"+buffers.Buffer(g, e.ID).Name)
		}
	}
	return strings.Join(params, ", ")
}
