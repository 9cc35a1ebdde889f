package operators

import (
	"github.com/pkg/errors"

	"github.com/born-ml/picogen/internal/codegen"
	"github.com/born-ml/picogen/internal/ir"
)

// Implementation generates the code of one node. Each hook may render an
// empty string.
type Implementation interface {
	Node() *ir.Node
	Variant() string
	Params() codegen.Params
	Declaration(r codegen.Renderer) (string, error)
	Allocation(r codegen.Renderer) (string, error)
	Execution(r codegen.Renderer) (string, error)
	Deletion(r codegen.Renderer) (string, error)
}

// Template names of the fragments shared by most layers.
const (
	tmplEmpty       = "empty"
	tmplLayerDecl   = "layers/layer_decl"
	tmplLayerExec   = "layers/layer_exec"
	tmplLayerDelete = "layers/layer_delete"
)

// layer is an Implementation driven by four template names and one
// parameter set.
type layer struct {
	node    *ir.Node
	variant string
	decl    string
	alloc   string
	exec    string
	del     string
	params  codegen.Params
}

// newLayer creates a pico-cnn layer object: it is declared as a class
// member, constructed once, run per inference and deleted with the network.
func newLayer(ctx *Context, variant, class, alloc string) *layer {
	n := ctx.Node
	return &layer{
		node:    n,
		variant: variant,
		decl:    tmplLayerDecl,
		alloc:   alloc,
		exec:    tmplLayerExec,
		del:     tmplLayerDelete,
		params: codegen.Params{
			"name":       n.Name,
			"identifier": ctx.Identifier(),
			"class":      class,
			"input":      ctx.Buffer(n.Input(0)).Name,
			"output":     ctx.Buffer(n.Output(0)).Name,
		},
	}
}

// newTensorOp creates an operation that only emits execution code.
func newTensorOp(ctx *Context, variant, exec string) *layer {
	n := ctx.Node
	return &layer{
		node:    n,
		variant: variant,
		decl:    tmplEmpty,
		alloc:   tmplEmpty,
		exec:    exec,
		del:     tmplEmpty,
		params: codegen.Params{
			"name":       n.Name,
			"identifier": ctx.Identifier(),
			"output":     ctx.Buffer(n.Output(0)).Name,
		},
	}
}

func (l *layer) set(key string, value any) *layer {
	l.params[key] = value
	return l
}

func (l *layer) Node() *ir.Node { return l.node }

func (l *layer) Variant() string { return l.variant }

func (l *layer) Params() codegen.Params {
	out := make(codegen.Params, len(l.params))
	for k, v := range l.params {
		out[k] = v
	}
	return out
}

func (l *layer) Declaration(r codegen.Renderer) (string, error) { return l.render(r, l.decl) }

func (l *layer) Allocation(r codegen.Renderer) (string, error) { return l.render(r, l.alloc) }

func (l *layer) Execution(r codegen.Renderer) (string, error) { return l.render(r, l.exec) }

func (l *layer) Deletion(r codegen.Renderer) (string, error) { return l.render(r, l.del) }

func (l *layer) render(r codegen.Renderer, name string) (string, error) {
	out, err := r.Render(name, l.params)
	if err != nil {
		return "", errors.Wrapf(err, "node %q (%s)", l.node.Name, l.variant)
	}
	return out, nil
}
