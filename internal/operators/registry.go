package operators

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/memory"
	"github.com/born-ml/picogen/internal/tensor"
)

// BufferProvider hands out the buffer assigned to a tensor and the unique
// identifier of a node's layer object.
type BufferProvider interface {
	Buffer(g *ir.Graph, id ir.TensorID) *memory.Buffer
	LayerIdentifier(n *ir.Node) string
}

// Variant is one way of generating code for an op type.
type Variant interface {
	Name() string
	// TryCreate returns (nil, nil) when the variant does not apply to n.
	TryCreate(n *ir.Node, g *ir.Graph, buffers BufferProvider) (Implementation, error)
}

// Context carries what a variant needs to inspect a node.
type Context struct {
	Node    *ir.Node
	Graph   *ir.Graph
	Buffers BufferProvider
	Log     logrus.FieldLogger
}

// Buffer returns the buffer of tensor id.
func (c *Context) Buffer(id ir.TensorID) *memory.Buffer {
	return c.Buffers.Buffer(c.Graph, id)
}

// Identifier returns the C++ identifier of the node's layer object.
func (c *Context) Identifier() string {
	return c.Buffers.LayerIdentifier(c.Node)
}

// Shape returns the best known shape of tensor id.
func (c *Context) Shape(id ir.TensorID) tensor.Shape {
	return c.Graph.ShapeOf(id)
}

// CreateFunc builds an Implementation for the node in ctx.
type CreateFunc func(ctx *Context) (Implementation, error)

type variantFunc struct {
	name string
	fn   CreateFunc
}

// NewVariant wraps fn as a Variant.
func NewVariant(name string, fn CreateFunc) Variant {
	return &variantFunc{name: name, fn: fn}
}

func (v *variantFunc) Name() string { return v.name }

func (v *variantFunc) TryCreate(n *ir.Node, g *ir.Graph, buffers BufferProvider) (Implementation, error) {
	ctx := &Context{
		Node:    n,
		Graph:   g,
		Buffers: buffers,
		Log:     g.Logger().WithFields(logrus.Fields{"node": n.Name, "op": n.OpType, "variant": v.name}),
	}
	return v.fn(ctx)
}

// Options configures a Registry.
type Options struct {
	// Logger receives selection diagnostics (default: logrus standard logger).
	Logger logrus.FieldLogger
}

// Registry maps op types to their variants, in registration order.
type Registry struct {
	variants map[string][]Variant
	log      logrus.FieldLogger
}

// NewRegistry creates a registry with every built-in variant.
func NewRegistry(opts ...Options) *Registry {
	opt := Options{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	r := &Registry{
		variants: make(map[string][]Variant),
		log:      opt.Logger,
	}

	r.registerConvOps()
	r.registerPoolOps()
	r.registerActivations()
	r.registerTensorOps()

	return r
}

// Register appends a variant for opType. Earlier variants take precedence.
func (r *Registry) Register(opType string, v Variant) {
	r.variants[opType] = append(r.variants[opType], v)
}

// Variants returns the variants registered for opType, in order.
func (r *Registry) Variants(opType string) []Variant {
	vs := r.variants[opType]
	out := make([]Variant, len(vs))
	copy(out, vs)
	return out
}

// Select returns the implementation of the first variant that applies to n.
func (r *Registry) Select(n *ir.Node, g *ir.Graph, buffers BufferProvider) (Implementation, error) {
	entry := r.log.WithFields(logrus.Fields{"node": n.Name, "op": n.OpType})
	for _, v := range r.variants[n.OpType] {
		impl, err := v.TryCreate(n, g, buffers)
		if err != nil {
			return nil, errors.WithMessagef(err, "variant %s", v.Name())
		}
		if impl != nil {
			entry.WithField("variant", v.Name()).Debug("selected implementation")
			return impl, nil
		}
		entry.WithField("variant", v.Name()).Debug("variant does not apply")
	}
	return nil, errors.Wrapf(ErrNoImplementation, "node %q (%s)", n.Name, n.OpType)
}

// SupportedOps returns every op type with at least one variant, sorted.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.variants))
	for op := range r.variants {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
