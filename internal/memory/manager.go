package memory

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/picogen/internal/codegen"
	"github.com/born-ml/picogen/internal/ir"
)

// Options configures a Manager.
type Options struct {
	// Logger receives buffer diagnostics (default: logrus standard logger).
	Logger logrus.FieldLogger
}

// Manager assigns buffers to tensors. Each tensor gets exactly one Buffer,
// created on first request.
type Manager struct {
	log     logrus.FieldLogger
	buffers map[string]*Buffer
	order   []*Buffer
	names   map[string]bool

	layers     map[ir.NodeID]string
	layerNames map[string]bool
}

// NewManager creates an empty Manager.
func NewManager(opts ...Options) *Manager {
	opt := Options{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	return &Manager{
		log:     opt.Logger,
		buffers: make(map[string]*Buffer),
		names:   make(map[string]bool),

		layers:     make(map[ir.NodeID]string),
		layerNames: make(map[string]bool),
	}
}

// Buffer returns the buffer for tensor id, creating it on first use.
func (m *Manager) Buffer(g *ir.Graph, id ir.TensorID) *Buffer {
	if b, ok := m.buffers[id]; ok {
		return b
	}

	role := Managed
	switch {
	case g.IsInput(id):
		role = Input
	case g.IsOutput(id):
		role = Output
	}

	shape := g.ShapeOf(id)
	b := &Buffer{
		ID:        id,
		Name:      unique(m.names, role.prefix()+codegen.Identifier(id)),
		Shape:     shape.Clone(),
		Role:      role,
		RankClass: RankClass(shape.Rank()),
	}
	if shape == nil {
		m.log.WithField("tensor", id).Warn("buffer has unknown shape")
	} else {
		b.ElementCount = shape.NumElements()
		b.ByteSize = b.ElementCount * ElementSize
	}

	m.buffers[id] = b
	m.order = append(m.order, b)
	m.log.WithFields(logrus.Fields{"tensor": id, "buffer": b.Name, "role": role}).Debug("assigned buffer")
	return b
}

// BufferFor is Buffer for tensors that get storage in the generated code.
// It fails when the shape is unknown or has a rank above 4.
func (m *Manager) BufferFor(g *ir.Graph, id ir.TensorID) (*Buffer, error) {
	b := m.Buffer(g, id)
	switch {
	case b.Shape == nil:
		return nil, fmt.Errorf("%w: tensor %q", ErrUnknownShape, id)
	case b.RankClass < 0:
		return nil, fmt.Errorf("%w: tensor %q has shape %s", ErrUnsupportedRank, id, b.Shape)
	}
	return b, nil
}

// LayerIdentifier returns the C++ identifier of the layer object of n.
// Identifiers are unique among the layers of m.
func (m *Manager) LayerIdentifier(n *ir.Node) string {
	if id, ok := m.layers[n.ID]; ok {
		return id
	}
	id := unique(m.layerNames, codegen.Symbol(n.Name))
	m.layers[n.ID] = id
	return id
}

// Lookup returns the buffer of id if one was already assigned.
func (m *Manager) Lookup(id ir.TensorID) (*Buffer, bool) {
	b, ok := m.buffers[id]
	return b, ok
}

// Buffers returns every buffer in creation order.
func (m *Manager) Buffers() []*Buffer {
	out := make([]*Buffer, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of buffers.
func (m *Manager) Len() int { return len(m.order) }

func unique(names map[string]bool, name string) string {
	candidate := name
	for i := 1; names[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
	names[candidate] = true
	return candidate
}
