package operators

import (
	"github.com/pkg/errors"

	"github.com/born-ml/picogen/internal/codegen"
	"github.com/born-ml/picogen/internal/memory"
	"github.com/born-ml/picogen/internal/weights"
)

// Weight tables of the generated network.
const (
	KernelTable = "kernels"
	BiasTable   = "biases"
)

// BufferCode renders one per-buffer fragment.
type BufferCode struct {
	Buffer   *memory.Buffer
	template string
	params   codegen.Params
}

// Render renders the fragment.
func (c *BufferCode) Render(r codegen.Renderer) (string, error) {
	out, err := r.Render(c.template, c.params)
	if err != nil {
		return "", errors.Wrapf(err, "buffer %s", c.Buffer.Name)
	}
	return out, nil
}

// WeightTable returns the table a weight buffer is bound into: biases for
// rank 1, kernels otherwise.
func WeightTable(b *memory.Buffer) string {
	if len(b.Shape) == 1 {
		return BiasTable
	}
	return KernelTable
}

// KernelAllocation constructs a weight tensor and binds it to position pos
// of its weight table.
func KernelAllocation(b *memory.Buffer, pos int) (*BufferCode, error) {
	if rank := len(b.Shape); rank < 1 || rank > 4 {
		return nil, errors.Wrapf(weights.ErrUnsupportedRank, "weight %s has rank %d", b.Name, rank)
	}
	return &BufferCode{
		Buffer:   b,
		template: "memory/kernel_allocation",
		params: codegen.Params{
			"name":  b.Name,
			"dims":  b.Dims(),
			"table": WeightTable(b),
			"pos":   pos,
		},
	}, nil
}

// BufferDeclaration declares the shape and, for buffers the network owns,
// the tensor of b as class members.
func BufferDeclaration(b *memory.Buffer) *BufferCode {
	return &BufferCode{
		Buffer:   b,
		template: "memory/buffer_declaration",
		params: codegen.Params{
			"name":   b.Name,
			"shape":  b.Shape.String(),
			"tensor": b.IsManaged(),
		},
	}
}

// BufferAllocation constructs the shape and, for buffers the network owns,
// the tensor of b.
func BufferAllocation(b *memory.Buffer) *BufferCode {
	return &BufferCode{
		Buffer:   b,
		template: "memory/buffer_allocation",
		params: codegen.Params{
			"name":   b.Name,
			"dims":   b.Dims(),
			"tensor": b.IsManaged(),
		},
	}
}

// BufferCleanup releases everything BufferAllocation or KernelAllocation
// created for b.
func BufferCleanup(b *memory.Buffer) *BufferCode {
	return &BufferCode{
		Buffer:   b,
		template: "memory/buffer_cleanup",
		params: codegen.Params{
			"name":   b.Name,
			"tensor": b.IsManaged(),
		},
	}
}
