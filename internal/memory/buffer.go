package memory

import (
	"fmt"

	"github.com/born-ml/picogen/internal/tensor"
)

// ElementSize is the size in bytes of one buffer element (float32).
const ElementSize = 4

// Role says who owns a buffer's storage.
type Role int

const (
	// Managed buffers are allocated and freed by the generated network.
	Managed Role = iota
	// Input buffers are passed in by the caller of run().
	Input
	// Output buffers are passed in by the caller of run() and written by it.
	Output
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case Input:
		return "input"
	case Output:
		return "output"
	case Managed:
		return "managed"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// prefix returns the name prefix of buffers with this role.
func (r Role) prefix() string {
	if r == Managed {
		return "buffer_"
	}
	return r.String() + "_"
}

// Buffer is the storage assigned to one tensor.
type Buffer struct {
	ID           string
	Name         string
	Shape        tensor.Shape
	ElementCount int
	ByteSize     int
	Role         Role
	RankClass    int
}

// IsManaged reports whether the generated network owns the buffer.
func (b *Buffer) IsManaged() bool { return b.Role == Managed }

// Dims returns the shape as a plain int slice. Unknown shapes yield nil.
func (b *Buffer) Dims() []int {
	if b.Shape == nil {
		return nil
	}
	return []int(b.Shape.Clone())
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("%s%s %dB", b.Name, b.Shape, b.ByteSize)
}

// RankClass buckets a tensor rank: 0 for rank 0 or 1, 1 for rank 2 or 3,
// 2 for rank 4 and -1 for anything larger.
func RankClass(rank int) int {
	switch {
	case rank <= 1:
		return 0
	case rank <= 3:
		return 1
	case rank == 4:
		return 2
	default:
		return -1
	}
}
