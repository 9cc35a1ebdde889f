package operators

import "github.com/pkg/errors"

// Common errors.
var (
	// ErrUnsupported marks a node that a variant recognises but pico-cnn
	// cannot execute (auto padding, even kernels, concat off the channel axis).
	ErrUnsupported = errors.New("unsupported construct")
	// ErrNoImplementation means no registered variant accepted the node.
	ErrNoImplementation = errors.New("no implementation")
)

func unsupported(ctx *Context, format string, args ...any) error {
	return errors.Wrapf(ErrUnsupported, "%s (%s): "+format,
		append([]any{ctx.Node.Name, ctx.Node.OpType}, args...)...)
}
