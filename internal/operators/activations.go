package operators

import "math"

// registerActivations adds activation and normalisation variants.
func (r *Registry) registerActivations() {
	r.Register("Relu", NewVariant("ReLU", createActivation("ReLU", "ReLU", 2, 4)))
	r.Register("Sigmoid", NewVariant("Sigmoid", createActivation("Sigmoid", "Sigmoid", 0, 0)))
	r.Register("Tanh", NewVariant("TanH", createActivation("TanH", "TanH", 0, 0)))
	r.Register("Softmax", NewVariant("Softmax", createActivation("Softmax", "Softmax", 0, 0)))
	r.Register("Clip", NewVariant("Clip", createClip))
	r.Register("LRN", NewVariant("LRN", createLRN))
	r.Register("BatchNormalization", NewVariant("BatchNormalization", createBatchNorm))
}

// createActivation builds an element-wise pico-cnn layer. A non-zero rank
// bound restricts the input ranks the variant accepts.
func createActivation(class, op string, minRank, maxRank int) CreateFunc {
	return func(ctx *Context) (Implementation, error) {
		if maxRank > 0 {
			rank := len(ctx.Shape(ctx.Node.Input(0)))
			if rank < minRank || rank > maxRank {
				ctx.Log.WithField("rank", rank).Debug("input rank out of range")
				return nil, nil
			}
		}
		l := newLayer(ctx, class, class, "layers/activation_alloc")
		return l.set("op", op), nil
	}
}

// createClip reads the bounds from attributes (opset < 11) or from constant
// inputs (opset >= 11). Missing bounds are infinite.
func createClip(ctx *Context) (Implementation, error) {
	n := ctx.Node
	lo := n.Attrs.Float("min", float32(math.Inf(-1)))
	hi := n.Attrs.Float("max", float32(math.Inf(1)))
	if n.Input(1) != "" {
		v, ok := constantFloat(n, 1)
		if !ok {
			return nil, unsupported(ctx, "min bound %q is not constant", n.Input(1))
		}
		lo = v
	}
	if n.Input(2) != "" {
		v, ok := constantFloat(n, 2)
		if !ok {
			return nil, unsupported(ctx, "max bound %q is not constant", n.Input(2))
		}
		hi = v
	}

	l := newLayer(ctx, "Clip", "Clip", "layers/clip_alloc")
	return l.set("min", lo).set("max", hi), nil
}

func createLRN(ctx *Context) (Implementation, error) {
	n := ctx.Node
	if !n.Attrs.Has("size") {
		return nil, unsupported(ctx, "missing size attribute")
	}
	l := newLayer(ctx, "LRN", "LRN", "layers/lrn_alloc")
	return l.
		set("alpha", n.Attrs.Float("alpha", 1e-4)).
		set("beta", n.Attrs.Float("beta", 0.75)).
		set("size", int(n.Attrs.Int("size", 0))), nil
}

func createBatchNorm(ctx *Context) (Implementation, error) {
	n := ctx.Node
	if len(n.Inputs) < 5 {
		return nil, unsupported(ctx, "expected 5 inputs, got %d", len(n.Inputs))
	}
	l := newLayer(ctx, "BatchNormalization", "BatchNormalization", "layers/batchnorm_alloc")
	return l.
		set("gammas", ctx.Buffer(n.Input(1)).Name).
		set("betas", ctx.Buffer(n.Input(2)).Name).
		set("means", ctx.Buffer(n.Input(3)).Name).
		set("variances", ctx.Buffer(n.Input(4)).Name).
		set("epsilon", n.Attrs.Float("epsilon", 1e-5)), nil
}
