package operators

// registerConvOps adds convolution and fully connected variants.
func (r *Registry) registerConvOps() {
	r.Register("Conv", NewVariant("Conv2D", createConv2D))
	r.Register("Conv", NewVariant("Conv1D", createConv1D))
	r.Register("Gemm", NewVariant("FullyConnected", createFullyConnected))
}

func createConv2D(ctx *Context) (Implementation, error) {
	n := ctx.Node
	in := ctx.Shape(n.Input(0))
	if len(in) != 4 || in[3] == 1 {
		return nil, nil
	}
	if in[2] != in[3] {
		ctx.Log.WithField("input", in.String()).Warn("input image is not square")
	}
	if err := checkConv(ctx); err != nil {
		return nil, err
	}

	kernel := convKernel(ctx, 2)
	if len(kernel) != 2 {
		return nil, unsupported(ctx, "kernel_shape %v is not two-dimensional", kernel)
	}
	if kernel[0]%2 == 0 || kernel[1]%2 == 0 {
		return nil, unsupported(ctx, "even kernel size %v", kernel)
	}
	pads := intsAttr(n, "pads", repeat(0, 4)...)
	if len(pads) != 4 {
		return nil, unsupported(ctx, "pads %v", pads)
	}

	l := newLayer(ctx, "Conv2D", "Convolution", "layers/conv2d_alloc")
	return convParams(ctx, l).
		set("padding", padsOrNil(pads)).
		set("stride", intsAttr(n, "strides", 1, 1)), nil
}

func createConv1D(ctx *Context) (Implementation, error) {
	n := ctx.Node
	in := ctx.Shape(n.Input(0))
	if !(len(in) == 3 || (len(in) == 4 && in[3] == 1)) {
		return nil, nil
	}
	if err := checkConv(ctx); err != nil {
		return nil, err
	}

	kernel := convKernel(ctx, len(in)-2)
	if len(kernel) == 2 && kernel[1] == 1 {
		kernel = kernel[:1]
	}
	if len(kernel) != 1 {
		return nil, unsupported(ctx, "kernel_shape %v is not one-dimensional", kernel)
	}
	if kernel[0]%2 == 0 {
		return nil, unsupported(ctx, "even kernel size %v", kernel)
	}

	// pads hold all begins, then all ends; only the first axis is convolved.
	pads := intsAttr(n, "pads", repeat(0, 2*(len(in)-2))...)
	if len(pads) != 2*(len(in)-2) {
		return nil, unsupported(ctx, "pads %v", pads)
	}
	begin, end := pads[0], pads[len(pads)/2]
	if begin != end {
		return nil, unsupported(ctx, "asymmetric padding %v", pads)
	}
	strides := intsAttr(n, "strides", 1)

	l := newLayer(ctx, "Conv1D", "Convolution", "layers/conv1d_alloc")
	return convParams(ctx, l).
		set("padding", padsOrNil([]int{begin, end})).
		set("stride", strides[:1]), nil
}

// checkConv rejects convolution features pico-cnn lacks.
func checkConv(ctx *Context) error {
	n := ctx.Node
	if autoPadSet(n) {
		return unsupported(ctx, "auto padding %q", n.Attrs.Str("auto_pad", ""))
	}
	for _, d := range intsAttr(n, "dilations") {
		if d != 1 {
			return unsupported(ctx, "dilation %v", intsAttr(n, "dilations"))
		}
	}
	if n.Input(1) == "" {
		return unsupported(ctx, "missing kernel input")
	}
	return nil
}

// convKernel returns kernel_shape, falling back to the spatial dims of the
// weight tensor.
func convKernel(ctx *Context, spatial int) []int {
	if k := intsAttr(ctx.Node, "kernel_shape"); k != nil {
		return k
	}
	w := ctx.Shape(ctx.Node.Input(1))
	if len(w) < 2 {
		return nil
	}
	k := []int(w[2:])
	if len(k) > spatial {
		k = k[:spatial]
	}
	return k
}

func convParams(ctx *Context, l *layer) *layer {
	n := ctx.Node
	bias := ""
	if n.Input(2) != "" {
		bias = ctx.Buffer(n.Input(2)).Name
	}
	return l.
		set("kernel", ctx.Buffer(n.Input(1)).Name).
		set("bias", bias).
		set("groups", int(n.Attrs.Int("group", 1)))
}

func createFullyConnected(ctx *Context) (Implementation, error) {
	n := ctx.Node
	if n.Attrs.Float("alpha", 1) != 1 || n.Attrs.Float("beta", 1) != 1 {
		return nil, nil
	}
	if n.Attrs.Int("transA", 0) != 0 || n.Attrs.Int("transB", 0) != 1 {
		return nil, nil
	}
	if n.Input(1) == "" {
		return nil, nil
	}

	bias := ""
	if n.Input(2) != "" {
		bias = ctx.Buffer(n.Input(2)).Name
	}
	l := newLayer(ctx, "FullyConnected", "FullyConnected", "layers/fc_alloc")
	return l.
		set("kernel", ctx.Buffer(n.Input(1)).Name).
		set("bias", bias), nil
}
