package operators

// registerPoolOps adds pooling variants.
func (r *Registry) registerPoolOps() {
	r.Register("MaxPool", NewVariant("MaxPool2D", createMaxPool2D))
	r.Register("MaxPool", NewVariant("MaxPool1D", createMaxPool1D))
	r.Register("AveragePool", NewVariant("AveragePool2D", createAveragePool2D))
	r.Register("AveragePool", NewVariant("AveragePool1D", createAveragePool1D))
	r.Register("GlobalAveragePool", NewVariant("GlobalAveragePool", createGlobalPool("GlobalAveragePooling")))
	r.Register("GlobalMaxPool", NewVariant("GlobalMaxPool", createGlobalPool("GlobalMaxPooling")))
}

// pool holds the window of a pooling node reduced to the axes pico-cnn pools.
type pool struct {
	kernel  []int
	stride  []int
	padding []int
}

// poolWindow reads the pooling window of the node in ctx for the given
// number of spatial axes. It reports false when the window has a different
// dimensionality.
func poolWindow(ctx *Context, spatial int) (pool, bool, error) {
	n := ctx.Node
	kernel := intsAttr(n, "kernel_shape")
	if spatial == 1 && len(kernel) == 2 && kernel[1] == 1 {
		kernel = kernel[:1]
	}
	if len(kernel) != spatial {
		return pool{}, false, nil
	}
	if autoPadSet(n) {
		return pool{}, false, unsupported(ctx, "auto padding %q", n.Attrs.Str("auto_pad", ""))
	}

	raw := intsAttr(n, "kernel_shape")
	strides := intsAttr(n, "strides", repeat(1, len(raw))...)
	pads := intsAttr(n, "pads", repeat(0, 2*len(raw))...)
	if len(strides) < spatial || len(pads) != 2*len(raw) {
		return pool{}, false, unsupported(ctx, "strides %v and pads %v do not match kernel %v", strides, pads, raw)
	}

	p := pool{kernel: kernel, stride: strides[:spatial]}
	if spatial == 1 {
		p.padding = padsOrNil([]int{pads[0], pads[len(pads)/2]})
	} else {
		p.padding = padsOrNil(pads)
	}
	return p, true, nil
}

func createMaxPool(variant string, spatial int) CreateFunc {
	return func(ctx *Context) (Implementation, error) {
		p, ok, err := poolWindow(ctx, spatial)
		if err != nil || !ok {
			return nil, err
		}
		l := newLayer(ctx, variant, "MaxPooling", "layers/max_pool_alloc")
		return l.
			set("kernel_shape", p.kernel).
			set("stride", p.stride).
			set("padding", p.padding), nil
	}
}

func createAveragePool(variant string, spatial int) CreateFunc {
	return func(ctx *Context) (Implementation, error) {
		p, ok, err := poolWindow(ctx, spatial)
		if err != nil || !ok {
			return nil, err
		}
		// Unpadded windows are always full; 1 divides by the kernel size.
		countIncludePad := int(ctx.Node.Attrs.Int("count_include_pad", 0))
		if p.padding == nil {
			countIncludePad = 1
		}
		l := newLayer(ctx, variant, "AveragePooling", "layers/avg_pool_alloc")
		return l.
			set("kernel_shape", p.kernel).
			set("stride", p.stride).
			set("padding", p.padding).
			set("count_include_pad", countIncludePad), nil
	}
}

var (
	createMaxPool2D     = createMaxPool("MaxPool2D", 2)
	createMaxPool1D     = createMaxPool("MaxPool1D", 1)
	createAveragePool2D = createAveragePool("AveragePool2D", 2)
	createAveragePool1D = createAveragePool("AveragePool1D", 1)
)

func createGlobalPool(class string) CreateFunc {
	return func(ctx *Context) (Implementation, error) {
		rank := len(ctx.Shape(ctx.Node.Input(0)))
		if rank != 3 && rank != 4 {
			return nil, nil
		}
		op := ctx.Node.OpType
		l := newLayer(ctx, op, class, "layers/global_pool_alloc")
		return l.set("op", op), nil
	}
}
