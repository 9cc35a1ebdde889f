package compiler

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/picogen/internal/codegen"
	"github.com/born-ml/picogen/internal/constprop"
	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/memory"
	"github.com/born-ml/picogen/internal/operators"
	"github.com/born-ml/picogen/internal/parallel"
	"github.com/born-ml/picogen/internal/simplify"
)

// DefaultModelName names models whose graph has no name.
const DefaultModelName = "network"

// Options configures a Compiler.
type Options struct {
	// Logger receives pipeline diagnostics (default: logrus standard logger).
	Logger logrus.FieldLogger

	// ModelName names the generated network (default: the graph name).
	ModelName string

	// Parallelism bounds concurrent fragment rendering (default: GOMAXPROCS).
	Parallelism int

	// Renderer renders fragments (default: embedded templates).
	Renderer codegen.Renderer

	// Registry selects implementations (default: every built-in variant).
	Registry *operators.Registry

	// Planner lays out the static buffers (default: 4-byte aligned StaticPlanner).
	Planner memory.Planner
}

// Compiler turns graphs into pico-cnn networks. A Compiler holds no
// per-graph state and may be reused.
type Compiler struct {
	opt Options
	log logrus.FieldLogger
}

// Result holds every intermediate product of one compilation.
type Result struct {
	ModelName   string
	Graph       *ir.Graph
	Propagation *constprop.Result
	Rewrites    *simplify.Report
	Conflicts   []simplify.Conflict
	Buffers     *memory.Manager
	Plan        *memory.Plan
	Tasks       []Task
	Program     *Program
	Artifacts   *Artifacts
}

// New creates a Compiler.
func New(opts ...Options) (*Compiler, error) {
	opt := Options{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	if opt.Renderer == nil {
		r, err := codegen.NewTemplateRenderer()
		if err != nil {
			return nil, errors.WithMessage(err, "template renderer")
		}
		opt.Renderer = r
	}
	if opt.Registry == nil {
		opt.Registry = operators.NewRegistry(operators.Options{Logger: opt.Logger})
	}
	if opt.Planner == nil {
		opt.Planner = memory.StaticPlanner{}
	}
	return &Compiler{opt: opt, log: opt.Logger}, nil
}

// Compile runs the whole pipeline on raw.
func (c *Compiler) Compile(ctx context.Context, raw ir.RawGraph) (*Result, error) {
	g, err := ir.New(raw, ir.Options{Logger: c.log})
	if err != nil {
		return nil, errors.WithMessage(err, "build graph")
	}
	res := &Result{ModelName: c.modelName(g), Graph: g}
	log := c.log.WithField("model", res.ModelName)
	log.WithField("nodes", g.Len()).Info("graph built")

	engine := constprop.NewEngine(constprop.Options{Logger: c.log})
	prop, err := engine.Run(g)
	if err != nil {
		return nil, errors.WithMessage(err, "propagate")
	}
	simp := simplify.New(simplify.Options{Logger: c.log})
	res.Rewrites, err = simp.Run(g, prop)
	if err != nil {
		return nil, errors.WithMessage(err, "simplify")
	}
	// Bypassed nodes change which tensors reach their consumers.
	res.Propagation, err = engine.Run(g)
	if err != nil {
		return nil, errors.WithMessage(err, "propagate simplified graph")
	}
	res.Conflicts = simp.MergeShapes(g, res.Propagation)
	log.WithFields(logrus.Fields{
		"nodes":    g.Len(),
		"folded":   len(res.Rewrites.Folded),
		"bypassed": len(res.Rewrites.Bypassed),
	}).Info("graph simplified")

	if err := checkInterface(g); err != nil {
		return nil, err
	}

	res.Buffers = memory.NewManager(memory.Options{Logger: c.log})
	impls := make(map[ir.NodeID]operators.Implementation, g.Len())
	for _, n := range g.Nodes() {
		impl, err := c.opt.Registry.Select(n, g, res.Buffers)
		if err != nil {
			return nil, err
		}
		impls[n.ID] = impl
	}
	res.Tasks, err = Schedule(g, impls)
	if err != nil {
		return nil, err
	}

	res.Program, err = Emit(ctx, g, res.Tasks, res.Buffers, c.opt.Renderer, c.parallelism())
	if err != nil {
		return nil, errors.WithMessage(err, "emit")
	}
	if err := res.Program.CheckOrder(); err != nil {
		return nil, err
	}

	res.Plan, err = c.opt.Planner.Plan(res.Buffers.Buffers())
	if err != nil {
		return nil, errors.WithMessage(err, "plan memory")
	}
	log.WithFields(logrus.Fields{
		"buffers": res.Buffers.Len(),
		"bytes":   res.Plan.Total,
	}).Info("buffers assigned")

	res.Artifacts, err = buildArtifacts(res.ModelName, g, res.Tasks, res.Program, c.opt.Renderer)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"kernels": res.Program.NumKernels,
		"biases":  res.Program.NumBiases,
	}).Info("code generated")
	return res, nil
}

func (c *Compiler) modelName(g *ir.Graph) string {
	switch {
	case c.opt.ModelName != "":
		return c.opt.ModelName
	case g.Name != "":
		return g.Name
	default:
		return DefaultModelName
	}
}

func (c *Compiler) parallelism() parallel.Config {
	cfg := parallel.DefaultConfig()
	if c.opt.Parallelism > 0 {
		cfg.Workers = c.opt.Parallelism
	}
	return cfg
}

// WriteLiveRanges writes the live-range chart of the schedule to w.
func (r *Result) WriteLiveRanges(w io.Writer) {
	order := Order(r.Tasks)
	memory.RenderLiveRanges(w, memory.LiveRanges(r.Graph, order), len(order))
}
