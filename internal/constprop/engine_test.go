package constprop

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

func newEngine(t *testing.T) (*Engine, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewEngine(Options{Logger: logger}), hook
}

func build(t *testing.T, raw ir.RawGraph) *ir.Graph {
	t.Helper()
	logger, _ := test.NewNullLogger()
	g, err := ir.New(raw, ir.Options{Logger: logger})
	require.NoError(t, err)
	return g
}

func convReluGraph(t *testing.T) *ir.Graph {
	kernel := tensor.Zeros(tensor.Shape{1, 1, 3, 3}, tensor.Float32)
	return build(t, ir.RawGraph{
		Inputs:       []ir.EdgeInfo{{ID: "input", ElemType: 1, Shape: tensor.Shape{1, 1, 3, 3}}},
		Outputs:      []ir.EdgeInfo{{ID: "output", ElemType: 1, Shape: tensor.Shape{1, 1, 1, 1}}},
		Initializers: map[ir.TensorID]*tensor.Array{"W": kernel},
		Nodes: []ir.RawNode{
			{Name: "conv", OpType: "Conv", Inputs: []ir.TensorID{"input", "W"}, Outputs: []ir.TensorID{"conv_out"},
				Attrs: ir.Attrs{"kernel_shape": ir.Ints(3, 3), "group": ir.Int(1)}},
			{Name: "relu", OpType: "Relu", Inputs: []ir.TensorID{"conv_out"}, Outputs: []ir.TensorID{"output"}},
		},
	})
}

func TestRunConvRelu(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Run(convReluGraph(t))
	require.NoError(t, err)

	shape, ok := res.Shape("conv_out")
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, shape)

	shape, ok = res.Shape("output")
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, shape)
	assert.Empty(t, res.Unhandled)

	_, ok = res.Value("output")
	assert.False(t, ok)
	v, ok := res.Value("W")
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, v.Shape)
}

// flattenGraph is the Shape/Gather/Unsqueeze/Concat/Reshape chain exporters
// emit for x.view(x.size(0), -1).
func flattenGraph(t *testing.T) *ir.Graph {
	return build(t, ir.RawGraph{
		Inputs:  []ir.EdgeInfo{{ID: "x", ElemType: 1, Shape: tensor.Shape{1, 16, 2, 2}}},
		Outputs: []ir.EdgeInfo{{ID: "y", ElemType: 1, Shape: tensor.Shape{1, 64}}},
		Initializers: map[ir.TensorID]*tensor.Array{
			"zero":  {Shape: tensor.Shape{}, DType: tensor.Int64, Data: []float64{0}},
			"minus": tensor.Vector(-1),
		},
		Nodes: []ir.RawNode{
			{Name: "shape", OpType: "Shape", Inputs: []ir.TensorID{"x"}, Outputs: []ir.TensorID{"s"}},
			{Name: "gather", OpType: "Gather", Inputs: []ir.TensorID{"s", "zero"}, Outputs: []ir.TensorID{"n"},
				Attrs: ir.Attrs{"axis": ir.Int(0)}},
			{Name: "unsq", OpType: "Unsqueeze", Inputs: []ir.TensorID{"n"}, Outputs: []ir.TensorID{"n1"},
				Attrs: ir.Attrs{"axes": ir.Ints(0)}},
			{Name: "concat", OpType: "Concat", Inputs: []ir.TensorID{"n1", "minus"}, Outputs: []ir.TensorID{"target"},
				Attrs: ir.Attrs{"axis": ir.Int(0)}},
			{Name: "reshape", OpType: "Reshape", Inputs: []ir.TensorID{"x", "target"}, Outputs: []ir.TensorID{"y"}},
		},
	})
}

func TestRunFoldsShapeChain(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Run(flattenGraph(t))
	require.NoError(t, err)

	v, ok := res.Value("s")
	require.True(t, ok)
	assert.Equal(t, []int64{1, 16, 2, 2}, v.Int64s())

	v, ok = res.Value("n")
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{}, v.Shape)
	assert.Equal(t, []int64{1}, v.Int64s())

	v, ok = res.Value("target")
	require.True(t, ok)
	assert.Equal(t, []int64{1, -1}, v.Int64s())

	shape, ok := res.Shape("y")
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{1, 64}, shape)
	_, ok = res.Value("y")
	assert.False(t, ok, "graph input values are never known")
}

func TestRunIsStable(t *testing.T) {
	e, _ := newEngine(t)
	g := flattenGraph(t)

	first, err := e.Run(g)
	require.NoError(t, err)
	second, err := e.Run(g)
	require.NoError(t, err)

	require.Equal(t, len(first.States), len(second.States))
	for id, s := range first.States {
		assert.True(t, s.Equal(second.State(id)), id)
		assert.True(t, s.Equal(first.State(id)), id)
	}
}

func TestRunUnknownOpFallsBackToShapeTable(t *testing.T) {
	e, hook := newEngine(t)
	g := build(t, ir.RawGraph{
		Inputs:    []ir.EdgeInfo{{ID: "x", Shape: tensor.Shape{1, 8}}},
		Outputs:   []ir.EdgeInfo{{ID: "z", Shape: tensor.Shape{1, 8}}},
		ValueInfo: []ir.EdgeInfo{{ID: "y", Shape: tensor.Shape{1, 8}}},
		Nodes: []ir.RawNode{
			{Name: "mystery", OpType: "Erf", Inputs: []ir.TensorID{"x"}, Outputs: []ir.TensorID{"y"}},
			{Name: "relu", OpType: "Relu", Inputs: []ir.TensorID{"y"}, Outputs: []ir.TensorID{"z"}},
		},
	})

	res, err := e.Run(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"mystery"}, res.Unhandled)

	shape, ok := res.Shape("z")
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{1, 8}, shape)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["node"] == "mystery" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunHidesConstantValuesFromNonFoldingTransfers(t *testing.T) {
	e, _ := newEngine(t)
	var seen State
	e.Register("Probe", Transfer{Fn: func(_ *ir.Node, inputs []State) ([]State, error) {
		seen = inputs[0]
		return []State{inputs[0]}, nil
	}})
	g := build(t, ir.RawGraph{
		Initializers: map[ir.TensorID]*tensor.Array{"c": tensor.Vector(4, 5)},
		Nodes: []ir.RawNode{
			{Name: "probe", OpType: "Probe", Inputs: []ir.TensorID{"c"}, Outputs: []ir.TensorID{"p"}},
		},
	})

	_, err := e.Run(g)
	require.NoError(t, err)
	assert.True(t, seen.Known)
	assert.False(t, seen.HasValue())
	assert.Equal(t, tensor.Shape{2}, seen.Shape)
}

func TestRunIterationLimit(t *testing.T) {
	logger, _ := test.NewNullLogger()
	e := NewEngine(Options{Logger: logger, MaxIterations: 1})
	_, err := e.Run(convReluGraph(t))
	assert.ErrorIs(t, err, ErrNoFixpoint)
}

func TestStateEqual(t *testing.T) {
	assert.True(t, Unknown().Equal(State{}))
	assert.False(t, Unknown().Equal(ShapeOnly(tensor.Shape{})))
	assert.True(t, ShapeOnly(tensor.Shape{2}).Equal(ShapeOnly(tensor.Shape{2})))
	assert.False(t, ShapeOnly(tensor.Shape{2}).Equal(Exact(tensor.Vector(1, 2))))
	assert.True(t, Exact(tensor.Vector(1, 2)).Equal(Exact(tensor.Vector(1, 2))))
	assert.False(t, Exact(tensor.Vector(1, 2)).Equal(Exact(tensor.Vector(1, 3))))
}
