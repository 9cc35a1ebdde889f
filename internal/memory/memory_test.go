package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// convRelu is input (1,1,3,3) -> Conv(W 1x1x3x3) -> c (1,1,1,1) -> Relu -> output.
func convRelu(t *testing.T) *ir.Graph {
	t.Helper()
	g, err := ir.New(ir.RawGraph{
		Inputs:       []ir.EdgeInfo{{ID: "input", ElemType: 1, Shape: tensor.Shape{1, 1, 3, 3}}},
		Outputs:      []ir.EdgeInfo{{ID: "output", ElemType: 1, Shape: tensor.Shape{1, 1, 1, 1}}},
		Initializers: map[ir.TensorID]*tensor.Array{"W": tensor.Zeros(tensor.Shape{1, 1, 3, 3}, tensor.Float32)},
		Nodes: []ir.RawNode{
			{Name: "conv", OpType: "Conv", Inputs: []ir.TensorID{"input", "W"}, Outputs: []ir.TensorID{"c"}},
			{Name: "relu", OpType: "Relu", Inputs: []ir.TensorID{"c"}, Outputs: []ir.TensorID{"output"}},
		},
	}, ir.Options{Logger: quietLogger()})
	require.NoError(t, err)
	g.SetShape("c", tensor.Shape{1, 1, 1, 1})
	return g
}

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestBufferIdentity(t *testing.T) {
	g := convRelu(t)
	m := NewManager(Options{Logger: quietLogger()})

	a := m.Buffer(g, "c")
	b := m.Buffer(g, "c")
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Lookup("c")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = m.Lookup("missing")
	assert.False(t, ok)
}

func TestBufferRolesAndSizes(t *testing.T) {
	g := convRelu(t)
	m := NewManager(Options{Logger: quietLogger()})

	in := m.Buffer(g, "input")
	c := m.Buffer(g, "c")
	out := m.Buffer(g, "output")
	w := m.Buffer(g, "W")

	assert.Equal(t, "input_input", in.Name)
	assert.Equal(t, Input, in.Role)
	assert.Equal(t, 36, in.ByteSize)
	assert.Equal(t, 9, in.ElementCount)
	assert.Equal(t, 2, in.RankClass)

	assert.Equal(t, "buffer_c", c.Name)
	assert.Equal(t, Managed, c.Role)
	assert.Equal(t, 4, c.ByteSize)

	assert.Equal(t, "output_output", out.Name)
	assert.Equal(t, Output, out.Role)
	assert.Equal(t, 4, out.ByteSize)

	assert.Equal(t, "buffer_W", w.Name)
	assert.Equal(t, []int{1, 1, 3, 3}, w.Dims())

	assert.Equal(t, []*Buffer{in, c, out, w}, m.Buffers())
}

func TestBufferNamesAreSanitisedAndUnique(t *testing.T) {
	g, err := ir.New(ir.RawGraph{
		Inputs:  []ir.EdgeInfo{{ID: "x", Shape: tensor.Shape{1, 4}}},
		Outputs: []ir.EdgeInfo{{ID: "y", Shape: tensor.Shape{1, 4}}},
		Nodes: []ir.RawNode{
			{OpType: "Relu", Inputs: []ir.TensorID{"x"}, Outputs: []ir.TensorID{"a.b:0"}},
			{OpType: "Relu", Inputs: []ir.TensorID{"a.b:0"}, Outputs: []ir.TensorID{"a_b_0"}},
			{OpType: "Relu", Inputs: []ir.TensorID{"a_b_0"}, Outputs: []ir.TensorID{"y"}},
		},
	}, ir.Options{Logger: quietLogger()})
	require.NoError(t, err)

	m := NewManager(Options{Logger: quietLogger()})
	assert.Equal(t, "buffer_a_b_0", m.Buffer(g, "a.b:0").Name)
	assert.Equal(t, "buffer_a_b_0_1", m.Buffer(g, "a_b_0").Name)
}

func TestBufferUnknownShapeWarns(t *testing.T) {
	g := convRelu(t)
	logger, hook := test.NewNullLogger()
	m := NewManager(Options{Logger: logger})

	b := m.Buffer(g, "nowhere")
	assert.Nil(t, b.Shape)
	assert.Zero(t, b.ByteSize)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestBufferForRejectsUnrepresentableShapes(t *testing.T) {
	g := convRelu(t)
	g.SetShape("c", tensor.Shape{1, 1, 1, 1, 1})
	m := NewManager(Options{Logger: quietLogger()})

	_, err := m.BufferFor(g, "c")
	require.ErrorIs(t, err, ErrUnsupportedRank)
	assert.Contains(t, err.Error(), `"c"`)

	_, err = m.BufferFor(g, "nowhere")
	assert.ErrorIs(t, err, ErrUnknownShape)

	b, err := m.BufferFor(g, "input")
	require.NoError(t, err)
	assert.Same(t, m.Buffer(g, "input"), b)
}

func TestLayerIdentifiersAreUnique(t *testing.T) {
	g, err := ir.New(ir.RawGraph{
		Inputs:  []ir.EdgeInfo{{ID: "x", ElemType: 1, Shape: tensor.Shape{1, 4}}},
		Outputs: []ir.EdgeInfo{{ID: "z", ElemType: 1, Shape: tensor.Shape{1, 4}}},
		Nodes: []ir.RawNode{
			{Name: "a.b", OpType: "Relu", Inputs: []ir.TensorID{"x"}, Outputs: []ir.TensorID{"y"}},
			{Name: "a_b", OpType: "Relu", Inputs: []ir.TensorID{"y"}, Outputs: []ir.TensorID{"z"}},
		},
	}, ir.Options{Logger: quietLogger()})
	require.NoError(t, err)
	m := NewManager(Options{Logger: quietLogger()})

	first, second := g.Nodes()[0], g.Nodes()[1]
	assert.Equal(t, "a_b", m.LayerIdentifier(first))
	assert.Equal(t, "a_b_1", m.LayerIdentifier(second))
	assert.Equal(t, "a_b", m.LayerIdentifier(first), "identifiers are memoised per node")
}

func TestRankClass(t *testing.T) {
	for rank, want := range map[int]int{0: 0, 1: 0, 2: 1, 3: 1, 4: 2, 5: -1} {
		assert.Equal(t, want, RankClass(rank), "rank %d", rank)
	}
}

func TestStaticPlanner(t *testing.T) {
	bufs := []*Buffer{
		{Name: "input_x", ByteSize: 36, Role: Input},
		{Name: "buffer_a", ByteSize: 6, Role: Managed},
		{Name: "buffer_b", ByteSize: 8, Role: Managed},
		{Name: "output_y", ByteSize: 4, Role: Output},
	}

	plan, err := StaticPlanner{}.Plan(bufs)
	require.NoError(t, err)
	require.Len(t, plan.Regions, 2)
	assert.Equal(t, int64(0), plan.Regions[0].Offset)
	assert.Equal(t, int64(8), plan.Regions[1].Offset)
	assert.Equal(t, int64(16), plan.Total)

	plan, err = StaticPlanner{Alignment: 16}.Plan(bufs)
	require.NoError(t, err)
	r, ok := plan.Region("buffer_b")
	require.True(t, ok)
	assert.Equal(t, int64(16), r.Offset)
	assert.Equal(t, int64(24), plan.Total)

	_, err = StaticPlanner{Alignment: 3}.Plan(bufs)
	assert.ErrorIs(t, err, ErrBadAlignment)
}

func TestPlanValidateDetectsOverlap(t *testing.T) {
	a := &Buffer{Name: "buffer_a"}
	b := &Buffer{Name: "buffer_b"}
	plan := &Plan{
		Regions: []Region{{Buffer: a, Offset: 0, Size: 8}, {Buffer: b, Offset: 4, Size: 8}},
		Total:   12,
	}
	err := plan.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegionOverlap)

	var re *RegionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "buffer_a", re.Buffer)
	assert.Equal(t, "buffer_b", re.Buffer2)
}

func TestPlanValidateDetectsOutOfBounds(t *testing.T) {
	plan := &Plan{
		Regions: []Region{{Buffer: &Buffer{Name: "buffer_a"}, Offset: 4, Size: 8}},
		Total:   8,
	}
	err := plan.Validate()
	require.ErrorIs(t, err, ErrRegionOutOfBounds)
	assert.NotErrorIs(t, err, ErrRegionOverlap)
}

func TestLiveRanges(t *testing.T) {
	g := convRelu(t)
	ranges := LiveRanges(g, g.Nodes())
	assert.Equal(t, []LiveRange{
		{Tensor: "c", Start: 0, End: 1},
		{Tensor: "output", Start: 1, End: 1},
	}, ranges)

	assert.True(t, Overlaps(ranges[0], ranges[1]))
	assert.False(t, Overlaps(LiveRange{Start: 0, End: 1}, LiveRange{Start: 2, End: 3}))
}

func TestRenderLiveRanges(t *testing.T) {
	var buf bytes.Buffer
	RenderLiveRanges(&buf, []LiveRange{
		{Tensor: "a", Start: 0, End: 2},
		{Tensor: "b", Start: 1, End: 1},
	}, 3)

	out := buf.String()
	assert.Contains(t, out, "step")
	assert.Contains(t, out, " s ")
	assert.Contains(t, out, " | ")
	assert.Contains(t, out, " e ")
}
