package compiler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/memory"
	"github.com/born-ml/picogen/internal/operators"
	"github.com/born-ml/picogen/internal/tensor"
	"github.com/born-ml/picogen/internal/weights"
)

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newCompiler(t *testing.T, opts ...Options) *Compiler {
	t.Helper()
	opt := Options{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	opt.Logger = quietLogger()
	c, err := New(opt)
	require.NoError(t, err)
	return c
}

func kernel(t *testing.T) *tensor.Array {
	t.Helper()
	w, err := tensor.FromFloat32s(tensor.Shape{1, 1, 3, 3}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)
	return w
}

// convRelu is input (1,1,3,3) -> Conv 3x3 -> c -> Relu -> output (1,1,1,1).
func convRelu(t *testing.T) ir.RawGraph {
	return ir.RawGraph{
		Name:         "conv_relu",
		Inputs:       []ir.EdgeInfo{{ID: "input", ElemType: 1, Shape: tensor.Shape{1, 1, 3, 3}}},
		Outputs:      []ir.EdgeInfo{{ID: "output", ElemType: 1, Shape: tensor.Shape{1, 1, 1, 1}}},
		Initializers: map[ir.TensorID]*tensor.Array{"W": kernel(t)},
		Nodes: []ir.RawNode{
			{Name: "conv", OpType: "Conv", Inputs: []ir.TensorID{"input", "W"}, Outputs: []ir.TensorID{"c"},
				Attrs: ir.Attrs{"kernel_shape": ir.Ints(3, 3)}},
			{Name: "relu", OpType: "Relu", Inputs: []ir.TensorID{"c"}, Outputs: []ir.TensorID{"output"}},
		},
	}
}

func TestCompileConvRelu(t *testing.T) {
	res, err := newCompiler(t).Compile(context.Background(), convRelu(t))
	require.NoError(t, err)

	assert.Equal(t, "conv_relu", res.ModelName)
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, res.Graph.ShapeOf("c"))

	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "Conv2D", res.Tasks[0].Impl.Variant())
	assert.Equal(t, "ReLU", res.Tasks[1].Impl.Variant())

	sizes := map[memory.Role]int{}
	for _, b := range res.Buffers.Buffers() {
		if res.Graph.IsConstant(b.ID) {
			continue
		}
		sizes[b.Role] = b.ByteSize
	}
	assert.Equal(t, map[memory.Role]int{memory.Input: 36, memory.Managed: 4, memory.Output: 4}, sizes)

	require.NoError(t, res.Program.CheckOrder())
	firstExec := -1
	for i, f := range res.Program.Fragments {
		if f.Phase == PhaseExecution {
			firstExec = i
			break
		}
	}
	require.Positive(t, firstExec)
	for _, name := range []string{"input_input", "buffer_c", "output_output"} {
		idx := -1
		for i, f := range res.Program.Fragments {
			if f.Phase == PhaseAllocation && f.Owner == name {
				idx = i
			}
		}
		require.NotEqual(t, -1, idx, "no allocation for %s", name)
		assert.Less(t, idx, firstExec, "%s allocated after an execution", name)
	}

	a := res.Artifacts
	assert.Contains(t, a.Header, "void run(pico_cnn::naive::Tensor *input_input, pico_cnn::naive::Tensor *output_output);")
	assert.Contains(t, a.Header, "pico_cnn::naive::Tensor *buffer_c;")
	assert.NotContains(t, a.Header, "pico_cnn::naive::Tensor *input_input;")
	assert.Contains(t, a.Source, "kernels = new pico_cnn::naive::Tensor*[1]();")
	assert.Contains(t, a.Source, "biases = new pico_cnn::naive::Tensor*[0]();")
	assert.Contains(t, a.Source, "kernels[0] = buffer_W;")
	assert.Contains(t, a.Source, "conv_layer->run(input_input, buffer_c);")
	assert.Contains(t, a.Source, "relu_layer->run(buffer_c, output_output);")
	assert.Contains(t, a.Source, "// Layer 0 conv Conv")
	assert.Contains(t, a.Source, "//   kernel_shape: ")
	assert.Less(t, strings.Index(a.Source, "conv_layer->run"), strings.Index(a.Source, "relu_layer->run"))
	assert.Less(t, strings.Index(a.Source, "delete relu_layer;"), strings.Index(a.Source, "delete[] kernels;"))
	assert.Contains(t, a.Source, ";\n    delete[] kernels;\n    delete[] biases;\n}")
	assert.Contains(t, a.Makefile, "all: dummy_input conv_relu")
	assert.Contains(t, a.DummyInput, "TensorShape(1, 1, 3, 3)")
	assert.Contains(t, a.DummyInput, "fill_random(input_tensor, 9);")

	layout, err := weights.LayoutOf(res.ModelName, Order(res.Tasks))
	require.NoError(t, err)
	f, err := weights.Decode(bytes.NewReader(a.Weights), layout)
	require.NoError(t, err)
	require.Len(t, f.Layers, 1)
	assert.Equal(t, "conv", f.Layers[0].Name)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, f.Layers[0].Entries[0].Data)
	assert.True(t, f.Layers[0].ZeroBias)

	_, ok := res.Plan.Region("input_input")
	assert.False(t, ok, "caller buffers are not planned")
	assert.Equal(t, int64(36+4), res.Plan.Total)
}

func TestCompileRemovesUnsqueeze(t *testing.T) {
	raw := convRelu(t)
	raw.Nodes = append([]ir.RawNode{{
		Name: "unsqueeze", OpType: "Unsqueeze",
		Inputs: []ir.TensorID{"input"}, Outputs: []ir.TensorID{"u"},
		Attrs: ir.Attrs{"axes": ir.Ints(0)},
	}}, raw.Nodes...)
	raw.Nodes[1].Inputs = []ir.TensorID{"u", "W"}

	res, err := newCompiler(t).Compile(context.Background(), raw)
	require.NoError(t, err)

	var ops []string
	for _, n := range res.Graph.Nodes() {
		ops = append(ops, n.OpType)
	}
	assert.Equal(t, []string{"Conv", "Relu"}, ops)
	assert.Equal(t, "input", res.Graph.Nodes()[0].Input(0))
	assert.Equal(t, []string{"unsqueeze"}, res.Rewrites.Bypassed)
	assert.Contains(t, res.Artifacts.Source, "conv_layer->run(input_input, buffer_c);")
}

func TestCompileIsDeterministic(t *testing.T) {
	serial, err := newCompiler(t, Options{Parallelism: 1}).Compile(context.Background(), convRelu(t))
	require.NoError(t, err)
	concurrent, err := newCompiler(t, Options{Parallelism: 8}).Compile(context.Background(), convRelu(t))
	require.NoError(t, err)
	assert.Equal(t, serial.Artifacts, concurrent.Artifacts)
}

func TestCompileModelName(t *testing.T) {
	res, err := newCompiler(t, Options{ModelName: "lenet"}).Compile(context.Background(), convRelu(t))
	require.NoError(t, err)
	assert.Equal(t, "lenet", res.ModelName)
	assert.True(t, bytes.HasPrefix(res.Artifacts.Weights, []byte("FD\nlenet\n")))

	raw := convRelu(t)
	raw.Name = ""
	res, err = newCompiler(t).Compile(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, DefaultModelName, res.ModelName)
}

func TestCompileRejectsInterface(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.RawGraph)
	}{
		{"two inputs", func(raw *ir.RawGraph) {
			raw.Inputs = append(raw.Inputs, ir.EdgeInfo{ID: "extra", ElemType: 1, Shape: tensor.Shape{1, 4}})
		}},
		{"two outputs", func(raw *ir.RawGraph) {
			raw.Outputs = append(raw.Outputs, ir.EdgeInfo{ID: "c", ElemType: 1, Shape: tensor.Shape{1, 1, 1, 1}})
		}},
		{"batch of two", func(raw *ir.RawGraph) {
			raw.Inputs[0].Shape = tensor.Shape{2, 1, 3, 3}
			raw.Outputs[0].Shape = tensor.Shape{2, 1, 1, 1}
		}},
		{"rank five", func(raw *ir.RawGraph) {
			raw.Inputs[0].Shape = tensor.Shape{1, 1, 1, 1, 1}
			raw.Outputs[0].Shape = tensor.Shape{1, 1, 1, 1, 1}
			raw.Initializers = nil
			raw.Nodes = []ir.RawNode{{Name: "relu", OpType: "Relu", Inputs: []ir.TensorID{"input"}, Outputs: []ir.TensorID{"output"}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := convRelu(t)
			tt.mutate(&raw)
			_, err := newCompiler(t).Compile(context.Background(), raw)
			assert.ErrorIs(t, err, ErrUnsupportedGraph)
		})
	}
}

func TestCompileReportsDeclaredShapeConflict(t *testing.T) {
	raw := convRelu(t)
	raw.Outputs[0].Shape = tensor.Shape{1, 1, 2, 2}

	res, err := newCompiler(t).Compile(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "output", res.Conflicts[0].Tensor)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, res.Conflicts[0].Declared)
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, res.Conflicts[0].Inferred)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, res.Graph.ShapeOf("output"))
}

func TestCompileRejectsRankFiveBuffer(t *testing.T) {
	raw := ir.RawGraph{
		Name:    "rank_five",
		Inputs:  []ir.EdgeInfo{{ID: "input", ElemType: 1, Shape: tensor.Shape{1, 1, 3, 3}}},
		Outputs: []ir.EdgeInfo{{ID: "output", ElemType: 1, Shape: tensor.Shape{1, 1, 3, 3}}},
		Initializers: map[ir.TensorID]*tensor.Array{
			"wide_shape":   tensor.Vector(1, 1, 1, 3, 3),
			"narrow_shape": tensor.Vector(1, 1, 3, 3),
		},
		Nodes: []ir.RawNode{
			{Name: "up", OpType: "Reshape", Inputs: []ir.TensorID{"input", "wide_shape"}, Outputs: []ir.TensorID{"wide"}},
			{Name: "act", OpType: "Sigmoid", Inputs: []ir.TensorID{"wide"}, Outputs: []ir.TensorID{"s"}},
			{Name: "down", OpType: "Reshape", Inputs: []ir.TensorID{"s", "narrow_shape"}, Outputs: []ir.TensorID{"output"}},
		},
	}
	_, err := newCompiler(t).Compile(context.Background(), raw)
	require.ErrorIs(t, err, memory.ErrUnsupportedRank)
	assert.Contains(t, err.Error(), `"wide"`)
}

func TestCompileDistinctLayerIdentifiers(t *testing.T) {
	raw := ir.RawGraph{
		Name:    "clash",
		Inputs:  []ir.EdgeInfo{{ID: "input", ElemType: 1, Shape: tensor.Shape{1, 4}}},
		Outputs: []ir.EdgeInfo{{ID: "output", ElemType: 1, Shape: tensor.Shape{1, 4}}},
		Nodes: []ir.RawNode{
			{Name: "a.b", OpType: "Relu", Inputs: []ir.TensorID{"input"}, Outputs: []ir.TensorID{"h"}},
			{Name: "a_b", OpType: "Sigmoid", Inputs: []ir.TensorID{"h"}, Outputs: []ir.TensorID{"output"}},
		},
	}
	res, err := newCompiler(t).Compile(context.Background(), raw)
	require.NoError(t, err)

	h := res.Artifacts.Header
	assert.Equal(t, 1, strings.Count(h, " *a_b_layer;"))
	assert.Equal(t, 1, strings.Count(h, " *a_b_1_layer;"))
	assert.Contains(t, res.Artifacts.Source, "a_b_layer->run(input_input, buffer_h);")
	assert.Contains(t, res.Artifacts.Source, "a_b_1_layer->run(buffer_h, output_output);")
}

func TestCompileNoImplementation(t *testing.T) {
	raw := convRelu(t)
	raw.Nodes[1].OpType = "Elu"
	_, err := newCompiler(t).Compile(context.Background(), raw)
	require.ErrorIs(t, err, operators.ErrNoImplementation)
	assert.Contains(t, err.Error(), `"relu" (Elu)`)
}

func TestScheduleRequiresTopologicalOrder(t *testing.T) {
	raw := convRelu(t)
	raw.Nodes[0], raw.Nodes[1] = raw.Nodes[1], raw.Nodes[0]
	g, err := ir.New(raw, ir.Options{Logger: quietLogger()})
	require.NoError(t, err)

	_, err = Schedule(g, nil)
	assert.ErrorIs(t, err, ErrNotTopological)

	g, err = ir.New(convRelu(t), ir.Options{Logger: quietLogger()})
	require.NoError(t, err)
	_, err = Schedule(g, nil)
	assert.ErrorIs(t, err, operators.ErrNoImplementation)
}

func TestProgramCheckOrder(t *testing.T) {
	p := &Program{Fragments: []Fragment{
		{Phase: PhaseDeclaration, Owner: "a"},
		{Phase: PhaseAllocation, Owner: "a"},
		{Phase: PhaseDeclaration, Owner: "b"},
		{Phase: PhaseExecution, Owner: "a"},
		{Phase: PhaseDeletion, Owner: "a"},
	}}
	require.NoError(t, p.CheckOrder())

	p.Fragments = append(p.Fragments, Fragment{Phase: PhaseExecution, Owner: "b"})
	assert.Error(t, p.CheckOrder())
}

func TestArtifactsWriteDir(t *testing.T) {
	res, err := newCompiler(t).Compile(context.Background(), convRelu(t))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, res.Artifacts.WriteDir(dir))
	for name, want := range res.Artifacts.Files() {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestReports(t *testing.T) {
	res, err := newCompiler(t).Compile(context.Background(), convRelu(t))
	require.NoError(t, err)

	var table bytes.Buffer
	res.WriteInferenceTable(&table)
	assert.Contains(t, table.String(), "Conv2D")
	assert.Contains(t, table.String(), "(1, 1, 3, 3)")

	var chart bytes.Buffer
	res.WriteLiveRanges(&chart)
	assert.Contains(t, chart.String(), "output")
}
