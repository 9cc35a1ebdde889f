package codegen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"conv1", "conv1"},
		{"layer.0/weight:0", "layer_0_weight_0"},
		{"a-b c", "a_b_c"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Identifier(tt.in), tt.in)
	}
	assert.Equal(t, "_0_conv", Symbol("0/conv"))
	assert.Equal(t, "conv_0", Symbol("conv.0"))
}

func TestFloat(t *testing.T) {
	assert.Equal(t, "1.0f", Float(1))
	assert.Equal(t, "0.0001f", Float(0.0001))
	assert.Equal(t, "1e-05f", Float(1e-5))
	assert.Equal(t, "6.0f", Float(6))
}

func TestJoin(t *testing.T) {
	s, err := Join([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "1, 2, 3", s)

	s, err = Join([]int64{4})
	require.NoError(t, err)
	assert.Equal(t, "4", s)

	_, err = Join("nope")
	assert.Error(t, err)
}

func TestRenderLayerTemplates(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	out, err := r.Render("layers/conv2d_alloc", Params{
		"identifier": "conv1",
		"name":       "conv1",
		"kernel":     "buffer_W",
		"bias":       "",
		"padding":    []int(nil),
		"stride":     []int{1, 1},
		"groups":     1,
	})
	require.NoError(t, err)
	assert.Contains(t, out, `conv1_layer = new pico_cnn::naive::Convolution("conv1", 0, pico_cnn::op_type::Conv,`)
	assert.Contains(t, out, "uint32_t conv1_stride[2] = { 1, 1 };")
	assert.Contains(t, out, "nullptr, conv1_stride, conv1_groups);")
	assert.NotContains(t, out, "conv1_padding")

	out, err = r.Render("layers/layer_exec", Params{"identifier": "relu", "input": "buffer_a", "output": "output_y"})
	require.NoError(t, err)
	assert.Equal(t, "    relu_layer->run(buffer_a, output_y);\n", out)
}

func TestRenderMemoryTemplates(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	out, err := r.Render("memory/kernel_allocation", Params{
		"name": "buffer_W", "dims": []int{1, 1, 3, 3}, "table": "kernels", "pos": 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "    buffer_W_shape = new pico_cnn::naive::TensorShape(1, 1, 3, 3);\n"+
		"    buffer_W = new pico_cnn::naive::Tensor(*buffer_W_shape);\n"+
		"    kernels[0] = buffer_W;\n", out)

	out, err = r.Render("memory/buffer_cleanup", Params{"name": "input_x", "tensor": false})
	require.NoError(t, err)
	assert.Equal(t, "    delete input_x_shape;\n", out)

	out, err = r.Render("memory/buffer_cleanup", Params{"name": "buffer_c", "tensor": true})
	require.NoError(t, err)
	assert.Equal(t, "    delete buffer_c;\n    delete buffer_c_shape;\n", out)
}

func TestRenderMissingKeyFails(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	_, err = r.Render("layers/layer_exec", Params{"identifier": "relu"})
	assert.Error(t, err)
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	_, err = r.Render("layers/nope", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	out, err := r.Render("", nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = r.Render("empty", Params{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRenderOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "layers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layers", "layer_delete.tmpl"),
		[]byte("    // keep {{.identifier}}\n"), 0o600))

	r, err := NewTemplateRenderer(RendererOptions{OverrideDir: dir})
	require.NoError(t, err)

	out, err := r.Render("layers/layer_delete", Params{"identifier": "conv"})
	require.NoError(t, err)
	assert.Equal(t, "    // keep conv\n", out)

	out, err = r.Render("layers/layer_exec", Params{"identifier": "conv", "input": "a", "output": "b"})
	require.NoError(t, err)
	assert.Equal(t, "    conv_layer->run(a, b);\n", out, "non-overridden templates come from the embedded set")

	_, err = NewTemplateRenderer(RendererOptions{OverrideDir: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestEveryTemplateParses(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)
	names, err := r.Names()
	require.NoError(t, err)
	assert.Contains(t, names, "program/network_source")
	for _, name := range names {
		_, err := r.lookup(name)
		assert.NoError(t, err, name)
	}
}
