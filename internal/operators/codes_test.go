package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/picogen/internal/memory"
	"github.com/born-ml/picogen/internal/tensor"
	"github.com/born-ml/picogen/internal/weights"
)

func TestKernelAllocation(t *testing.T) {
	r := renderer(t)

	kernel := &memory.Buffer{Name: "buffer_W", Shape: tensor.Shape{4, 3, 3, 3}}
	code, err := KernelAllocation(kernel, 2)
	require.NoError(t, err)
	out, err := code.Render(r)
	require.NoError(t, err)
	assert.Contains(t, out, "TensorShape(4, 3, 3, 3)")
	assert.Contains(t, out, "kernels[2] = buffer_W;")

	bias := &memory.Buffer{Name: "buffer_B", Shape: tensor.Shape{4}}
	assert.Equal(t, BiasTable, WeightTable(bias))
	code, err = KernelAllocation(bias, 0)
	require.NoError(t, err)
	out, err = code.Render(r)
	require.NoError(t, err)
	assert.Contains(t, out, "biases[0] = buffer_B;")

	for _, shape := range []tensor.Shape{{}, {1, 1, 1, 1, 1}} {
		_, err = KernelAllocation(&memory.Buffer{Name: "buffer_S", Shape: shape}, 0)
		assert.ErrorIs(t, err, weights.ErrUnsupportedRank, "shape %s", shape)
	}
}

func TestBufferCodes(t *testing.T) {
	r := renderer(t)
	managed := &memory.Buffer{Name: "buffer_c", Shape: tensor.Shape{1, 4}, Role: memory.Managed}
	input := &memory.Buffer{Name: "input_x", Shape: tensor.Shape{1, 4}, Role: memory.Input}

	out, err := BufferDeclaration(managed).Render(r)
	require.NoError(t, err)
	assert.Equal(t, "    // (1, 4)\n"+
		"    pico_cnn::naive::TensorShape *buffer_c_shape;\n"+
		"    pico_cnn::naive::Tensor *buffer_c;\n", out)

	out, err = BufferDeclaration(input).Render(r)
	require.NoError(t, err)
	assert.NotContains(t, out, "Tensor *input_x;")

	out, err = BufferAllocation(managed).Render(r)
	require.NoError(t, err)
	assert.Equal(t, "    buffer_c_shape = new pico_cnn::naive::TensorShape(1, 4);\n"+
		"    buffer_c = new pico_cnn::naive::Tensor(*buffer_c_shape);\n", out)

	out, err = BufferCleanup(input).Render(r)
	require.NoError(t, err)
	assert.Equal(t, "    delete input_x_shape;\n", out)
}
