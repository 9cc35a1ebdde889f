package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type pb []byte

func (m pb) str(num protowire.Number, s string) pb {
	return protowire.AppendString(protowire.AppendTag(m, num, protowire.BytesType), s)
}

func (m pb) msg(num protowire.Number, sub pb) pb {
	return protowire.AppendBytes(protowire.AppendTag(m, num, protowire.BytesType), sub)
}

func (m pb) varint(num protowire.Number, v int64) pb {
	return protowire.AppendVarint(protowire.AppendTag(m, num, protowire.VarintType), uint64(v))
}

func valueInfo(name string, dims ...int64) pb {
	var shape pb
	for _, d := range dims {
		shape = shape.msg(1, pb{}.varint(1, d))
	}
	return pb{}.str(1, name).msg(2, pb{}.msg(1, pb{}.varint(1, 1).msg(2, shape)))
}

// writeModel writes X(1,4) -> Gemm(F) -> Relu -> Y(1,2) to dir/mlp.onnx.
func writeModel(t *testing.T, dir string) string {
	t.Helper()
	raw := make([]byte, 8*4)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(0.5))
	}
	f := pb{}.varint(1, 2).varint(1, 4).varint(2, 1).str(8, "F").msg(9, raw)
	transB := pb{}.str(1, "transB").varint(20, 2).varint(3, 1)
	gemm := pb{}.str(1, "X").str(1, "F").str(2, "h").str(3, "fc").str(4, "Gemm").msg(5, transB)
	relu := pb{}.str(1, "h").str(2, "Y").str(3, "relu").str(4, "Relu")
	graph := pb{}.str(2, "torch_jit").msg(1, gemm).msg(1, relu).msg(5, f).
		msg(11, valueInfo("X", 1, 4)).
		msg(12, valueInfo("Y", 1, 2))
	data := pb{}.varint(1, 8).msg(8, pb{}.varint(2, 13)).msg(7, graph)

	path := filepath.Join(dir, "mlp.onnx")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRunGeneratesFiles(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir)
	out := filepath.Join(dir, "generated_code")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--input", model, "--out", out}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	for _, name := range []string{"network.h", "network.cpp", "network.weights.bin", "Makefile", "dummy_input.cpp"} {
		assert.FileExists(t, filepath.Join(out, "mlp", name))
	}
	src, err := os.ReadFile(filepath.Join(out, "mlp", "network.cpp"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "kernels = new pico_cnn::naive::Tensor*[1]();")
	assert.Contains(t, stderr.String(), "wrote network")
}

func TestRunWithConfig(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir)
	cfgPath := filepath.Join(dir, "picogen.yaml")
	cfg := "output_dir: " + filepath.Join(dir, "build") + "\nlog_level: warn\nprint_table: true\nprint_live_ranges: true\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--input", model, "--config", cfgPath, "--name", "tiny net"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.FileExists(t, filepath.Join(dir, "build", "tiny_net", "network.h"))
	assert.Contains(t, stdout.String(), "FullyConnected")
	assert.Empty(t, stderr.String(), "info logs are filtered at warn")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--input is required")

	assert.Equal(t, 2, run(context.Background(), []string{"--bogus"}, &stdout, &stderr))

	assert.Equal(t, 1, run(context.Background(), []string{"--input", filepath.Join(dir, "none.onnx"), "--out", dir}, &stdout, &stderr))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("alignment: 3\n"), 0o600))
	assert.Equal(t, 1, run(context.Background(), []string{"--input", writeModel(t, dir), "--config", bad}, &stdout, &stderr))
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"--version"}, &stdout, &stderr))
	assert.Equal(t, "picogen "+version+"\n", stdout.String())
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "lenet", modelName("/models/lenet.onnx"))
	assert.Equal(t, "alexnet", modelName("alexnet.polished.onnx"))
	assert.Equal(t, "plain", modelName("plain"))
}
