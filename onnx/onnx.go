// Package onnx compiles ONNX models into pico-cnn C++ networks.
//
// A model is parsed from its protobuf encoding, simplified, mapped onto
// pico-cnn layers and emitted as a Network class together with the binary
// weights file the class reads at startup.
//
// # Example Usage
//
//	import "github.com/born-ml/picogen/onnx"
//
//	res, err := onnx.CompileFile(ctx, "lenet.onnx", onnx.Options{ModelName: "lenet"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := res.Artifacts.WriteDir("generated_code/lenet"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Generated Files
//
//   - network.h: the Network class declaration
//   - network.cpp: constructor, run() and destructor
//   - network.weights.bin: kernels and biases in pico-cnn's binary format
//   - Makefile: builds the network against libpico-cnn
//   - dummy_input.cpp: runs the network on random input
//
// Use [ListSupportedOps] to get the operators with at least one pico-cnn
// implementation.
package onnx

import (
	"context"

	"github.com/pkg/errors"

	"github.com/born-ml/picogen/internal/compiler"
	internalonnx "github.com/born-ml/picogen/internal/onnx"
	"github.com/born-ml/picogen/internal/operators"
)

// Options configures compilation.
type Options = compiler.Options

// Result holds every intermediate product of one compilation.
type Result = compiler.Result

// Artifacts are the generated files of one model.
type Artifacts = compiler.Artifacts

// Errors callers may test for with errors.Is.
var (
	ErrMalformed        = internalonnx.ErrMalformed
	ErrNoGraph          = internalonnx.ErrNoGraph
	ErrUnsupportedGraph = compiler.ErrUnsupportedGraph
	ErrNoImplementation = operators.ErrNoImplementation
	ErrUnsupported      = operators.ErrUnsupported
)

// Load parses the ONNX model stored at path.
func Load(path string) (Model, error) {
	pb, err := internalonnx.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return newModel(pb), nil
}

// Parse parses an ONNX model from its protobuf encoding.
func Parse(data []byte) (Model, error) {
	pb, err := internalonnx.Parse(data)
	if err != nil {
		return nil, err
	}
	return newModel(pb), nil
}

// Compile compiles m into a pico-cnn network.
//
// Example:
//
//	m, err := onnx.Load("mnist.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := onnx.Compile(ctx, m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(res.Artifacts.Source)
func Compile(ctx context.Context, m Model, opts ...Options) (*Result, error) {
	raw, err := internalonnx.ToRawGraph(m.proto())
	if err != nil {
		return nil, errors.WithMessage(err, "convert model")
	}
	c, err := compiler.New(opts...)
	if err != nil {
		return nil, err
	}
	return c.Compile(ctx, raw)
}

// CompileFile loads and compiles the model stored at path.
func CompileFile(ctx context.Context, path string, opts ...Options) (*Result, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Compile(ctx, m, opts...)
}

// ListSupportedOps returns the operator types with at least one pico-cnn
// implementation, sorted.
func ListSupportedOps() []string {
	return operators.NewRegistry().SupportedOps()
}
