// Package onnx reads ONNX models.
//
// The parser decodes the subset of the ONNX protobuf schema picogen needs
// (model, graph, node, tensor, value info and attribute messages) with
// protowire, without generated code. ToRawGraph turns a parsed model into
// the format-neutral ir.RawGraph the compiler consumes:
//
//   - initializers become constant tensors
//   - graph inputs that are also initializers are dropped
//   - value_info entries become shape hints
//   - tensor attributes (Constant nodes) are decoded into tensor.Array values
//
// Example usage:
//
//	model, err := onnx.ParseFile("lenet.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	raw, err := onnx.ToRawGraph(model)
package onnx
