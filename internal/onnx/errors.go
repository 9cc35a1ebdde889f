package onnx

import "errors"

// Common errors.
var (
	// ErrMalformed indicates bytes that are not a valid protobuf message.
	ErrMalformed = errors.New("malformed protobuf")
	// ErrNoGraph indicates a model without a graph.
	ErrNoGraph = errors.New("model has no graph")
	// ErrUnsupportedDataType indicates a tensor element type picogen does not model.
	ErrUnsupportedDataType = errors.New("unsupported tensor data type")
	// ErrDataSize indicates tensor data that does not match its dimensions.
	ErrDataSize = errors.New("tensor data does not match dimensions")
)
