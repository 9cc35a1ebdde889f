package onnx

import (
	internalonnx "github.com/born-ml/picogen/internal/onnx"
)

// Model is a parsed ONNX model ready to be compiled.
//
// The model keeps the decoded protobuf graph, including initializers.
// Use Compile to turn it into a pico-cnn network.
type Model interface {
	// Name returns the graph name, empty if the exporter left it unset.
	Name() string

	// InputNames returns the names of the graph inputs that are not
	// initializers.
	InputNames() []string

	// OutputNames returns the names of the graph outputs.
	OutputNames() []string

	// OpsetVersion returns the default-domain opset version.
	OpsetVersion() int64

	// Metadata returns model metadata as key-value pairs.
	//
	// Keys:
	//   - "producer_name": Framework that exported the model (e.g., "pytorch")
	//   - "producer_version": Version of the exporter
	//   - "graph_name": Name of the main graph
	Metadata() map[string]string

	// Info returns a structural summary of the model.
	Info() *ModelInfo

	proto() *internalonnx.ModelProto
}

// ModelInfo summarises a model without converting it.
type ModelInfo = internalonnx.ModelInfo

type model struct {
	pb   *internalonnx.ModelProto
	info *internalonnx.ModelInfo
}

func newModel(pb *internalonnx.ModelProto) *model {
	return &model{pb: pb, info: internalonnx.Info(pb)}
}

func (m *model) Name() string { return m.info.GraphName }

func (m *model) InputNames() []string {
	return append([]string(nil), m.info.InputNames...)
}

func (m *model) OutputNames() []string {
	return append([]string(nil), m.info.OutputNames...)
}

func (m *model) OpsetVersion() int64 { return m.info.OpsetVersion }

func (m *model) Metadata() map[string]string {
	md := map[string]string{}
	if m.info.ProducerName != "" {
		md["producer_name"] = m.info.ProducerName
	}
	if m.info.ProducerVersion != "" {
		md["producer_version"] = m.info.ProducerVersion
	}
	if m.info.GraphName != "" {
		md["graph_name"] = m.info.GraphName
	}
	return md
}

func (m *model) Info() *ModelInfo {
	info := *m.info
	return &info
}

func (m *model) proto() *internalonnx.ModelProto { return m.pb }
