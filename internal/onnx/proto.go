package onnx

// Subset of the ONNX protobuf schema read by picogen.

// ModelProto is the top-level ONNX message.
type ModelProto struct {
	IRVersion       int64
	OpsetImport     []OperatorSetID
	ProducerName    string
	ProducerVersion string
	Graph           *GraphProto
}

// GraphProto is the computation graph.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	Initializers []TensorProto
	ValueInfo    []ValueInfoProto // Shapes of intermediate tensors
}

// NodeProto is a single operator application.
type NodeProto struct {
	Name       string
	OpType     string
	Inputs     []string
	Outputs    []string
	Attributes []AttributeProto
	Domain     string
}

// TensorProto is a constant tensor (initializer or attribute value).
type TensorProto struct {
	Name       string
	DataType   int32
	Dims       []int64
	RawData    []byte
	FloatData  []float32
	Int32Data  []int32
	Int64Data  []int64
	DoubleData []float64
}

// ValueInfoProto names a tensor and its type.
type ValueInfoProto struct {
	Name     string
	ElemType int32
	Dims     []DimensionProto
	HasShape bool
}

// DimensionProto is one dimension, static or symbolic.
type DimensionProto struct {
	DimValue int64
	DimParam string
}

// AttributeProto is a node attribute.
type AttributeProto struct {
	Name    string
	Type    int32
	F       float32
	I       int64
	S       []byte
	T       *TensorProto
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// OperatorSetID identifies an opset version.
type OperatorSetID struct {
	Domain  string
	Version int64
}

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeProtoFloat   = 1
	AttributeProtoInt     = 2
	AttributeProtoString  = 3
	AttributeProtoTensor  = 4
	AttributeProtoGraph   = 5
	AttributeProtoFloats  = 6
	AttributeProtoInts    = 7
	AttributeProtoStrings = 8
)
