// Package tensor provides the compile-time tensor values and shapes used by
// the picogen pipeline.
package tensor

// DataType represents the element type of a constant tensor.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
)

// ONNX TensorProto.DataType codes.
const (
	onnxFloat  int32 = 1
	onnxUint8  int32 = 2
	onnxInt32  int32 = 6
	onnxInt64  int32 = 7
	onnxBool   int32 = 9
	onnxDouble int32 = 11
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// IsInteger reports whether values of this type are integral.
func (dt DataType) IsInteger() bool {
	switch dt {
	case Int32, Int64, Uint8, Bool:
		return true
	}
	return false
}

// ONNX returns the ONNX element type code for dt.
func (dt DataType) ONNX() int32 {
	switch dt {
	case Float32:
		return onnxFloat
	case Float64:
		return onnxDouble
	case Int32:
		return onnxInt32
	case Int64:
		return onnxInt64
	case Uint8:
		return onnxUint8
	case Bool:
		return onnxBool
	default:
		return 0
	}
}

// FromONNX maps an ONNX element type code to a DataType.
// The second result is false for element types picogen does not model.
func FromONNX(code int32) (DataType, bool) {
	switch code {
	case onnxFloat:
		return Float32, true
	case onnxDouble:
		return Float64, true
	case onnxInt32:
		return Int32, true
	case onnxInt64:
		return Int64, true
	case onnxUint8:
		return Uint8, true
	case onnxBool:
		return Bool, true
	default:
		return Float32, false
	}
}
