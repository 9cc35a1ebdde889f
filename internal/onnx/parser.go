package onnx

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: the model path is user input.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	if err := readModel(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if m.Graph == nil {
		return nil, ErrNoGraph
	}
	return m, nil
}

// fieldFunc handles one field. v holds the encoded value without its tag.
type fieldFunc func(num protowire.Number, typ protowire.Type, v []byte) error

// walk calls fn for every field of the message in b.
func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
		}
		if err := fn(num, typ, b[:n]); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		b = b[n:]
	}
	return nil
}

func bytesValue(typ protowire.Type, v []byte) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("%w: wire type %d, expected bytes", ErrMalformed, typ)
	}
	b, _ := protowire.ConsumeBytes(v)
	return b, nil
}

func stringValue(typ protowire.Type, v []byte) (string, error) {
	b, err := bytesValue(typ, v)
	return string(b), err
}

func varintValue(typ protowire.Type, v []byte) (int64, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: wire type %d, expected varint", ErrMalformed, typ)
	}
	x, _ := protowire.ConsumeVarint(v)
	return int64(x), nil //nolint:gosec // G115: int64 fields are encoded as two's complement varints.
}

// appendVarints decodes a packed or unpacked repeated varint field.
func appendVarints(dst []int64, typ protowire.Type, v []byte) ([]int64, error) {
	if typ == protowire.VarintType {
		x, err := varintValue(typ, v)
		return append(dst, x), err
	}
	b, err := bytesValue(typ, v)
	if err != nil {
		return dst, err
	}
	for len(b) > 0 {
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return dst, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		dst = append(dst, int64(x)) //nolint:gosec // G115: see varintValue.
		b = b[n:]
	}
	return dst, nil
}

// appendFloats decodes a packed or unpacked repeated float field.
func appendFloats(dst []float32, typ protowire.Type, v []byte) ([]float32, error) {
	if typ == protowire.Fixed32Type {
		x, _ := protowire.ConsumeFixed32(v)
		return append(dst, math.Float32frombits(x)), nil
	}
	b, err := bytesValue(typ, v)
	if err != nil {
		return dst, err
	}
	if len(b)%4 != 0 {
		return dst, fmt.Errorf("%w: packed floats of %d bytes", ErrMalformed, len(b))
	}
	for i := 0; i < len(b); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
	}
	return dst, nil
}

// appendDoubles decodes a packed or unpacked repeated double field.
func appendDoubles(dst []float64, typ protowire.Type, v []byte) ([]float64, error) {
	if typ == protowire.Fixed64Type {
		x, _ := protowire.ConsumeFixed64(v)
		return append(dst, math.Float64frombits(x)), nil
	}
	b, err := bytesValue(typ, v)
	if err != nil {
		return dst, err
	}
	if len(b)%8 != 0 {
		return dst, fmt.Errorf("%w: packed doubles of %d bytes", ErrMalformed, len(b))
	}
	for i := 0; i < len(b); i += 8 {
		dst = append(dst, math.Float64frombits(binary.LittleEndian.Uint64(b[i:])))
	}
	return dst, nil
}

// message decodes an embedded message field with read.
func message[T any](typ protowire.Type, v []byte, read func([]byte, *T) error) (T, error) {
	var m T
	b, err := bytesValue(typ, v)
	if err != nil {
		return m, err
	}
	err = read(b, &m)
	return m, err
}

func readModel(b []byte, m *ModelProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1: // ir_version
			m.IRVersion, err = varintValue(typ, v)
		case 2: // producer_name
			m.ProducerName, err = stringValue(typ, v)
		case 3: // producer_version
			m.ProducerVersion, err = stringValue(typ, v)
		case 7: // graph
			var g GraphProto
			g, err = message(typ, v, readGraph)
			m.Graph = &g
		case 8: // opset_import
			var op OperatorSetID
			op, err = message(typ, v, readOpset)
			m.OpsetImport = append(m.OpsetImport, op)
		}
		return err
	})
}

func readGraph(b []byte, g *GraphProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1: // node
			var n NodeProto
			n, err = message(typ, v, readNode)
			g.Nodes = append(g.Nodes, n)
		case 2: // name
			g.Name, err = stringValue(typ, v)
		case 5: // initializer
			var t TensorProto
			t, err = message(typ, v, readTensor)
			g.Initializers = append(g.Initializers, t)
		case 11, 12, 13: // input, output, value_info
			var vi ValueInfoProto
			vi, err = message(typ, v, readValueInfo)
			switch num {
			case 11:
				g.Inputs = append(g.Inputs, vi)
			case 12:
				g.Outputs = append(g.Outputs, vi)
			default:
				g.ValueInfo = append(g.ValueInfo, vi)
			}
		}
		return err
	})
}

func readNode(b []byte, n *NodeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var (
			s   string
			err error
		)
		switch num {
		case 1: // input
			s, err = stringValue(typ, v)
			n.Inputs = append(n.Inputs, s)
		case 2: // output
			s, err = stringValue(typ, v)
			n.Outputs = append(n.Outputs, s)
		case 3: // name
			n.Name, err = stringValue(typ, v)
		case 4: // op_type
			n.OpType, err = stringValue(typ, v)
		case 5: // attribute
			var a AttributeProto
			a, err = message(typ, v, readAttribute)
			n.Attributes = append(n.Attributes, a)
		case 7: // domain
			n.Domain, err = stringValue(typ, v)
		}
		return err
	})
}

func readTensor(b []byte, t *TensorProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1: // dims
			t.Dims, err = appendVarints(t.Dims, typ, v)
		case 2: // data_type
			var x int64
			x, err = varintValue(typ, v)
			t.DataType = int32(x) //nolint:gosec // G115: enum value.
		case 4: // float_data
			t.FloatData, err = appendFloats(t.FloatData, typ, v)
		case 5: // int32_data
			var xs []int64
			xs, err = appendVarints(nil, typ, v)
			for _, x := range xs {
				t.Int32Data = append(t.Int32Data, int32(x)) //nolint:gosec // G115: int32 field.
			}
		case 7: // int64_data
			t.Int64Data, err = appendVarints(t.Int64Data, typ, v)
		case 8: // name
			t.Name, err = stringValue(typ, v)
		case 9: // raw_data
			t.RawData, err = bytesValue(typ, v)
		case 10: // double_data
			t.DoubleData, err = appendDoubles(t.DoubleData, typ, v)
		}
		return err
	})
}

// readValueInfo flattens ValueInfoProto.type.tensor_type into vi.
func readValueInfo(b []byte, vi *ValueInfoProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1: // name
			var err error
			vi.Name, err = stringValue(typ, v)
			return err
		case 2: // type
			tb, err := bytesValue(typ, v)
			if err != nil {
				return err
			}
			return walk(tb, func(num protowire.Number, typ protowire.Type, v []byte) error {
				if num != 1 { // tensor_type
					return nil
				}
				tt, err := bytesValue(typ, v)
				if err != nil {
					return err
				}
				return readTensorType(tt, vi)
			})
		}
		return nil
	})
}

func readTensorType(b []byte, vi *ValueInfoProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1: // elem_type
			x, err := varintValue(typ, v)
			vi.ElemType = int32(x) //nolint:gosec // G115: enum value.
			return err
		case 2: // shape
			sb, err := bytesValue(typ, v)
			if err != nil {
				return err
			}
			vi.HasShape = true
			return walk(sb, func(num protowire.Number, typ protowire.Type, v []byte) error {
				if num != 1 { // dim
					return nil
				}
				d, err := message(typ, v, readDimension)
				vi.Dims = append(vi.Dims, d)
				return err
			})
		}
		return nil
	})
}

func readDimension(b []byte, d *DimensionProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1: // dim_value
			d.DimValue, err = varintValue(typ, v)
		case 2: // dim_param
			d.DimParam, err = stringValue(typ, v)
		}
		return err
	})
}

func readAttribute(b []byte, a *AttributeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1: // name
			a.Name, err = stringValue(typ, v)
		case 2: // f
			var fs []float32
			fs, err = appendFloats(nil, typ, v)
			if len(fs) == 1 {
				a.F = fs[0]
			}
		case 3: // i
			a.I, err = varintValue(typ, v)
		case 4: // s
			a.S, err = bytesValue(typ, v)
		case 5: // t
			var t TensorProto
			t, err = message(typ, v, readTensor)
			a.T = &t
		case 7: // floats
			a.Floats, err = appendFloats(a.Floats, typ, v)
		case 8: // ints
			a.Ints, err = appendVarints(a.Ints, typ, v)
		case 9: // strings
			var s []byte
			s, err = bytesValue(typ, v)
			a.Strings = append(a.Strings, s)
		case 20: // type
			var x int64
			x, err = varintValue(typ, v)
			a.Type = int32(x) //nolint:gosec // G115: enum value.
		}
		return err
	})
}

func readOpset(b []byte, op *OperatorSetID) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1: // domain
			op.Domain, err = stringValue(typ, v)
		case 2: // version
			op.Version, err = varintValue(typ, v)
		}
		return err
	})
}
