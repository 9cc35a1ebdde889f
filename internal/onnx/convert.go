package onnx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/tensor"
)

// ToRawGraph converts a parsed model into the compiler's input graph.
func ToRawGraph(m *ModelProto) (ir.RawGraph, error) {
	if m == nil || m.Graph == nil {
		return ir.RawGraph{}, ErrNoGraph
	}
	g := m.Graph
	raw := ir.RawGraph{
		Name:         g.Name,
		Initializers: make(map[ir.TensorID]*tensor.Array, len(g.Initializers)),
	}

	for i := range g.Initializers {
		t := &g.Initializers[i]
		v, err := TensorFromProto(t)
		if err != nil {
			return ir.RawGraph{}, fmt.Errorf("initializer %q: %w", t.Name, err)
		}
		raw.Initializers[t.Name] = v
	}
	for _, vi := range g.Inputs {
		if _, isConst := raw.Initializers[vi.Name]; isConst {
			continue
		}
		raw.Inputs = append(raw.Inputs, edgeInfo(vi, true))
	}
	for _, vi := range g.Outputs {
		raw.Outputs = append(raw.Outputs, edgeInfo(vi, false))
	}
	for _, vi := range g.ValueInfo {
		raw.ValueInfo = append(raw.ValueInfo, edgeInfo(vi, false))
	}

	for _, n := range sortNodes(g.Nodes) {
		attrs, err := convertAttrs(n.Attributes)
		if err != nil {
			return ir.RawGraph{}, fmt.Errorf("node %q (%s): %w", n.Name, n.OpType, err)
		}
		raw.Nodes = append(raw.Nodes, ir.RawNode{
			Name:    n.Name,
			OpType:  n.OpType,
			Inputs:  n.Inputs,
			Outputs: n.Outputs,
			Attrs:   attrs,
		})
	}
	return raw, nil
}

// edgeInfo converts a value info. A symbolic leading dimension of a graph
// input is the batch and is fixed to 1; any other symbolic dimension makes
// the shape unknown.
func edgeInfo(vi ValueInfoProto, input bool) ir.EdgeInfo {
	e := ir.EdgeInfo{ID: vi.Name, ElemType: vi.ElemType}
	if !vi.HasShape {
		return e
	}
	shape := make(tensor.Shape, len(vi.Dims))
	for i, d := range vi.Dims {
		switch {
		case d.DimValue > 0:
			shape[i] = int(d.DimValue)
		case input && i == 0:
			shape[i] = 1
		default:
			return e
		}
	}
	e.Shape = shape
	return e
}

// TensorFromProto decodes a TensorProto into a compile-time array.
func TensorFromProto(t *TensorProto) (*tensor.Array, error) {
	dtype, ok := tensor.FromONNX(t.DataType)
	if !ok {
		return nil, fmt.Errorf("type %d: %w", t.DataType, ErrUnsupportedDataType)
	}
	shape := make(tensor.Shape, len(t.Dims))
	for i, d := range t.Dims {
		shape[i] = int(d)
	}

	var data []float64
	switch {
	case len(t.RawData) > 0:
		var err error
		if data, err = decodeRaw(t.RawData, dtype); err != nil {
			return nil, err
		}
	case len(t.FloatData) > 0:
		data = widen(t.FloatData)
	case len(t.Int32Data) > 0:
		// int32_data also carries uint8 and bool values.
		data = widen(t.Int32Data)
	case len(t.Int64Data) > 0:
		data = widen(t.Int64Data)
	case len(t.DoubleData) > 0:
		data = t.DoubleData
	default:
		data = []float64{}
	}

	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%q: %d values for shape %v: %w", t.Name, len(data), shape, ErrDataSize)
	}
	return tensor.NewArray(shape, dtype, data)
}

func widen[T float32 | int32 | int64](values []T) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

func decodeRaw(b []byte, dtype tensor.DataType) ([]float64, error) {
	size := dtype.Size()
	if len(b)%size != 0 {
		return nil, fmt.Errorf("%d raw bytes for %s: %w", len(b), dtype, ErrDataSize)
	}
	out := make([]float64, len(b)/size)
	for i := range out {
		chunk := b[i*size:]
		switch dtype {
		case tensor.Float32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case tensor.Float64:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		case tensor.Int32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(chunk))) //nolint:gosec // G115: two's complement.
		case tensor.Int64:
			out[i] = float64(int64(binary.LittleEndian.Uint64(chunk))) //nolint:gosec // G115: two's complement.
		case tensor.Uint8, tensor.Bool:
			out[i] = float64(chunk[0])
		}
	}
	return out, nil
}

func convertAttrs(protos []AttributeProto) (ir.Attrs, error) {
	attrs := make(ir.Attrs, len(protos))
	for i := range protos {
		a := &protos[i]
		switch attrType(a) {
		case AttributeProtoFloat:
			attrs[a.Name] = ir.Float(a.F)
		case AttributeProtoInt:
			attrs[a.Name] = ir.Int(a.I)
		case AttributeProtoString:
			attrs[a.Name] = ir.String(string(a.S))
		case AttributeProtoTensor:
			v, err := TensorFromProto(a.T)
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
			}
			attrs[a.Name] = ir.Tensor(v)
		case AttributeProtoFloats:
			attrs[a.Name] = ir.Floats(a.Floats...)
		case AttributeProtoInts:
			attrs[a.Name] = ir.Ints(a.Ints...)
		case AttributeProtoStrings:
			s := make([]string, len(a.Strings))
			for j, b := range a.Strings {
				s[j] = string(b)
			}
			attrs[a.Name] = ir.Strings(s...)
		}
	}
	return attrs, nil
}

// attrType returns the declared type or, for writers that omit it, the
// type implied by the populated field.
func attrType(a *AttributeProto) int32 {
	switch {
	case a.Type != 0:
		return a.Type
	case a.T != nil:
		return AttributeProtoTensor
	case len(a.Ints) > 0:
		return AttributeProtoInts
	case len(a.Floats) > 0:
		return AttributeProtoFloats
	case len(a.Strings) > 0:
		return AttributeProtoStrings
	case a.S != nil:
		return AttributeProtoString
	case a.F != 0:
		return AttributeProtoFloat
	default:
		return AttributeProtoInt
	}
}

// sortNodes returns nodes in an order where every producer precedes its
// consumers. Already sorted input is returned unchanged.
func sortNodes(nodes []NodeProto) []NodeProto {
	producer := make(map[string]int, len(nodes))
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			producer[out] = i
		}
	}

	visited := make([]bool, len(nodes))
	sorted := make([]NodeProto, 0, len(nodes))
	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		for _, in := range nodes[i].Inputs {
			if p, ok := producer[in]; ok {
				visit(p)
			}
		}
		sorted = append(sorted, nodes[i])
	}
	for i := range nodes {
		visit(i)
	}
	return sorted
}

// ModelInfo summarises a model without converting it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	GraphName       string
	InputNames      []string
	OutputNames     []string
	NodeCount       int
	WeightCount     int
}

// Info returns a summary of m.
func Info(m *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       m.IRVersion,
		ProducerName:    m.ProducerName,
		ProducerVersion: m.ProducerVersion,
	}
	for _, op := range m.OpsetImport {
		if op.Domain == "" || op.Domain == "ai.onnx" {
			info.OpsetVersion = op.Version
			break
		}
	}
	if m.Graph == nil {
		return info
	}

	g := m.Graph
	info.GraphName = g.Name
	weights := make(map[string]bool, len(g.Initializers))
	for i := range g.Initializers {
		weights[g.Initializers[i].Name] = true
	}
	for _, in := range g.Inputs {
		if !weights[in.Name] {
			info.InputNames = append(info.InputNames, in.Name)
		}
	}
	for _, out := range g.Outputs {
		info.OutputNames = append(info.OutputNames, out.Name)
	}
	info.NodeCount = len(g.Nodes)
	info.WeightCount = len(g.Initializers)
	return info
}
