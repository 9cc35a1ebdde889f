package weights

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/born-ml/picogen/internal/ir"
)

// Writer writes a weights file.
type Writer struct {
	w       *bufio.Writer
	written map[ir.TensorID]bool
	layers  int
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), written: make(map[ir.TensorID]bool)}
}

// WriteModel writes the whole file for the eligible nodes in order.
func (w *Writer) WriteModel(modelName string, nodes []*ir.Node) error {
	var eligible []*ir.Node
	for _, n := range nodes {
		if Eligible(n) {
			eligible = append(eligible, n)
		}
	}

	if _, err := w.w.WriteString(MagicBytes); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}
	if _, err := w.w.WriteString(modelName + "\n"); err != nil {
		return fmt.Errorf("failed to write model name: %w", err)
	}
	if err := w.uint32s(uint32(len(eligible))); err != nil {
		return fmt.Errorf("failed to write layer count: %w", err)
	}
	for _, n := range eligible {
		if err := w.writeLayer(n); err != nil {
			return fmt.Errorf("layer %s: %w", n.Name, err)
		}
	}
	if _, err := w.w.WriteString(EndMarker); err != nil {
		return fmt.Errorf("failed to write end marker: %w", err)
	}
	return w.w.Flush()
}

// Layers returns the number of layers written.
func (w *Writer) Layers() int { return w.layers }

func (w *Writer) writeLayer(n *ir.Node) error {
	if _, err := w.w.WriteString(n.Name + "\n" + n.OpType + "\n"); err != nil {
		return err
	}

	consts := n.ConstantInputs()
	for _, id := range consts {
		v, _ := n.InputTensor(id)
		dims, err := dimFields(v.Shape)
		if err != nil {
			return fmt.Errorf("input %s: %w", id, err)
		}
		if w.written[id] {
			if err := w.uint32s(make([]uint32, len(dims))...); err != nil {
				return err
			}
			continue
		}
		w.written[id] = true
		if err := w.uint32s(dims...); err != nil {
			return err
		}
		if err := binary.Write(w.w, binary.LittleEndian, v.Float32s()); err != nil {
			return fmt.Errorf("failed to write %s: %w", id, err)
		}
	}

	if len(consts) == 1 && n.OpType != "Add" {
		if err := w.uint32s(0); err != nil {
			return err
		}
	}
	w.layers++
	return nil
}

func (w *Writer) uint32s(vals ...uint32) error {
	return binary.Write(w.w, binary.LittleEndian, vals)
}

// Encode returns the weights file for nodes.
func Encode(modelName string, nodes []*ir.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteModel(modelName, nodes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
