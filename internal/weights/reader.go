package weights

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Reader reads a weights file.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Decode reads a weights file laid out as layout.
func Decode(r io.Reader, layout *Layout) (*File, error) {
	return NewReader(r).ReadFile(layout)
}

// ReadFile reads the whole file, checking it against layout.
func (r *Reader) ReadFile(layout *Layout) (*File, error) {
	magic := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(r.r, magic); err != nil {
		return nil, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return nil, fmt.Errorf("got %q: %w", magic, ErrInvalidMagic)
	}

	name, err := r.line()
	if err != nil {
		return nil, fmt.Errorf("failed to read model name: %w", err)
	}
	if name != layout.ModelName {
		return nil, fmt.Errorf("model name %q, expected %q: %w", name, layout.ModelName, ErrLayoutMismatch)
	}

	count, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read layer count: %w", err)
	}
	if int(count) != len(layout.Layers) {
		return nil, fmt.Errorf("%d layers, expected %d: %w", count, len(layout.Layers), ErrLayoutMismatch)
	}

	f := &File{ModelName: name, Layers: make([]Layer, 0, count)}
	for _, ll := range layout.Layers {
		layer, err := r.readLayer(ll)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", ll.Name, err)
		}
		f.Layers = append(f.Layers, *layer)
	}

	end := make([]byte, len(EndMarker))
	if _, err := io.ReadFull(r.r, end); err != nil || string(end) != EndMarker {
		return nil, ErrMissingEnd
	}
	return f, nil
}

func (r *Reader) readLayer(ll LayerLayout) (*Layer, error) {
	name, err := r.line()
	if err != nil {
		return nil, err
	}
	op, err := r.line()
	if err != nil {
		return nil, err
	}
	if name != ll.Name || op != ll.OpType {
		return nil, fmt.Errorf("found %s (%s): %w", name, op, ErrLayoutMismatch)
	}

	layer := &Layer{Name: name, OpType: op, ZeroBias: ll.ZeroBias}
	for i, id := range ll.Tensors {
		fields, err := fieldCount(ll.Ranks[i])
		if err != nil {
			return nil, err
		}
		dims := make([]uint32, fields)
		if err := binary.Read(r.r, binary.LittleEndian, dims); err != nil {
			return nil, fmt.Errorf("failed to read dims of %s: %w", id, err)
		}

		entry := Entry{Tensor: id, Dims: dims}
		elements := 1
		for _, d := range dims {
			elements *= int(d)
		}
		if elements == 0 {
			entry.Repeated = true
		} else {
			entry.Data = make([]float32, elements)
			if err := binary.Read(r.r, binary.LittleEndian, entry.Data); err != nil {
				return nil, fmt.Errorf("failed to read data of %s: %w", id, err)
			}
		}
		layer.Entries = append(layer.Entries, entry)
	}

	if ll.ZeroBias {
		zero, err := r.uint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read bias count: %w", err)
		}
		if zero != 0 {
			return nil, fmt.Errorf("bias count %d: %w", zero, ErrLayoutMismatch)
		}
	}
	return layer, nil
}

func (r *Reader) line() (string, error) {
	s, err := r.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(s, "\n"), nil
}

func (r *Reader) uint32() (uint32, error) {
	var v uint32
	err := binary.Read(r.r, binary.LittleEndian, &v)
	return v, err
}
