package compiler

import (
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/born-ml/picogen/internal/ir"
)

// WriteInferenceTable writes one row per scheduled node: name, op type,
// variant, inputs and outputs with their shapes.
func (r *Result) WriteInferenceTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"step", "name", "op", "variant", "inputs", "input shapes", "outputs", "output shapes"})

	for _, t := range r.Tasks {
		n := t.Node
		table.Append([]string{
			strconv.Itoa(t.Step),
			n.Name,
			n.OpType,
			t.Impl.Variant(),
			strings.Join(n.Inputs, "\n"),
			shapes(r.Graph, n.Inputs),
			strings.Join(n.Outputs, "\n"),
			shapes(r.Graph, n.Outputs),
		})
	}
	table.Render()
}

func shapes(g *ir.Graph, ids []ir.TensorID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			parts = append(parts, "-")
			continue
		}
		parts = append(parts, g.ShapeOf(id).String())
	}
	return strings.Join(parts, "\n")
}
