package memory

import (
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/born-ml/picogen/internal/ir"
)

// LiveRange is the span of steps over which a tensor must stay allocated.
type LiveRange struct {
	Tensor ir.TensorID
	Start  int
	End    int
}

// Overlaps reports whether the two ranges share at least one step.
func Overlaps(a, b LiveRange) bool {
	return a.Start <= b.End && b.Start <= a.End
}

// LiveRanges computes the live range of every tensor produced by a node in
// order. A range starts at the producing step and ends at the last step that
// reads the tensor. Graph outputs live until the final step; tensors nobody
// reads end where they start. Ranges are sorted by tensor id.
func LiveRanges(g *ir.Graph, order []*ir.Node) []LiveRange {
	starts := make(map[ir.TensorID]int)
	ends := make(map[ir.TensorID]int)
	for step, n := range order {
		for _, out := range n.Outputs {
			if out != "" {
				starts[out] = step
			}
		}
		for _, in := range n.Inputs {
			if _, ok := starts[in]; ok {
				ends[in] = step
			}
		}
	}

	ranges := make([]LiveRange, 0, len(starts))
	for id, start := range starts {
		end, ok := ends[id]
		switch {
		case g != nil && g.IsOutput(id):
			end = len(order) - 1
		case !ok:
			end = start
		}
		ranges = append(ranges, LiveRange{Tensor: id, Start: start, End: end})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Tensor < ranges[j].Tensor })
	return ranges
}

// RenderLiveRanges writes a chart with one column per tensor and one row per
// step: "s" marks the start, "|" a live step and "e" the end.
func RenderLiveRanges(w io.Writer, ranges []LiveRange, steps int) {
	header := []string{"step"}
	for _, r := range ranges {
		header = append(header, r.Tensor)
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetHeader(header)

	for step := 0; step < steps; step++ {
		row := []string{strconv.Itoa(step)}
		for _, r := range ranges {
			row = append(row, mark(r, step))
		}
		table.Append(row)
	}
	table.Render()
}

func mark(r LiveRange, step int) string {
	switch {
	case step == r.Start:
		return "s"
	case step > r.Start && step < r.End:
		return "|"
	case step == r.End && step > r.Start:
		return "e"
	default:
		return ""
	}
}
