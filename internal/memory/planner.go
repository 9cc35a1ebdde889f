package memory

import (
	"fmt"
	"sort"
)

// Region is the slice of the static arena assigned to one buffer.
type Region struct {
	Buffer *Buffer
	Offset int64
	Size   int64
}

// End returns the first byte after the region.
func (r Region) End() int64 { return r.Offset + r.Size }

// Plan is a static memory layout for a set of buffers.
type Plan struct {
	Regions []Region
	Total   int64
}

// Region returns the region of the named buffer.
func (p *Plan) Region(name string) (Region, bool) {
	for _, r := range p.Regions {
		if r.Buffer.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Validate checks that no two regions overlap and that all lie inside Total.
func (p *Plan) Validate() error {
	sorted := make([]Region, len(p.Regions))
	copy(sorted, p.Regions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	for i, r := range sorted {
		if r.Offset < 0 || r.Size < 0 {
			return &RegionError{
				Err:     ErrNegativeRegion,
				Buffer:  r.Buffer.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", r.Offset, r.Size),
			}
		}
		if r.End() > p.Total {
			return &RegionError{
				Err:     ErrRegionOutOfBounds,
				Buffer:  r.Buffer.Name,
				Details: fmt.Sprintf("offset %d + size %d > total %d", r.Offset, r.Size, p.Total),
			}
		}
		if i < len(sorted)-1 && r.End() > sorted[i+1].Offset {
			next := sorted[i+1]
			return &RegionError{
				Err:     ErrRegionOverlap,
				Buffer:  r.Buffer.Name,
				Buffer2: next.Buffer.Name,
				Details: fmt.Sprintf("[%d-%d] and [%d-%d]", r.Offset, r.End(), next.Offset, next.End()),
			}
		}
	}
	return nil
}

// Planner lays buffers out in memory.
type Planner interface {
	Plan(buffers []*Buffer) (*Plan, error)
}

// StaticPlanner gives every managed buffer its own region, back to back.
// Input and output buffers are owned by the caller and are skipped.
type StaticPlanner struct {
	// Alignment of each region in bytes (default: ElementSize).
	Alignment int64
}

// Plan implements Planner.
func (p StaticPlanner) Plan(buffers []*Buffer) (*Plan, error) {
	align := p.Alignment
	if align == 0 {
		align = ElementSize
	}
	if align < 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadAlignment, align)
	}

	plan := &Plan{}
	var offset int64
	for _, b := range buffers {
		if !b.IsManaged() {
			continue
		}
		offset = (offset + align - 1) &^ (align - 1)
		plan.Regions = append(plan.Regions, Region{Buffer: b, Offset: offset, Size: int64(b.ByteSize)})
		offset += int64(b.ByteSize)
	}
	plan.Total = offset
	return plan, plan.Validate()
}
