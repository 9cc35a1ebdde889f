package memory

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrRegionOverlap     = errors.New("buffer regions overlap")
	ErrRegionOutOfBounds = errors.New("buffer region exceeds the plan")
	ErrNegativeRegion    = errors.New("negative offset or size")
	ErrBadAlignment      = errors.New("alignment must be a power of two")

	// ErrUnknownShape marks a buffer whose tensor shape could not be derived.
	ErrUnknownShape = errors.New("unknown buffer shape")
	// ErrUnsupportedRank marks a buffer of rank above 4.
	ErrUnsupportedRank = errors.New("unsupported buffer rank")
)

// RegionError names the buffers involved in an invalid plan.
type RegionError struct {
	Err     error
	Buffer  string
	Buffer2 string
	Details string
}

// Error implements the error interface.
func (e *RegionError) Error() string {
	if e.Buffer2 != "" {
		return fmt.Sprintf("%v: %s and %s: %s", e.Err, e.Buffer, e.Buffer2, e.Details)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Buffer, e.Details)
}

// Unwrap returns the sentinel error.
func (e *RegionError) Unwrap() error { return e.Err }
