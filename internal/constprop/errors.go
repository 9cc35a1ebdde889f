package constprop

import "errors"

var (
	// ErrNoFixpoint indicates the worklist exceeded its iteration budget.
	ErrNoFixpoint = errors.New("propagation did not reach a fixed point")

	// errUnknownInput is returned by transfer functions missing a required
	// input state. The engine treats it like any other transfer failure.
	errUnknownInput = errors.New("input state unknown")
)
