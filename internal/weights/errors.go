package weights

import "errors"

// Common errors.
var (
	ErrUnsupportedRank = errors.New("unsupported tensor rank")
	ErrInvalidMagic    = errors.New("invalid magic bytes")
	ErrMissingEnd      = errors.New("missing end marker")
	ErrLayoutMismatch  = errors.New("weights do not match layout")
)
