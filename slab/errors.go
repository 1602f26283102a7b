package slab

import "errors"

// Error kinds. Every failure returned by this package wraps exactly one of
// them; the backing store's own cause stays reachable through errors.Is
// and errors.As.
var (
	ErrOpen                 = errors.New("slab: cannot open dataset")
	ErrTypeMismatch         = errors.New("slab: element type mismatch")
	ErrExtentQuery          = errors.New("slab: cannot query extent")
	ErrDimensionMismatch    = errors.New("slab: dimension mismatch")
	ErrUnsupportedAxisOrder = errors.New("slab: unsupported axis order")
	ErrSelection            = errors.New("slab: invalid disk selection")
	ErrMemSelection         = errors.New("slab: invalid memory selection")
	ErrRead                 = errors.New("slab: read failed")
	ErrClosed               = errors.New("slab: array is closed")
)
