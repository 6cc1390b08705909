package lattice

import "errors"

// Sentinel errors for lattice operations.
var (
	// ErrInvalidShape indicates a lattice or tile size that is not positive.
	ErrInvalidShape = errors.New("lattice: invalid shape")

	// ErrOutOfRange indicates a pixel, row or column outside the lattice.
	ErrOutOfRange = errors.New("lattice: index out of range")

	// ErrPaging indicates a tile that could not be read from or written to
	// the backing store.
	ErrPaging = errors.New("lattice: paging failed")

	// ErrClosed indicates use of a closed lattice or store.
	ErrClosed = errors.New("lattice: closed")
)
