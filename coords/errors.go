package coords

import "errors"

// Sentinel errors for coordinate handling.
var (
	// ErrZeroIncrement indicates a coordinate with a zero pixel increment.
	ErrZeroIncrement = errors.New("coords: increment must be non-zero")

	// ErrInvalidShape indicates a non-positive axis length.
	ErrInvalidShape = errors.New("coords: shape must be positive")
)
