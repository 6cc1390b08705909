package cfstore

import "errors"

// Sentinel errors for convolution-function stores.
var (
	// ErrInvalidShape indicates a kernel or support shape that is not positive
	// or does not agree with the rest of the store.
	ErrInvalidShape = errors.New("cfstore: invalid shape")

	// ErrSupportTooLarge indicates a support radius exceeding half the kernel size.
	ErrSupportTooLarge = errors.New("cfstore: support exceeds half the kernel size")

	// ErrOutOfRange indicates an index outside an array or matrix.
	ErrOutOfRange = errors.New("cfstore: index out of range")

	// ErrCorrupt indicates a serialized store that cannot be decoded.
	ErrCorrupt = errors.New("cfstore: corrupt encoding")
)
