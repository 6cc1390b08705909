package convfunc

import "errors"

// Sentinel errors for convolution-function builders.
var (
	// ErrMisbehaved indicates a kernel with no support or a non-positive
	// integral.
	ErrMisbehaved = errors.New("convfunc: convolution function is misbehaved")

	// ErrInvalidParams indicates builder parameters that cannot produce a kernel.
	ErrInvalidParams = errors.New("convfunc: invalid parameters")
)
