package ftmachine

import "errors"

// Sentinel errors for machine operations.
var (
	// ErrNotActive indicates Put, Get or Finalize before initialization.
	ErrNotActive = errors.New("ftmachine: not initialized")

	// ErrFinalized indicates use of a finalized machine without a new
	// initialization.
	ErrFinalized = errors.New("ftmachine: finalized")

	// ErrAlreadyActive indicates an initialization of an active machine.
	ErrAlreadyActive = errors.New("ftmachine: already initialized")

	// ErrWrongDirection indicates Put on a machine initialized to
	// visibilities, Get on one initialized to the sky, or the mismatching
	// finalize call.
	ErrWrongDirection = errors.New("ftmachine: operation does not match initialization")

	// ErrInvalidImage indicates an image with no pixels, a bad coordinate or
	// data of the wrong length.
	ErrInvalidImage = errors.New("ftmachine: invalid image")

	// ErrInvalidOption indicates an option value the machine cannot use.
	ErrInvalidOption = errors.New("ftmachine: invalid option")
)
