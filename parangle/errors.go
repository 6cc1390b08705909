package parangle

import "errors"

// Sentinel errors for parallactic angle handling.
var (
	// ErrInvalidAngle indicates a NaN or infinite parallactic angle.
	ErrInvalidAngle = errors.New("parangle: angle is not finite")

	// ErrInvalidTolerance indicates a tolerance that is not finite and positive.
	ErrInvalidTolerance = errors.New("parangle: tolerance must be finite and positive")
)
