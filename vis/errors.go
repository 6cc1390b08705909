package vis

import "errors"

// ErrShapeMismatch indicates a buffer whose per-row arrays disagree with its
// row, channel or polarization counts.
var ErrShapeMismatch = errors.New("vis: buffer shape mismatch")
