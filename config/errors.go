package config

import "errors"

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")
