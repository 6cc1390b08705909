package cfcache

import (
	"errors"

	"github.com/jonwraymond/cfgrid/parangle"
)

// Sentinel errors for cache operations.
var (
	// ErrCorruptCacheEntry indicates an index row referencing a kernel file
	// that is missing, unreadable as a kernel, or of the wrong shape. Fatal.
	ErrCorruptCacheEntry = errors.New("cfcache: corrupt cache entry")

	// ErrPersistenceFailure indicates a failed disk write. The in-memory
	// state is still valid.
	ErrPersistenceFailure = errors.New("cfcache: persistence failure")

	// ErrNotFound indicates an auxiliary image that is not cached.
	ErrNotFound = errors.New("cfcache: not found")

	// ErrInvalidQuery indicates a malformed lookup or insert.
	ErrInvalidQuery = errors.New("cfcache: invalid query")

	// ErrNoCacheDir indicates a disk operation without a cache directory.
	ErrNoCacheDir = errors.New("cfcache: no cache directory configured")

	// ErrInvalidAngle is parangle.ErrInvalidAngle.
	ErrInvalidAngle = parangle.ErrInvalidAngle
)
