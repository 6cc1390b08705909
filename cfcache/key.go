package cfcache

import (
	"fmt"
	"strings"

	"github.com/jonwraymond/cfgrid/cfstore"
)

// Status is the outcome of a Locate call.
type Status int

const (
	// NotCached means at least one requested plane is neither in memory
	// nor on disk.
	NotCached Status = iota
	// MemoryHit means every plane was resident; no disk I/O happened.
	MemoryHit
	// DiskHit means the planes were read from disk and promoted to memory.
	DiskHit
)

func (s Status) String() string {
	switch s {
	case MemoryHit:
		return "memory"
	case DiskHit:
		return "disk"
	default:
		return "miss"
	}
}

// planeKey identifies one cached w-plane.
type planeKey struct {
	slot   int
	freq   float64
	role   cfstore.Role
	plane  int
	mosaic cfstore.Offset
}

func (k planeKey) String() string {
	return fmt.Sprintf("slot=%d/%gHz/%s/w=%d/mosaic=%d,%d", k.slot, k.freq, k.role, k.plane, k.mosaic.X, k.mosaic.Y)
}

// stackKey identifies an assembled w-stack.
type stackKey struct {
	slot   int
	freq   float64
	role   cfstore.Role
	nW     int
	mosaic cfstore.Offset
}

// validQualifier rejects names that would escape the cache directory.
func validQualifier(q string) error {
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("%w: empty qualifier", ErrInvalidQuery)
	}
	if strings.ContainsAny(q, "/\\\n\r") || strings.Contains(q, "..") {
		return fmt.Errorf("%w: qualifier %q", ErrInvalidQuery, q)
	}
	return nil
}
