package parangle

import (
	"fmt"
	"math"
	"sync"
)

// DefaultTolerance is the angular tolerance (radians) used when none is given.
const DefaultTolerance = 0.01

// Detector reports whether a parallactic angle has moved far enough from the
// last accepted value to require a new convolution function.
//
// Contract:
// - Concurrency: safe for concurrent use; one Detector belongs to one machine.
// - Errors: non-finite angles are rejected with ErrInvalidAngle and leave state untouched.
type Detector struct {
	mu        sync.Mutex
	tolerance float64
	last      float64
	primed    bool
}

// NewDetector creates a detector with tolerance dPA in radians.
func NewDetector(dPA float64) (*Detector, error) {
	if err := ValidateTolerance(dPA); err != nil {
		return nil, err
	}
	return &Detector{tolerance: dPA}, nil
}

// Update feeds a new angle. It reports true, and stores pa, when no angle has
// been accepted yet or when |pa-last| >= tolerance. Otherwise it reports
// false and leaves the stored angle alone.
func (d *Detector) Update(pa float64) (bool, error) {
	if err := Validate(pa); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.primed && !exceeds(pa, d.last, d.tolerance) {
		return false, nil
	}
	d.last = pa
	d.primed = true
	return true, nil
}

// Changed evaluates the Update predicate without storing anything.
func (d *Detector) Changed(pa float64) (bool, error) {
	if err := Validate(pa); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.primed || exceeds(pa, d.last, d.tolerance), nil
}

// Reset forgets the last accepted angle. The next Update reports a change.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.primed = false
	d.last = 0
	d.mu.Unlock()
}

// Last returns the last accepted angle and whether one exists.
func (d *Detector) Last() (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.primed
}

// Tolerance returns the configured tolerance in radians.
func (d *Detector) Tolerance() float64 {
	return d.tolerance
}

// Validate rejects NaN and infinite angles.
func Validate(pa float64) error {
	if math.IsNaN(pa) || math.IsInf(pa, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAngle, pa)
	}
	return nil
}

// ValidateTolerance rejects tolerances that are not finite and positive.
func ValidateTolerance(dPA float64) error {
	if math.IsNaN(dPA) || math.IsInf(dPA, 0) || dPA <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, dPA)
	}
	return nil
}

// Within reports whether a and b share a bucket under tolerance dPA, i.e.
// they differ by strictly less than dPA.
func Within(a, b, dPA float64) bool {
	return !exceeds(a, b, dPA)
}

func exceeds(a, b, dPA float64) bool {
	return math.Abs(a-b) >= dPA
}
