package cfstore

import "fmt"

// Shape is the extent of a kernel array: w-planes, Mueller elements, y, x.
type Shape [4]int

// NW returns the number of w-planes.
func (s Shape) NW() int { return s[0] }

// NPol returns the number of Mueller elements.
func (s Shape) NPol() int { return s[1] }

// NY returns the kernel height in oversampled pixels.
func (s Shape) NY() int { return s[2] }

// NX returns the kernel width in oversampled pixels.
func (s Shape) NX() int { return s[3] }

// Len returns the number of samples.
func (s Shape) Len() int { return s[0] * s[1] * s[2] * s[3] }

// boundedLen returns the number of samples when every extent is positive
// and the product does not exceed limit.
func (s Shape) boundedLen(limit int) (int, bool) {
	n := 1
	for _, d := range s {
		if d <= 0 || d > limit/n {
			return 0, false
		}
		n *= d
	}
	return n, true
}

func (s Shape) valid() bool {
	return s[0] > 0 && s[1] > 0 && s[2] > 0 && s[3] > 0
}

// Array is a dense complex kernel array.
type Array struct {
	shape Shape
	data  []complex64
}

// NewArray allocates a zeroed array.
func NewArray(shape Shape) (*Array, error) {
	if !shape.valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, shape)
	}
	return &Array{shape: shape, data: make([]complex64, shape.Len())}, nil
}

// NewArrayFrom wraps data without copying. len(data) must match shape.
func NewArrayFrom(shape Shape, data []complex64) (*Array, error) {
	if !shape.valid() || len(data) != shape.Len() {
		return nil, fmt.Errorf("%w: %v with %d samples", ErrInvalidShape, shape, len(data))
	}
	return &Array{shape: shape, data: data}, nil
}

// Shape returns the array extent.
func (a *Array) Shape() Shape { return a.shape }

// Data exposes the flat storage. Callers must not modify it once the array
// belongs to a Store.
func (a *Array) Data() []complex64 { return a.data }

func (a *Array) offset(w, pol, y, x int) (int, bool) {
	s := a.shape
	if w < 0 || w >= s[0] || pol < 0 || pol >= s[1] || y < 0 || y >= s[2] || x < 0 || x >= s[3] {
		return 0, false
	}
	return ((w*s[1]+pol)*s[2]+y)*s[3] + x, true
}

// At returns the sample at (w, pol, y, x), or zero and false when the index
// is outside the array.
func (a *Array) At(w, pol, y, x int) (complex64, bool) {
	i, ok := a.offset(w, pol, y, x)
	if !ok {
		return 0, false
	}
	return a.data[i], true
}

// Set stores a sample.
func (a *Array) Set(w, pol, y, x int, v complex64) error {
	i, ok := a.offset(w, pol, y, x)
	if !ok {
		return fmt.Errorf("%w: (%d,%d,%d,%d) in %v", ErrOutOfRange, w, pol, y, x, a.shape)
	}
	a.data[i] = v
	return nil
}

// Plane returns the ny*nx samples of one (w, pol) plane, sharing storage.
func (a *Array) Plane(w, pol int) ([]complex64, error) {
	start, ok := a.offset(w, pol, 0, 0)
	if !ok {
		return nil, fmt.Errorf("%w: plane (%d,%d) in %v", ErrOutOfRange, w, pol, a.shape)
	}
	n := a.shape[2] * a.shape[3]
	return a.data[start : start+n : start+n], nil
}

// Planes returns a view of w-planes [from, to), sharing storage.
func (a *Array) Planes(from, to int) (*Array, error) {
	if from < 0 || to > a.shape[0] || from >= to {
		return nil, fmt.Errorf("%w: planes [%d,%d) of %d", ErrOutOfRange, from, to, a.shape[0])
	}
	per := a.shape[1] * a.shape[2] * a.shape[3]
	shape := a.shape
	shape[0] = to - from
	return &Array{shape: shape, data: a.data[from*per : to*per : to*per]}, nil
}

// Equal reports whether both arrays have the same shape and identical samples.
func (a *Array) Equal(b *Array) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.shape != b.shape {
		return false
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}
