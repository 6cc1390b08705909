package cfstore

import (
	"fmt"
	"math"

	"github.com/jonwraymond/cfgrid/coords"
)

// Role distinguishes gridding kernels from weight kernels.
type Role uint8

const (
	// RoleCF marks a kernel used to grid and degrid visibilities.
	RoleCF Role = iota
	// RoleWeight marks a kernel used to grid imaging weights.
	RoleWeight
)

func (r Role) String() string {
	switch r {
	case RoleCF:
		return "cf"
	case RoleWeight:
		return "weight"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Offset is a mosaic pointing offset in image pixels.
type Offset struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Params describes a Store to build.
type Params struct {
	Kernel     *Array
	Coords     coords.Direction
	XSupport   *SupportMatrix
	YSupport   *SupportMatrix
	Sampling   int
	PA         float64
	FirstPlane int
	WValues    []float64
	Frequency  float64
	Mosaic     Offset
	Role       Role
}

// Store is an immutable convolution function with its metadata.
type Store struct {
	kernel     *Array
	coords     coords.Direction
	xSupport   *SupportMatrix
	ySupport   *SupportMatrix
	sampling   int
	pa         float64
	firstPlane int
	wValues    []float64
	frequency  float64
	mosaic     Offset
	role       Role
}

// New validates p and builds a Store. The kernel array is retained, not
// copied; callers must not modify it afterwards.
func New(p Params) (*Store, error) {
	if p.Kernel == nil {
		return nil, fmt.Errorf("%w: nil kernel", ErrInvalidShape)
	}
	if p.Sampling <= 0 {
		return nil, fmt.Errorf("%w: sampling %d", ErrInvalidShape, p.Sampling)
	}
	if p.FirstPlane < 0 {
		return nil, fmt.Errorf("%w: first plane %d", ErrInvalidShape, p.FirstPlane)
	}
	if math.IsNaN(p.PA) || math.IsInf(p.PA, 0) {
		return nil, fmt.Errorf("%w: parallactic angle %v", ErrInvalidShape, p.PA)
	}
	shape := p.Kernel.Shape()
	for name, m := range map[string]*SupportMatrix{"x": p.XSupport, "y": p.YSupport} {
		if m == nil {
			return nil, fmt.Errorf("%w: nil %s support", ErrInvalidShape, name)
		}
		if r, c := m.Dims(); r != shape.NW() || c != shape.NPol() {
			return nil, fmt.Errorf("%w: %s support %dx%d for kernel %v", ErrInvalidShape, name, r, c, shape)
		}
	}
	if err := checkSupport(p.XSupport, shape.NX(), p.Sampling, "x"); err != nil {
		return nil, err
	}
	if err := checkSupport(p.YSupport, shape.NY(), p.Sampling, "y"); err != nil {
		return nil, err
	}

	wValues := make([]float64, shape.NW())
	if p.WValues != nil {
		if len(p.WValues) != shape.NW() {
			return nil, fmt.Errorf("%w: %d w values for %d planes", ErrInvalidShape, len(p.WValues), shape.NW())
		}
		copy(wValues, p.WValues)
	}

	return &Store{
		kernel:     p.Kernel,
		coords:     p.Coords,
		xSupport:   p.XSupport.Clone(),
		ySupport:   p.YSupport.Clone(),
		sampling:   p.Sampling,
		pa:         p.PA,
		firstPlane: p.FirstPlane,
		wValues:    wValues,
		frequency:  p.Frequency,
		mosaic:     p.Mosaic,
		role:       p.Role,
	}, nil
}

// checkSupport enforces support*sampling <= size/2 for every entry.
func checkSupport(m *SupportMatrix, size, sampling int, axis string) error {
	limit := size / 2
	for i, r := range m.data {
		if r < 0 || r*sampling > limit {
			return fmt.Errorf("%w: %s support %d at entry %d, sampling %d, kernel size %d",
				ErrSupportTooLarge, axis, r, i, sampling, size)
		}
	}
	return nil
}

// Kernel returns the kernel array.
func (s *Store) Kernel() *Array { return s.kernel }

// Coords returns the kernel coordinate.
func (s *Store) Coords() coords.Direction { return s.coords }

// XSupport returns a copy of the x support radii.
func (s *Store) XSupport() *SupportMatrix { return s.xSupport.Clone() }

// YSupport returns a copy of the y support radii.
func (s *Store) YSupport() *SupportMatrix { return s.ySupport.Clone() }

// Support returns the x and y radii for kernel plane w and Mueller element pol.
func (s *Store) Support(w, pol int) (int, int, error) {
	x, err := s.xSupport.At(w, pol)
	if err != nil {
		return 0, 0, err
	}
	y, err := s.ySupport.At(w, pol)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// Sampling returns the oversampling factor.
func (s *Store) Sampling() int { return s.sampling }

// PA returns the parallactic angle (radians) the kernel was computed for.
func (s *Store) PA() float64 { return s.pa }

// FirstPlane returns the absolute w-plane index of kernel plane 0.
func (s *Store) FirstPlane() int { return s.firstPlane }

// NW returns the number of w-planes held.
func (s *Store) NW() int { return s.kernel.Shape().NW() }

// NPol returns the number of Mueller elements held.
func (s *Store) NPol() int { return s.kernel.Shape().NPol() }

// WValue returns the w value of kernel plane w.
func (s *Store) WValue(w int) float64 {
	if w < 0 || w >= len(s.wValues) {
		return 0
	}
	return s.wValues[w]
}

// Frequency returns the reference frequency (Hz) of the kernel.
func (s *Store) Frequency() float64 { return s.frequency }

// Mosaic returns the mosaic pointing offset of the kernel.
func (s *Store) Mosaic() Offset { return s.mosaic }

// Role returns whether this is a gridding or a weight kernel.
func (s *Store) Role() Role { return s.role }

// Equal reports the same kernel array identity and matching parallactic
// angle, support and sampling.
func (s *Store) Equal(o *Store) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.kernel == o.kernel &&
		s.pa == o.pa &&
		s.sampling == o.sampling &&
		s.xSupport.Equal(o.xSupport) &&
		s.ySupport.Equal(o.ySupport)
}

// SameContent reports bit-identical kernels and matching metadata, without
// requiring the same kernel identity.
func (s *Store) SameContent(o *Store) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.pa != o.pa || s.sampling != o.sampling || s.firstPlane != o.firstPlane ||
		s.frequency != o.frequency || s.mosaic != o.mosaic || s.role != o.role ||
		s.coords != o.coords {
		return false
	}
	if !s.xSupport.Equal(o.xSupport) || !s.ySupport.Equal(o.ySupport) {
		return false
	}
	for i := range s.wValues {
		if s.wValues[i] != o.wValues[i] {
			return false
		}
	}
	return s.kernel.Equal(o.kernel)
}

// Slice returns a single-plane Store for absolute w-plane w. The kernel
// storage is shared.
func (s *Store) Slice(w int) (*Store, error) {
	rel := w - s.firstPlane
	planes, err := s.kernel.Planes(rel, rel+1)
	if err != nil {
		return nil, err
	}
	xs, err := s.xSupport.Rows(rel, rel+1)
	if err != nil {
		return nil, err
	}
	ys, err := s.ySupport.Rows(rel, rel+1)
	if err != nil {
		return nil, err
	}
	return &Store{
		kernel:     planes,
		coords:     s.coords,
		xSupport:   xs,
		ySupport:   ys,
		sampling:   s.sampling,
		pa:         s.pa,
		firstPlane: w,
		wValues:    []float64{s.wValues[rel]},
		frequency:  s.frequency,
		mosaic:     s.mosaic,
		role:       s.role,
	}, nil
}

// Stack assembles consecutive single- or multi-plane stores into one store
// whose planes start at planes[0].FirstPlane(). All parts must agree on
// Mueller count, kernel size, sampling and role, and must be contiguous.
// A single part is returned as is.
func Stack(planes []*Store) (*Store, error) {
	if len(planes) == 0 {
		return nil, fmt.Errorf("%w: empty stack", ErrInvalidShape)
	}
	if len(planes) == 1 {
		return planes[0], nil
	}

	first := planes[0]
	fs := first.kernel.Shape()
	nW := 0
	next := first.firstPlane
	for i, p := range planes {
		ps := p.kernel.Shape()
		if ps[1] != fs[1] || ps[2] != fs[2] || ps[3] != fs[3] ||
			p.sampling != first.sampling || p.role != first.role {
			return nil, fmt.Errorf("%w: stack part %d has shape %v, want %v", ErrInvalidShape, i, ps, fs)
		}
		if p.firstPlane != next {
			return nil, fmt.Errorf("%w: stack part %d starts at plane %d, want %d", ErrInvalidShape, i, p.firstPlane, next)
		}
		next += ps[0]
		nW += ps[0]
	}

	shape := Shape{nW, fs[1], fs[2], fs[3]}
	data := make([]complex64, 0, shape.Len())
	xs, _ := NewSupportMatrix(nW, fs[1])
	ys, _ := NewSupportMatrix(nW, fs[1])
	wValues := make([]float64, 0, nW)
	row := 0
	for _, p := range planes {
		data = append(data, p.kernel.data...)
		copy(xs.data[row*fs[1]:], p.xSupport.data)
		copy(ys.data[row*fs[1]:], p.ySupport.data)
		wValues = append(wValues, p.wValues...)
		row += p.kernel.shape[0]
	}
	kernel, err := NewArrayFrom(shape, data)
	if err != nil {
		return nil, err
	}

	return &Store{
		kernel:     kernel,
		coords:     first.coords,
		xSupport:   xs,
		ySupport:   ys,
		sampling:   first.sampling,
		pa:         first.pa,
		firstPlane: first.firstPlane,
		wValues:    wValues,
		frequency:  first.frequency,
		mosaic:     first.mosaic,
		role:       first.role,
	}, nil
}
