package cfstore

import "fmt"

// SupportMatrix holds integer support radii indexed by w-plane (rows) and
// Mueller element (columns).
type SupportMatrix struct {
	rows, cols int
	data       []int
}

// NewSupportMatrix allocates a zeroed nW-by-nPol matrix.
func NewSupportMatrix(nW, nPol int) (*SupportMatrix, error) {
	if nW <= 0 || nPol <= 0 {
		return nil, fmt.Errorf("%w: support %dx%d", ErrInvalidShape, nW, nPol)
	}
	return &SupportMatrix{rows: nW, cols: nPol, data: make([]int, nW*nPol)}, nil
}

// UniformSupport returns an nW-by-nPol matrix with every entry set to r.
func UniformSupport(nW, nPol, r int) (*SupportMatrix, error) {
	m, err := NewSupportMatrix(nW, nPol)
	if err != nil {
		return nil, err
	}
	for i := range m.data {
		m.data[i] = r
	}
	return m, nil
}

// Dims returns (w-planes, Mueller elements).
func (m *SupportMatrix) Dims() (int, int) { return m.rows, m.cols }

// At returns the radius for (w, pol).
func (m *SupportMatrix) At(w, pol int) (int, error) {
	if w < 0 || w >= m.rows || pol < 0 || pol >= m.cols {
		return 0, fmt.Errorf("%w: support (%d,%d) in %dx%d", ErrOutOfRange, w, pol, m.rows, m.cols)
	}
	return m.data[w*m.cols+pol], nil
}

// Set stores the radius for (w, pol).
func (m *SupportMatrix) Set(w, pol, r int) error {
	if w < 0 || w >= m.rows || pol < 0 || pol >= m.cols {
		return fmt.Errorf("%w: support (%d,%d) in %dx%d", ErrOutOfRange, w, pol, m.rows, m.cols)
	}
	m.data[w*m.cols+pol] = r
	return nil
}

// Row returns a copy of the radii of one w-plane.
func (m *SupportMatrix) Row(w int) ([]int, error) {
	if w < 0 || w >= m.rows {
		return nil, fmt.Errorf("%w: support row %d of %d", ErrOutOfRange, w, m.rows)
	}
	out := make([]int, m.cols)
	copy(out, m.data[w*m.cols:(w+1)*m.cols])
	return out, nil
}

// Max returns the largest radius.
func (m *SupportMatrix) Max() int {
	best := 0
	for _, r := range m.data {
		if r > best {
			best = r
		}
	}
	return best
}

// Rows returns a new matrix holding rows [from, to).
func (m *SupportMatrix) Rows(from, to int) (*SupportMatrix, error) {
	if from < 0 || to > m.rows || from >= to {
		return nil, fmt.Errorf("%w: support rows [%d,%d) of %d", ErrOutOfRange, from, to, m.rows)
	}
	out := &SupportMatrix{rows: to - from, cols: m.cols, data: make([]int, (to-from)*m.cols)}
	copy(out.data, m.data[from*m.cols:to*m.cols])
	return out, nil
}

// Clone returns a deep copy.
func (m *SupportMatrix) Clone() *SupportMatrix {
	out := &SupportMatrix{rows: m.rows, cols: m.cols, data: make([]int, len(m.data))}
	copy(out.data, m.data)
	return out
}

// Equal reports whether both matrices have the same dimensions and values.
func (m *SupportMatrix) Equal(o *SupportMatrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := range m.data {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}
