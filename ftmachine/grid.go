package ftmachine

import (
	"math"

	"github.com/jonwraymond/cfgrid/cfstore"
	"github.com/jonwraymond/cfgrid/lattice"
	"github.com/jonwraymond/cfgrid/vis"
)

const speedOfLight = 299792458.0

// footprint places one sample: the nearest grid pixel and the sub-pixel
// offset, in oversampled kernel pixels, of the true position from it.
type footprint struct {
	x, y       int
	offX, offY int
}

// kernel is one (w-plane, Mueller) plane of a stack.
type kernel struct {
	data     []complex64
	size     int
	sampling int
	supX     int
	supY     int
	conj     bool
}

func kernelPlane(s *cfstore.Store, iw, pol int, conj bool) (kernel, error) {
	pol = min(pol, s.NPol()-1)
	data, err := s.Kernel().Plane(iw, pol)
	if err != nil {
		return kernel{}, err
	}
	supX, supY, err := s.Support(iw, pol)
	if err != nil {
		return kernel{}, err
	}
	return kernel{
		data:     data,
		size:     s.Kernel().Shape().NX(),
		sampling: s.Sampling(),
		supX:     supX,
		supY:     supY,
		conj:     conj,
	}, nil
}

// kernelSet hands out the views of one stack, each built on first use.
type kernelSet struct {
	s     *cfstore.Store
	views []kernel
	built []bool
}

func newKernelSet(s *cfstore.Store) *kernelSet {
	n := 2 * s.NW() * s.NPol()
	return &kernelSet{s: s, views: make([]kernel, n), built: make([]bool, n)}
}

// get returns the view of w-plane iw and Mueller element pol, clamping pol
// to the stack.
func (ks *kernelSet) get(iw, pol int, conj bool) (kernel, error) {
	pol = min(pol, ks.s.NPol()-1)
	if iw < 0 || iw >= ks.s.NW() {
		return kernelPlane(ks.s, iw, pol, conj)
	}
	i := 2 * (iw*ks.s.NPol() + pol)
	if conj {
		i++
	}
	if ks.built[i] {
		return ks.views[i], nil
	}
	k, err := kernelPlane(ks.s, iw, pol, conj)
	if err != nil {
		return kernel{}, err
	}
	ks.views[i], ks.built[i] = k, true
	return k, nil
}

// at returns the kernel weight for grid offset (ix, iy) from the footprint
// centre, or false past the kernel edge.
func (k kernel) at(ix, iy int, f footprint) (complex64, bool) {
	c := k.size / 2
	kx := c + ix*k.sampling + f.offX
	ky := c + iy*k.sampling + f.offY
	if kx < 0 || kx >= k.size || ky < 0 || ky >= k.size {
		return 0, false
	}
	v := k.data[ky*k.size+kx]
	if k.conj {
		v = complex(real(v), -imag(v))
	}
	return v, true
}

// place converts (u, v) in wavelengths to a footprint.
func (m *Machine) place(u, v float64, sampling int) footprint {
	px := u*m.uvScale[0] + m.uvOffset[0]
	py := v*m.uvScale[1] + m.uvOffset[1]
	x, y := int(math.Round(px)), int(math.Round(py))
	s := float64(sampling)
	return footprint{
		x:    x,
		y:    y,
		offX: int(math.Round((float64(x) - px) * s)),
		offY: int(math.Round((float64(y) - py) * s)),
	}
}

func (m *Machine) offGrid(f footprint, k kernel) bool {
	return f.x+k.supX < 0 || f.x-k.supX >= m.geom.NX ||
		f.y+k.supY < 0 || f.y-k.supY >= m.geom.NY
}

// plane maps w (wavelengths) to a w-plane: round(sqrt(|w|*WScale)).
func (m *Machine) plane(w float64) int {
	nW := m.cf.NW()
	if nW == 1 || m.geom.WScale <= 0 {
		return 0
	}
	return min(int(math.Round(math.Sqrt(math.Abs(w)*m.geom.WScale))), nW-1)
}

// channel maps a buffer channel to an image channel. A single-channel
// image takes every channel.
func (m *Machine) channel(c int) (int, bool) {
	if m.image.NChan == 1 {
		return 0, true
	}
	return c, c < m.image.NChan
}

// sampleFunc handles one on-grid sample.
type sampleFunc func(r, c, p, ch int, f footprint, k kernel) error

// eachSample walks the samples of buf, calling fn for those that are not
// flagged, not ignored and on the grid. It returns the rows examined and
// the rows whose every candidate sample fell off the grid.
func (m *Machine) eachSample(buf *vis.Buffer, fn sampleFunc) (processed, skipped, placedRows int64, err error) {
	kernels := newKernelSet(m.cf)
	for r, row := range buf.Rows {
		if !m.cfg.useZero && row.ZeroSpacing() {
			m.stats.IgnoredRows++
			continue
		}
		processed++
		candidates, placed := 0, 0
		for c, freq := range buf.Freqs {
			ch, ok := m.channel(c)
			if !ok {
				continue
			}
			scale := freq / speedOfLight
			u, v, w := row.UVW[0]*scale, row.UVW[1]*scale, row.UVW[2]*scale
			f := m.place(u, v, m.cf.Sampling())
			iw := m.plane(w)
			for p := range min(buf.NPol(), m.image.NPol) {
				if buf.Flagged(r, c, p) {
					m.stats.FlaggedSamples++
					continue
				}
				candidates++
				k, err := kernels.get(iw, p, w > 0)
				if err != nil {
					return processed, skipped, placedRows, err
				}
				if m.offGrid(f, k) {
					continue
				}
				placed++
				if err := fn(r, c, p, ch, f, k); err != nil {
					return processed, skipped, placedRows, err
				}
			}
		}
		switch {
		case placed > 0:
			placedRows++
		case candidates > 0:
			skipped++
		}
	}
	m.stats.SkippedRows += skipped
	return processed, skipped, placedRows, nil
}

func (m *Machine) gridBuffer(buf *vis.Buffer, dopsf bool) (int64, int64, error) {
	var weightKernels *kernelSet
	if m.weights != nil {
		weightKernels = newKernelSet(m.weightCF)
	}
	processed, skipped, placed, err := m.eachSample(buf, func(r, c, p, ch int, f footprint, k kernel) error {
		wt := buf.Weights[r][c]
		val := buf.Data[r][c][p]
		if dopsf {
			val = 1
		}
		norm, err := m.spread(m.grid, k, f, p, ch, complex(wt, 0)*val)
		if err != nil {
			return err
		}
		m.sumWeight[p][ch] += float64(wt) * norm
		if m.weights == nil {
			return nil
		}
		wk, err := weightKernels.get(0, p, false)
		if err != nil {
			return err
		}
		_, err = m.spread(m.weights, wk, f, p, ch, complex(wt, 0))
		return err
	})
	m.stats.RowsGridded += placed
	return processed, skipped, err
}

func (m *Machine) degridBuffer(buf *vis.Buffer) (int64, int64, error) {
	processed, skipped, placed, err := m.eachSample(buf, func(r, c, p, ch int, f footprint, k kernel) error {
		v, err := m.sample(k, f, p, ch)
		if err != nil {
			return err
		}
		buf.Model[r][c][p] = v
		return nil
	})
	m.stats.RowsDegridded += placed
	return processed, skipped, err
}

// spread adds val times the kernel to the on-grid part of the footprint and
// returns the sum of the kernel weights used.
func (m *Machine) spread(l *lattice.Lattice, k kernel, f footprint, pol, ch int, val complex64) (float64, error) {
	norm := 0.0
	for iy := -k.supY; iy <= k.supY; iy++ {
		y := f.y + iy
		if y < 0 || y >= m.geom.NY {
			continue
		}
		for ix := -k.supX; ix <= k.supX; ix++ {
			x := f.x + ix
			if x < 0 || x >= m.geom.NX {
				continue
			}
			cwt, ok := k.at(ix, iy, f)
			if !ok {
				continue
			}
			if err := l.Add(x, y, pol, ch, val*cwt); err != nil {
				return 0, err
			}
			norm += float64(real(cwt))
		}
	}
	return norm, nil
}

// sample reads the footprint back through the conjugate kernel, normalised
// by the kernel weights used.
func (m *Machine) sample(k kernel, f footprint, pol, ch int) (complex64, error) {
	var sum complex128
	norm := 0.0
	for iy := -k.supY; iy <= k.supY; iy++ {
		y := f.y + iy
		if y < 0 || y >= m.geom.NY {
			continue
		}
		for ix := -k.supX; ix <= k.supX; ix++ {
			x := f.x + ix
			if x < 0 || x >= m.geom.NX {
				continue
			}
			cwt, ok := k.at(ix, iy, f)
			if !ok {
				continue
			}
			g, err := m.grid.At(x, y, pol, ch)
			if err != nil {
				return 0, err
			}
			sum += complex128(g) * complex(float64(real(cwt)), -float64(imag(cwt)))
			norm += float64(real(cwt))
		}
	}
	if norm == 0 {
		return 0, nil
	}
	return complex64(sum / complex(norm, 0)), nil
}
