package convfunc

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Line is a centred 1-D complex FFT of fixed length: sample n/2 is the
// origin on both sides of the transform. It is not safe for concurrent use.
type Line struct {
	n    int
	fft  *fourier.CmplxFFT
	work []complex128
	out  []complex128
}

// NewLine returns a centred transform of length n.
func NewLine(n int) *Line {
	return &Line{
		n:    n,
		fft:  fourier.NewCmplxFFT(n),
		work: make([]complex128, n),
		out:  make([]complex128, n),
	}
}

// Len returns the transform length.
func (l *Line) Len() int { return l.n }

// Forward transforms data in place with the exp(-2πi) kernel.
func (l *Line) Forward(data []complex128) {
	l.shift(data)
	l.fft.Coefficients(l.out, l.work)
	l.unshift(data)
}

// Inverse transforms data in place with the exp(+2πi) kernel, unnormalised.
func (l *Line) Inverse(data []complex128) {
	l.shift(data)
	l.fft.Sequence(l.out, l.work)
	l.unshift(data)
}

// shift moves the centre sample n/2 to index 0 in work.
func (l *Line) shift(data []complex128) {
	c := l.n / 2
	for i, v := range data[:l.n] {
		j := i - c
		if j < 0 {
			j += l.n
		}
		l.work[j] = v
	}
}

// unshift moves index 0 of out back to the centre sample of data.
func (l *Line) unshift(data []complex128) {
	c := l.n / 2
	for j, v := range l.out {
		i := j + c
		if i >= l.n {
			i -= l.n
		}
		data[i] = v
	}
}

// Plane is a centred 2-D FFT over row-major nx-by-ny data.
type Plane struct {
	nx, ny int
	rows   *Line
	cols   *Line
	col    []complex128
}

// NewPlane returns a centred 2-D transform.
func NewPlane(nx, ny int) *Plane {
	return &Plane{
		nx:   nx,
		ny:   ny,
		rows: NewLine(nx),
		cols: NewLine(ny),
		col:  make([]complex128, ny),
	}
}

// Forward transforms data (len nx*ny, x fastest) in place.
func (p *Plane) Forward(data []complex128) {
	p.apply(data, (*Line).Forward)
}

// Inverse transforms data in place, unnormalised.
func (p *Plane) Inverse(data []complex128) {
	p.apply(data, (*Line).Inverse)
}

func (p *Plane) apply(data []complex128, fn func(*Line, []complex128)) {
	for y := range p.ny {
		fn(p.rows, data[y*p.nx:(y+1)*p.nx])
	}
	for x := range p.nx {
		for y := range p.ny {
			p.col[y] = data[y*p.nx+x]
		}
		fn(p.cols, p.col)
		for y := range p.ny {
			data[y*p.nx+x] = p.col[y]
		}
	}
}
