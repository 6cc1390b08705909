package convfunc

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/jonwraymond/cfgrid/cfstore"
	"github.com/jonwraymond/cfgrid/coords"
)

// SupportThreshold is the relative amplitude that ends a kernel's support.
const SupportThreshold = 1e-3

// Params configures a builder.
type Params struct {
	// Image is the coordinate of the padded image being gridded.
	Image coords.Direction
	// NX and NY are the padded image size.
	NX, NY int
	// ConvSize is the screen size; 0 picks min(NX, NY), capped at 1024
	// (512 above 256 w-planes).
	ConvSize int
	// Sampling is the oversampling factor; 0 picks 4.
	Sampling int
	// NW is the number of w-planes.
	NW int
	// WScale maps w to planes: plane = round(sqrt(|w|*WScale)).
	WScale float64
	// NPol is the number of Mueller elements; 0 picks 1.
	NPol int
	// PA is the parallactic angle (radians) recorded in the store and used
	// to rotate aperture blockage.
	PA        float64
	Frequency float64
	Mosaic    cfstore.Offset
	Aperture  Aperture
}

// WScaleFor returns the w scaling that puts maxW on the last of nW planes.
func WScaleFor(nW int, maxW float64) float64 {
	if nW <= 1 || maxW <= 0 {
		return 0
	}
	return float64((nW-1)*(nW-1)) / maxW
}

func (p Params) normalized() (Params, error) {
	if p.NX <= 0 || p.NY <= 0 {
		return p, fmt.Errorf("%w: image %dx%d", ErrInvalidParams, p.NX, p.NY)
	}
	if err := p.Image.Validate(); err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.NW < 1 {
		p.NW = 1
	}
	if p.NPol < 1 {
		p.NPol = 1
	}
	if p.Sampling <= 0 {
		p.Sampling = 4
	}
	if p.ConvSize <= 0 {
		p.ConvSize = min(p.NX, p.NY)
		if p.NW > 256 {
			p.ConvSize = min(p.ConvSize, 512)
		} else {
			p.ConvSize = min(p.ConvSize, 1024)
		}
	}
	if p.ConvSize%2 != 0 {
		p.ConvSize--
	}
	if p.ConvSize < 4*p.Sampling {
		return p, fmt.Errorf("%w: screen of %d pixels at sampling %d", ErrInvalidParams, p.ConvSize, p.Sampling)
	}
	return p, nil
}

// KernelIncrement returns the pixel increment of the kernels built for p.
func KernelIncrement(p Params) ([2]float64, error) {
	p, err := p.normalized()
	if err != nil {
		return [2]float64{}, err
	}
	return p.Image.KernelCoords(min(p.NX, p.NY), p.ConvSize, p.Sampling).Increment, nil
}

// screenFunc returns the image-plane screen of plane iw at pixel offset
// (ix, iy) from the centre, direction cosines (l, m).
type screenFunc func(iw, ix, iy int, l, m float64) complex128

// BuildSpheroidal builds the single-plane spheroidal kernel of a plain
// gridder.
func BuildSpheroidal(ctx context.Context, p Params) (*cfstore.Store, error) {
	p.NW = 1
	p, err := p.normalized()
	if err != nil {
		return nil, err
	}
	return build(ctx, p, cfstore.RoleCF, func(int, int, int, float64, float64) complex128 { return 1 })
}

// BuildWProjection builds p.NW w-projection kernels. Plane iw holds the
// w-term of w = iw²/WScale.
func BuildWProjection(ctx context.Context, p Params) (*cfstore.Store, error) {
	p, err := p.normalized()
	if err != nil {
		return nil, err
	}
	if p.NW > 1 && p.WScale <= 0 {
		return nil, fmt.Errorf("%w: w scale %v for %d planes", ErrInvalidParams, p.WScale, p.NW)
	}
	return build(ctx, p, cfstore.RoleCF, func(iw, _, _ int, l, m float64) complex128 {
		if p.NW == 1 {
			return 1
		}
		rsq := l*l + m*m
		if rsq >= 1 {
			return 0
		}
		phase := 2 * math.Pi * float64(iw*iw) / p.WScale * (math.Sqrt(1-rsq) - 1)
		return cmplx.Rect(1, phase)
	})
}

// build fills, transforms and normalises every plane of a kernel stack.
func build(ctx context.Context, p Params, role cfstore.Role, screen screenFunc) (*cfstore.Store, error) {
	n, s, nW := p.ConvSize, p.Sampling, p.NW
	inner := n / s
	c := n / 2
	factor := float64(s) * float64(min(p.NX, p.NY)) / float64(n)
	dl := p.Image.Increment[0] * factor
	dm := p.Image.Increment[1] * factor

	taper := make([]float64, inner)
	for i := range taper {
		taper[i] = Spheroidal(float64(i-inner/2) / float64(inner/2))
	}

	fft := NewPlane(n, n)
	planes := make([][]complex128, nW)
	peak := 0.0
	for iw := range nW {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf := make([]complex128, n*n)
		for iy := -inner / 2; iy < inner/2; iy++ {
			ty := taper[iy+inner/2]
			m := dm * float64(iy)
			for ix := -inner / 2; ix < inner/2; ix++ {
				v := screen(iw, ix, iy, dl*float64(ix), m)
				if v == 0 {
					continue
				}
				buf[(iy+c)*n+ix+c] = v * complex(ty*taper[ix+inner/2], 0)
			}
		}
		fft.Forward(buf)
		for _, v := range buf {
			peak = math.Max(peak, cmplx.Abs(v))
		}
		planes[iw] = buf
	}
	if peak == 0 {
		return nil, fmt.Errorf("%w: zero kernel", ErrMisbehaved)
	}

	supports := make([]int, nW)
	for iw, plane := range planes {
		trial := edge(plane, n, peak)
		switch {
		case trial > 0:
			sup := int(0.5+float64(trial)/float64(s)) + 1
			if sup*s*2 >= n {
				sup = n/2/s - 1
			}
			supports[iw] = sup
		case iw == 0:
			return nil, fmt.Errorf("%w: support of plane 0 is zero", ErrMisbehaved)
		default:
			supports[iw] = 1
		}
	}

	// Plane 0 sums to one when stepping in units of the sampling.
	sum := 0.0
	s0 := supports[0]
	for iy := -s0; iy <= s0; iy++ {
		for ix := -s0; ix <= s0; ix++ {
			sum += real(planes[0][(c+iy*s)*n+c+ix*s]) / peak
		}
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: integral %g is not positive", ErrMisbehaved, sum)
	}
	scale := complex(1/(peak*sum), 0)

	maxSup := 0
	for _, sup := range supports {
		maxSup = max(maxSup, sup)
	}
	size := n
	if trimmed := 2 * (maxSup + 2) * s; trimmed < n {
		size = trimmed
	}
	off := c - size/2

	kernel, err := cfstore.NewArray(cfstore.Shape{nW, p.NPol, size, size})
	if err != nil {
		return nil, err
	}
	data := kernel.Data()
	xs, err := cfstore.NewSupportMatrix(nW, p.NPol)
	if err != nil {
		return nil, err
	}
	ys, _ := cfstore.NewSupportMatrix(nW, p.NPol)
	wValues := make([]float64, nW)
	for iw, plane := range planes {
		if p.WScale > 0 {
			wValues[iw] = float64(iw*iw) / p.WScale
		}
		for pol := range p.NPol {
			base := (iw*p.NPol + pol) * size * size
			for y := range size {
				for x := range size {
					data[base+y*size+x] = complex64(plane[(y+off)*n+x+off] * scale)
				}
			}
			_ = xs.Set(iw, pol, supports[iw])
			_ = ys.Set(iw, pol, supports[iw])
		}
	}

	return cfstore.New(cfstore.Params{
		Kernel:    kernel,
		Coords:    p.Image.KernelCoords(min(p.NX, p.NY), n, s).Recentered(size),
		XSupport:  xs,
		YSupport:  ys,
		Sampling:  s,
		PA:        p.PA,
		WValues:   wValues,
		Frequency: p.Frequency,
		Mosaic:    p.Mosaic,
		Role:      role,
	})
}

// edge returns the outermost offset from the centre, along either axis,
// whose amplitude exceeds SupportThreshold relative to peak, or 0.
func edge(plane []complex128, n int, peak float64) int {
	c := n / 2
	for trial := n/2 - 2; trial > 0; trial-- {
		if cmplx.Abs(plane[c*n+c+trial])/peak > SupportThreshold ||
			cmplx.Abs(plane[(c+trial)*n+c])/peak > SupportThreshold {
			return trial
		}
	}
	return 0
}
