package convfunc

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/jonwraymond/cfgrid/cfstore"
)

const speedOfLight = 299792458.0

// Aperture describes a dish illumination: a uniform disc with a central
// blockage and a feed-leg cross that rotates with the parallactic angle.
// Lengths are metres.
type Aperture struct {
	Diameter float64 `yaml:"diameter"`
	Blockage float64 `yaml:"blockage"`
	LegWidth float64 `yaml:"leg_width"`
}

// VLA returns a 25 m dish with a 2 m subreflector blockage and 0.2 m legs.
func VLA() Aperture {
	return Aperture{Diameter: 25, Blockage: 2, LegWidth: 0.2}
}

// BuildMosaic builds the single-plane primary-beam kernel of a mosaic
// pointing and its weight kernel. The kernel is the transform of the power
// pattern, rotated by p.PA and shifted by p.Mosaic image pixels; the weight
// kernel is the transform of the squared power pattern.
func BuildMosaic(ctx context.Context, p Params) (cf, weight *cfstore.Store, err error) {
	p.NW = 1
	p, err = p.normalized()
	if err != nil {
		return nil, nil, err
	}
	if p.Frequency <= 0 {
		return nil, nil, fmt.Errorf("%w: frequency %v", ErrInvalidParams, p.Frequency)
	}
	if p.Aperture.Diameter <= 0 || p.Aperture.Blockage < 0 || p.Aperture.Blockage >= p.Aperture.Diameter {
		return nil, nil, fmt.Errorf("%w: aperture %+v", ErrInvalidParams, p.Aperture)
	}

	pb, err := powerPattern(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	n := p.ConvSize
	at := func(ix, iy int) float64 { return pb[(iy+n/2)*n+ix+n/2] }

	cf, err = build(ctx, p, cfstore.RoleCF, func(_, ix, iy int, _, _ float64) complex128 {
		return complex(at(ix, iy), 0)
	})
	if err != nil {
		return nil, nil, err
	}
	weight, err = build(ctx, p, cfstore.RoleWeight, func(_, ix, iy int, _, _ float64) complex128 {
		v := at(ix, iy)
		return complex(v*v, 0)
	})
	if err != nil {
		return nil, nil, err
	}
	return cf, weight, nil
}

// powerPattern returns the peak-normalised power pattern on the screen grid
// of p (ConvSize², centred).
func powerPattern(ctx context.Context, p Params) ([]float64, error) {
	n := p.ConvSize
	c := n / 2
	factor := float64(p.Sampling) * float64(min(p.NX, p.NY)) / float64(n)
	dl := p.Image.Increment[0] * factor
	dm := p.Image.Increment[1] * factor
	du := 1 / (float64(n) * math.Abs(dl))
	dv := 1 / (float64(n) * math.Abs(dm))

	lambda := speedOfLight / p.Frequency
	outer := p.Aperture.Diameter / 2 / lambda
	inner := p.Aperture.Blockage / 2 / lambda
	leg := p.Aperture.LegWidth / 2 / lambda
	sinPA, cosPA := math.Sincos(p.PA)
	offL := float64(p.Mosaic.X) * p.Image.Increment[0]
	offM := float64(p.Mosaic.Y) * p.Image.Increment[1]

	field := make([]complex128, n*n)
	for iv := -c; iv < c; iv++ {
		v := dv * float64(iv)
		for iu := -c; iu < c; iu++ {
			u := du * float64(iu)
			r := math.Hypot(u, v)
			if r > outer || r < inner {
				continue
			}
			ur := u*cosPA + v*sinPA
			vr := -u*sinPA + v*cosPA
			if leg > 0 && (math.Abs(ur) < leg || math.Abs(vr) < leg) {
				continue
			}
			field[(iv+c)*n+iu+c] = cmplx.Rect(1, -2*math.Pi*(u*offL+v*offM))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	NewPlane(n, n).Inverse(field)

	pb := make([]float64, n*n)
	peak := 0.0
	for i, v := range field {
		a := real(v)*real(v) + imag(v)*imag(v)
		pb[i] = a
		peak = math.Max(peak, a)
	}
	if peak == 0 {
		return nil, fmt.Errorf("%w: aperture not resolved on a %d-pixel screen", ErrMisbehaved, n)
	}
	for i := range pb {
		pb[i] /= peak
	}
	return pb, nil
}
