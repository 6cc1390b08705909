package ftmachine

import (
	"context"
	"fmt"

	"github.com/jonwraymond/cfgrid/cfstore"
	"github.com/jonwraymond/cfgrid/convfunc"
	"github.com/jonwraymond/cfgrid/coords"
)

// Kind names a gridding variant.
type Kind int

const (
	// KindGrid grids with a single spheroidal kernel.
	KindGrid Kind = iota
	// KindWProject grids with one w-term kernel per w-plane.
	KindWProject
	// KindMosaic grids with the primary-beam kernel of a pointing and also
	// grids the weights with the squared-beam kernel.
	KindMosaic
)

func (k Kind) String() string {
	switch k {
	case KindGrid:
		return "grid"
	case KindWProject:
		return "wproject"
	case KindMosaic:
		return "mosaic"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps "grid", "wproject" or "mosaic" to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindGrid, KindWProject, KindMosaic} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: gridder %q", ErrInvalidOption, s)
}

// Geometry is what a variant needs to build kernels for the padded grid.
type Geometry struct {
	// Coords is the coordinate of the padded image.
	Coords    coords.Direction
	NX, NY    int
	ConvSize  int
	Sampling  int
	WScale    float64
	Frequency float64
	Mosaic    cfstore.Offset
}

func (g Geometry) params(pa float64, nW int) convfunc.Params {
	return convfunc.Params{
		Image:     g.Coords,
		NX:        g.NX,
		NY:        g.NY,
		ConvSize:  g.ConvSize,
		Sampling:  g.Sampling,
		NW:        nW,
		WScale:    g.WScale,
		PA:        pa,
		Frequency: g.Frequency,
		Mosaic:    g.Mosaic,
	}
}

// Variant builds the kernels of one gridding flavour. The set is closed:
// Grid, WProject and Mosaic.
type Variant interface {
	Kind() Kind
	// NW is the number of w-planes the variant grids with.
	NW() int
	// BuildConvolutionFunction builds the kernel stack for parallactic angle
	// pa. weight is nil unless Kind is KindMosaic.
	BuildConvolutionFunction(ctx context.Context, g Geometry, pa float64) (cf, weight *cfstore.Store, err error)
}

type gridVariant struct{}

// Grid returns the plain spheroidal gridder.
func Grid() Variant { return gridVariant{} }

func (gridVariant) Kind() Kind { return KindGrid }
func (gridVariant) NW() int    { return 1 }

func (gridVariant) BuildConvolutionFunction(ctx context.Context, g Geometry, pa float64) (*cfstore.Store, *cfstore.Store, error) {
	cf, err := convfunc.BuildSpheroidal(ctx, g.params(pa, 1))
	return cf, nil, err
}

type wprojectVariant struct{ nW int }

// WProject returns a w-projection gridder with nW w-planes.
func WProject(nW int) Variant { return wprojectVariant{nW: max(nW, 1)} }

func (wprojectVariant) Kind() Kind { return KindWProject }
func (v wprojectVariant) NW() int  { return v.nW }

func (v wprojectVariant) BuildConvolutionFunction(ctx context.Context, g Geometry, pa float64) (*cfstore.Store, *cfstore.Store, error) {
	cf, err := convfunc.BuildWProjection(ctx, g.params(pa, v.nW))
	return cf, nil, err
}

type mosaicVariant struct{ aperture convfunc.Aperture }

// Mosaic returns a mosaic gridder for dishes with aperture a.
func Mosaic(a convfunc.Aperture) Variant { return mosaicVariant{aperture: a} }

func (mosaicVariant) Kind() Kind { return KindMosaic }
func (mosaicVariant) NW() int    { return 1 }

func (v mosaicVariant) BuildConvolutionFunction(ctx context.Context, g Geometry, pa float64) (*cfstore.Store, *cfstore.Store, error) {
	p := g.params(pa, 1)
	p.Aperture = v.aperture
	return convfunc.BuildMosaic(ctx, p)
}
