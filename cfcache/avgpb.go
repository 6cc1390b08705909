package cfcache

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/jonwraymond/cfgrid/coords"
)

// AvgPB is an average primary-beam image, stored as 32-bit float FITS.
type AvgPB struct {
	NX, NY int
	Coords coords.Direction
	// Pixels are x-fastest: Pixels[y*NX+x].
	Pixels []float32
}

// NewAvgPB allocates a zero image.
func NewAvgPB(nx, ny int, c coords.Direction) (*AvgPB, error) {
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("%w: avg PB shape %dx%d", ErrInvalidQuery, nx, ny)
	}
	return &AvgPB{NX: nx, NY: ny, Coords: c, Pixels: make([]float32, nx*ny)}, nil
}

// At returns pixel (x, y), or 0 outside the image.
func (p *AvgPB) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= p.NX || y >= p.NY {
		return 0
	}
	return p.Pixels[y*p.NX+x]
}

// Set writes pixel (x, y); writes outside the image are ignored.
func (p *AvgPB) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= p.NX || y >= p.NY {
		return
	}
	p.Pixels[y*p.NX+x] = v
}

func avgPBName(qualifier string) string {
	return "avgPB-" + qualifier + ".fits"
}

// EncodeAvgPB writes pb as a single-HDU FITS image (BITPIX -32) with a
// linear celestial coordinate in CRVAL/CRPIX/CDELT cards.
func EncodeAvgPB(w io.Writer, pb *AvgPB) error {
	if pb == nil || len(pb.Pixels) != pb.NX*pb.NY || pb.NX <= 0 || pb.NY <= 0 {
		return fmt.Errorf("%w: malformed avg PB", ErrInvalidQuery)
	}
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	im := fitsio.NewImage(-32, []int{pb.NX, pb.NY})
	defer im.Close()

	c := pb.Coords
	err = im.Header().Append(
		fitsio.Card{Name: "CTYPE1", Value: "RA---SIN"},
		fitsio.Card{Name: "CTYPE2", Value: "DEC--SIN"},
		fitsio.Card{Name: "CRVAL1", Value: c.RefValue[0], Comment: "rad"},
		fitsio.Card{Name: "CRVAL2", Value: c.RefValue[1], Comment: "rad"},
		fitsio.Card{Name: "CRPIX1", Value: c.RefPixel[0] + 1},
		fitsio.Card{Name: "CRPIX2", Value: c.RefPixel[1] + 1},
		fitsio.Card{Name: "CDELT1", Value: c.Increment[0], Comment: "rad"},
		fitsio.Card{Name: "CDELT2", Value: c.Increment[1], Comment: "rad"},
	)
	if err != nil {
		return err
	}
	if err := im.Write(pb.Pixels); err != nil {
		return err
	}
	return f.Write(im)
}

// DecodeAvgPB reads an image written by EncodeAvgPB.
func DecodeAvgPB(r io.Reader) (*AvgPB, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("primary HDU is not an image")
	}
	hdr := img.Header()
	if hdr.Bitpix() != -32 {
		return nil, fmt.Errorf("BITPIX %d, want -32", hdr.Bitpix())
	}
	axes := hdr.Axes()
	if len(axes) != 2 || axes[0] <= 0 || axes[1] <= 0 {
		return nil, fmt.Errorf("axes %v, want two positive axes", axes)
	}

	pb := &AvgPB{NX: axes[0], NY: axes[1], Pixels: make([]float32, axes[0]*axes[1])}
	if err := img.Read(&pb.Pixels); err != nil {
		return nil, err
	}
	if len(pb.Pixels) != pb.NX*pb.NY {
		return nil, fmt.Errorf("read %d pixels, want %d", len(pb.Pixels), pb.NX*pb.NY)
	}

	for i, axis := range []string{"1", "2"} {
		pb.Coords.RefValue[i] = cardFloat(hdr, "CRVAL"+axis)
		pb.Coords.RefPixel[i] = cardFloat(hdr, "CRPIX"+axis) - 1
		pb.Coords.Increment[i] = cardFloat(hdr, "CDELT"+axis)
	}
	return pb, nil
}

func cardFloat(hdr *fitsio.Header, name string) float64 {
	card := hdr.Get(name)
	if card == nil {
		return 0
	}
	switch v := card.Value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
