package ftmachine

import (
	"fmt"

	"github.com/jonwraymond/cfgrid/coords"
)

// Image is a complex cube of NX by NY pixels per polarization and channel.
// Data is x fastest, then y, polarization and channel.
type Image struct {
	NX, NY, NPol, NChan int
	Coords              coords.Direction
	// Frequency is the reference frequency in Hz.
	Frequency float64
	Data      []complex64
}

// NewImage allocates a zero image.
func NewImage(nx, ny, nPol, nChan int, c coords.Direction, freq float64) (*Image, error) {
	img := &Image{NX: nx, NY: ny, NPol: nPol, NChan: nChan, Coords: c, Frequency: freq}
	if nx <= 0 || ny <= 0 || nPol <= 0 || nChan <= 0 {
		return nil, fmt.Errorf("%w: shape %dx%dx%dx%d", ErrInvalidImage, nx, ny, nPol, nChan)
	}
	img.Data = make([]complex64, nx*ny*nPol*nChan)
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Validate checks the shape, the coordinate and the frequency.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if img.NX <= 0 || img.NY <= 0 || img.NPol <= 0 || img.NChan <= 0 {
		return fmt.Errorf("%w: shape %dx%dx%dx%d", ErrInvalidImage, img.NX, img.NY, img.NPol, img.NChan)
	}
	if len(img.Data) != img.NX*img.NY*img.NPol*img.NChan {
		return fmt.Errorf("%w: %d pixels for shape %dx%dx%dx%d", ErrInvalidImage,
			len(img.Data), img.NX, img.NY, img.NPol, img.NChan)
	}
	if err := img.Coords.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if img.Frequency <= 0 {
		return fmt.Errorf("%w: frequency %v", ErrInvalidImage, img.Frequency)
	}
	return nil
}

func (img *Image) index(x, y, pol, ch int) int {
	return ((ch*img.NPol+pol)*img.NY+y)*img.NX + x
}

// At returns a pixel. It panics outside the image.
func (img *Image) At(x, y, pol, ch int) complex64 {
	return img.Data[img.index(x, y, pol, ch)]
}

// Set stores a pixel. It panics outside the image.
func (img *Image) Set(x, y, pol, ch int, v complex64) {
	img.Data[img.index(x, y, pol, ch)] = v
}
