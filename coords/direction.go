package coords

import (
	"fmt"
	"math"
)

// Direction is a linear two-axis coordinate mapping pixels to world values.
// For sky images the world values are direction cosines in radians; for a
// Fourier-conjugate coordinate they are wavelengths.
type Direction struct {
	RefValue  [2]float64 `yaml:"ref_value"`
	RefPixel  [2]float64 `yaml:"ref_pixel"`
	Increment [2]float64 `yaml:"increment"`
}

// NewDirection builds a coordinate centred on an nx-by-ny image with the
// given cell size (radians per pixel) and reference direction.
func NewDirection(nx, ny int, cell [2]float64, ref [2]float64) (Direction, error) {
	if nx <= 0 || ny <= 0 {
		return Direction{}, fmt.Errorf("%w: %dx%d", ErrInvalidShape, nx, ny)
	}
	d := Direction{
		RefValue:  ref,
		RefPixel:  [2]float64{float64(nx / 2), float64(ny / 2)},
		Increment: cell,
	}
	if err := d.Validate(); err != nil {
		return Direction{}, err
	}
	return d, nil
}

// Validate checks that both increments are finite and non-zero.
func (d Direction) Validate() error {
	for i, inc := range d.Increment {
		if inc == 0 || math.IsNaN(inc) || math.IsInf(inc, 0) {
			return fmt.Errorf("%w: axis %d has increment %v", ErrZeroIncrement, i, inc)
		}
	}
	return nil
}

// ToWorld converts a pixel position to world coordinates.
func (d Direction) ToWorld(px, py float64) (float64, float64) {
	return d.RefValue[0] + (px-d.RefPixel[0])*d.Increment[0],
		d.RefValue[1] + (py-d.RefPixel[1])*d.Increment[1]
}

// ToPixel converts world coordinates to a pixel position.
func (d Direction) ToPixel(wx, wy float64) (float64, float64) {
	return d.RefPixel[0] + (wx-d.RefValue[0])/d.Increment[0],
		d.RefPixel[1] + (wy-d.RefValue[1])/d.Increment[1]
}

// Fourier returns the conjugate coordinate of an nx-by-ny plane: increments
// become 1/(n*inc), the reference pixel moves to the plane centre and the
// reference value is zero spacing.
func (d Direction) Fourier(nx, ny int) Direction {
	return Direction{
		RefPixel: [2]float64{float64(nx / 2), float64(ny / 2)},
		Increment: [2]float64{
			1 / (float64(nx) * d.Increment[0]),
			1 / (float64(ny) * d.Increment[1]),
		},
	}
}

// Scaled multiplies both increments by factor, keeping the reference.
func (d Direction) Scaled(factor float64) Direction {
	d.Increment[0] *= factor
	d.Increment[1] *= factor
	return d
}

// Recentered moves the reference pixel to the centre of an n-by-n plane.
func (d Direction) Recentered(n int) Direction {
	d.RefPixel = [2]float64{float64(n / 2), float64(n / 2)}
	return d
}

// KernelCoords returns the coordinate of an oversampled convolution function
// of size convSize built for an image of nx pixels on this coordinate: the
// increment grows by sampling*nx/convSize and the reference pixel sits at
// convSize/2.
func (d Direction) KernelCoords(nx, convSize, sampling int) Direction {
	factor := float64(sampling) * float64(nx) / float64(convSize)
	return d.Scaled(factor).Recentered(convSize)
}

// UVScale returns the factors converting (u, v) in wavelengths to grid
// pixels for an nx-by-ny grid on this coordinate.
func (d Direction) UVScale(nx, ny int) [2]float64 {
	return [2]float64{
		float64(nx) * d.Increment[0],
		float64(ny) * d.Increment[1],
	}
}

// UVOffset returns the grid pixel of zero spacing for an nx-by-ny grid.
func UVOffset(nx, ny int) [2]float64 {
	return [2]float64{float64(nx / 2), float64(ny / 2)}
}

// MaxW estimates the largest w (wavelengths) that matters for this cell size.
func (d Direction) MaxW() float64 {
	return 0.25 / math.Abs(d.Increment[0])
}
