package ftmachine

import (
	"context"

	"github.com/jonwraymond/cfgrid/convfunc"
	"github.com/jonwraymond/cfgrid/lattice"
)

// transform applies a centred 2-D FFT to every plane of l, a row or column
// at a time, so only the tiles of one line need be resident.
func transform(ctx context.Context, l *lattice.Lattice, forward bool) error {
	s := l.Shape()
	rows, cols := convfunc.NewLine(s.NX), convfunc.NewLine(s.NY)
	row, col := make([]complex128, s.NX), make([]complex128, s.NY)
	apply := func(f *convfunc.Line, data []complex128) {
		if forward {
			f.Forward(data)
		} else {
			f.Inverse(data)
		}
	}

	for ch := range s.NChan {
		for pol := range s.NPol {
			if err := ctx.Err(); err != nil {
				return err
			}
			for y := range s.NY {
				if err := l.Row(y, pol, ch, row); err != nil {
					return err
				}
				apply(rows, row)
				if err := l.SetRow(y, pol, ch, row); err != nil {
					return err
				}
			}
			for x := range s.NX {
				if err := l.Col(x, pol, ch, col); err != nil {
					return err
				}
				apply(cols, col)
				if err := l.SetCol(x, pol, ch, col); err != nil {
					return err
				}
			}
		}
	}
	return l.Flush()
}

// loadModel writes the grid-corrected, padded model into the lattice and
// transforms it to the uv plane.
func (m *Machine) loadModel(ctx context.Context) error {
	img := m.image
	row := make([]complex128, m.geom.NX)
	for ch := range img.NChan {
		for pol := range img.NPol {
			for y := range img.NY {
				py := y + m.padY
				clear(row)
				for x := range img.NX {
					px := x + m.padX
					corr := m.corrX[px] * m.corrY[py]
					if corr == 0 {
						continue
					}
					row[px] = complex128(img.At(x, y, pol, ch)) / complex(corr, 0)
				}
				if err := m.grid.SetRow(py, pol, ch, row); err != nil {
					return err
				}
			}
		}
	}
	return transform(ctx, m.grid, true)
}

// toImage transforms l to the image plane and returns the unpadded,
// grid-corrected image, divided by the summed weights when normalize is
// set.
func (m *Machine) toImage(ctx context.Context, l *lattice.Lattice, normalize bool) (*Image, error) {
	if err := l.Flush(); err != nil {
		return nil, err
	}
	if err := transform(ctx, l, false); err != nil {
		return nil, err
	}

	in := m.image
	out, err := NewImage(in.NX, in.NY, in.NPol, in.NChan, in.Coords, in.Frequency)
	if err != nil {
		return nil, err
	}
	row := make([]complex128, m.geom.NX)
	for ch := range in.NChan {
		for pol := range in.NPol {
			scale := 1.0
			if sw := m.sumWeight[pol][ch]; normalize && sw > 0 {
				scale = 1 / sw
			}
			for y := range in.NY {
				py := y + m.padY
				if err := l.Row(py, pol, ch, row); err != nil {
					return nil, err
				}
				for x := range in.NX {
					px := x + m.padX
					corr := m.corrX[px] * m.corrY[py]
					if corr == 0 {
						continue
					}
					out.Set(x, y, pol, ch, complex64(row[px]*complex(scale/corr, 0)))
				}
			}
		}
	}
	return out, nil
}
