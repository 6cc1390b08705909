package vis

import "fmt"

// Row is one baseline sample: its uvw coordinate in metres, the antennas
// that formed it and a row-wide flag.
type Row struct {
	UVW      [3]float64
	Antenna1 int
	Antenna2 int
	Flag     bool
}

// ZeroSpacing reports an autocorrelation or a row at the uv origin.
func (r Row) ZeroSpacing() bool {
	return r.Antenna1 == r.Antenna2 || (r.UVW[0] == 0 && r.UVW[1] == 0)
}

// Buffer is a block of visibility rows.
type Buffer struct {
	Rows []Row
	// Freqs are the channel frequencies in Hz.
	Freqs []float64
	Data  [][][]complex64
	Flags [][][]bool
	// Weights are imaging weights per row and channel.
	Weights [][]float32
	// PA is the parallactic angle in radians.
	PA float64
	// Model receives degridded values.
	Model [][][]complex64
}

// NewBuffer allocates a buffer of nRows rows, one channel per frequency and
// nPol polarizations, with unit weights and nothing flagged.
func NewBuffer(nRows, nPol int, freqs []float64) *Buffer {
	b := &Buffer{
		Rows:    make([]Row, nRows),
		Freqs:   append([]float64(nil), freqs...),
		Data:    make([][][]complex64, nRows),
		Flags:   make([][][]bool, nRows),
		Weights: make([][]float32, nRows),
		Model:   make([][][]complex64, nRows),
	}
	for r := range nRows {
		b.Data[r] = make([][]complex64, len(freqs))
		b.Flags[r] = make([][]bool, len(freqs))
		b.Model[r] = make([][]complex64, len(freqs))
		b.Weights[r] = make([]float32, len(freqs))
		for c := range freqs {
			b.Data[r][c] = make([]complex64, nPol)
			b.Flags[r][c] = make([]bool, nPol)
			b.Model[r][c] = make([]complex64, nPol)
			b.Weights[r][c] = 1
		}
	}
	return b
}

// NRows returns the number of rows.
func (b *Buffer) NRows() int { return len(b.Rows) }

// NChan returns the number of channels.
func (b *Buffer) NChan() int { return len(b.Freqs) }

// NPol returns the number of polarizations, or 0 for an empty buffer.
func (b *Buffer) NPol() int {
	if len(b.Data) == 0 || len(b.Data[0]) == 0 {
		return 0
	}
	return len(b.Data[0][0])
}

// Validate checks that every array agrees with the row, channel and
// polarization counts. A nil Flags or Model array is allowed.
func (b *Buffer) Validate() error {
	nRows, nChan, nPol := b.NRows(), b.NChan(), b.NPol()
	if len(b.Data) != nRows || len(b.Weights) != nRows {
		return fmt.Errorf("%w: %d rows, %d data rows, %d weight rows", ErrShapeMismatch, nRows, len(b.Data), len(b.Weights))
	}
	if b.Flags != nil && len(b.Flags) != nRows {
		return fmt.Errorf("%w: %d flag rows for %d rows", ErrShapeMismatch, len(b.Flags), nRows)
	}
	if b.Model != nil && len(b.Model) != nRows {
		return fmt.Errorf("%w: %d model rows for %d rows", ErrShapeMismatch, len(b.Model), nRows)
	}
	check := func(name string, n int, got func(r, c int) int) error {
		for r := range nRows {
			for c := range nChan {
				if g := got(r, c); g != n {
					return fmt.Errorf("%w: %s[%d][%d] has %d entries, want %d", ErrShapeMismatch, name, r, c, g, n)
				}
			}
		}
		return nil
	}
	for r := range nRows {
		if len(b.Data[r]) != nChan || len(b.Weights[r]) != nChan {
			return fmt.Errorf("%w: row %d has %d data and %d weight channels, want %d",
				ErrShapeMismatch, r, len(b.Data[r]), len(b.Weights[r]), nChan)
		}
		if b.Flags != nil && len(b.Flags[r]) != nChan {
			return fmt.Errorf("%w: row %d has %d flag channels, want %d", ErrShapeMismatch, r, len(b.Flags[r]), nChan)
		}
		if b.Model != nil && len(b.Model[r]) != nChan {
			return fmt.Errorf("%w: row %d has %d model channels, want %d", ErrShapeMismatch, r, len(b.Model[r]), nChan)
		}
	}
	if err := check("data", nPol, func(r, c int) int { return len(b.Data[r][c]) }); err != nil {
		return err
	}
	if b.Flags != nil {
		if err := check("flags", nPol, func(r, c int) int { return len(b.Flags[r][c]) }); err != nil {
			return err
		}
	}
	if b.Model != nil {
		if err := check("model", nPol, func(r, c int) int { return len(b.Model[r][c]) }); err != nil {
			return err
		}
	}
	return nil
}

// Flagged reports whether a sample is excluded, either by its row flag or
// its own flag.
func (b *Buffer) Flagged(row, ch, pol int) bool {
	if b.Rows[row].Flag {
		return true
	}
	return b.Flags != nil && b.Flags[row][ch][pol]
}

// ResetModel zeroes the model values, allocating them when absent.
func (b *Buffer) ResetModel() {
	if b.Model == nil {
		b.Model = make([][][]complex64, b.NRows())
	}
	nPol := b.NPol()
	for r := range b.Model {
		if len(b.Model[r]) != b.NChan() {
			b.Model[r] = make([][]complex64, b.NChan())
		}
		for c := range b.Model[r] {
			if len(b.Model[r][c]) != nPol {
				b.Model[r][c] = make([]complex64, nPol)
				continue
			}
			clear(b.Model[r][c])
		}
	}
}
