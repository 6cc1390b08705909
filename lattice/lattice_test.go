package lattice

import (
	"errors"
	"testing"
)

func newTestLattice(t *testing.T, shape Shape, opts ...Option) *Lattice {
	t.Helper()
	l, err := New(shape, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestNew_InvalidShape(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		opts  []Option
	}{
		{name: "zero nx", shape: Shape{NX: 0, NY: 4, NPol: 1, NChan: 1}},
		{name: "zero pol", shape: Shape{NX: 4, NY: 4, NPol: 0, NChan: 1}},
		{name: "zero tile", shape: Shape{NX: 4, NY: 4, NPol: 1, NChan: 1}, opts: []Option{WithTileSize(0)}},
		{name: "no resident tiles", shape: Shape{NX: 4, NY: 4, NPol: 1, NChan: 1}, opts: []Option{WithMaxTiles(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.shape, tt.opts...); !errors.Is(err, ErrInvalidShape) {
				t.Fatalf("err = %v, want ErrInvalidShape", err)
			}
		})
	}
}

func TestLattice_SetAddAt(t *testing.T) {
	l := newTestLattice(t, Shape{NX: 10, NY: 6, NPol: 2, NChan: 2}, WithTileSize(4))
	if tx, ty := l.Tiles(); tx != 3 || ty != 2 {
		t.Fatalf("tiles = %dx%d, want 3x2", tx, ty)
	}

	if err := l.Set(9, 5, 1, 1, 2+1i); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := l.Add(9, 5, 1, 1, 0.5-3i); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := l.At(9, 5, 1, 1)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if got != 2.5-2i {
		t.Errorf("At = %v, want (2.5-2i)", got)
	}
	if other, _ := l.At(9, 5, 0, 1); other != 0 {
		t.Errorf("other polarization = %v, want 0", other)
	}
}

func TestLattice_OutOfRange(t *testing.T) {
	l := newTestLattice(t, Shape{NX: 4, NY: 4, NPol: 1, NChan: 1})
	for _, p := range [][4]int{{-1, 0, 0, 0}, {4, 0, 0, 0}, {0, 4, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}} {
		if err := l.Add(p[0], p[1], p[2], p[3], 1); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Add%v: err = %v, want ErrOutOfRange", p, err)
		}
	}
	if l.Contains(4, 0) || !l.Contains(3, 3) {
		t.Error("Contains disagrees with the lattice extent")
	}
}

// Accumulating across a tile boundary with one resident tile pages both
// tiles in and out without losing samples.
func TestLattice_FootprintStraddlesTiles(t *testing.T) {
	store := NewMemoryStore()
	l := newTestLattice(t, Shape{NX: 16, NY: 16, NPol: 1, NChan: 1},
		WithTileSize(4), WithMaxTiles(1), WithStore(store))

	for pass := range 3 {
		for y := 2; y <= 5; y++ {
			for x := 2; x <= 5; x++ {
				if err := l.Add(x, y, 0, 0, complex(float32(pass+1), 0)); err != nil {
					t.Fatalf("Add(%d,%d): %v", x, y, err)
				}
			}
		}
	}
	for y := 2; y <= 5; y++ {
		for x := 2; x <= 5; x++ {
			got, err := l.At(x, y, 0, 0)
			if err != nil {
				t.Fatalf("At(%d,%d): %v", x, y, err)
			}
			if got != 6 {
				t.Fatalf("At(%d,%d) = %v, want 6", x, y, got)
			}
		}
	}
	if v, _ := l.At(6, 6, 0, 0); v != 0 {
		t.Errorf("untouched pixel = %v, want 0", v)
	}

	st := l.Stats()
	if st.PageOuts == 0 || st.PageIns == 0 {
		t.Errorf("stats = %+v, want page-ins and page-outs", st)
	}
	if st.Resident != 1 || st.MaxTiles != 1 {
		t.Errorf("resident %d of %d, want 1 of 1", st.Resident, st.MaxTiles)
	}
}

func TestLattice_RowsAndColumns(t *testing.T) {
	l := newTestLattice(t, Shape{NX: 10, NY: 7, NPol: 1, NChan: 1}, WithTileSize(3), WithMaxTiles(2))

	row := make([]complex128, 10)
	for i := range row {
		row[i] = complex(float64(i), -float64(i))
	}
	if err := l.SetRow(4, 0, 0, row); err != nil {
		t.Fatalf("SetRow: %v", err)
	}
	col := make([]complex128, 7)
	for i := range col {
		col[i] = complex(0, float64(10+i))
	}
	if err := l.SetCol(8, 0, 0, col); err != nil {
		t.Fatalf("SetCol: %v", err)
	}

	gotRow := make([]complex128, 10)
	if err := l.Row(4, 0, 0, gotRow); err != nil {
		t.Fatalf("Row: %v", err)
	}
	for i, v := range gotRow {
		want := row[i]
		if i == 8 {
			want = col[4]
		}
		if v != want {
			t.Errorf("row[%d] = %v, want %v", i, v, want)
		}
	}
	gotCol := make([]complex128, 7)
	if err := l.Col(8, 0, 0, gotCol); err != nil {
		t.Fatalf("Col: %v", err)
	}
	for i, v := range gotCol {
		if v != col[i] {
			t.Errorf("col[%d] = %v, want %v", i, v, col[i])
		}
	}

	if err := l.Row(0, 0, 0, make([]complex128, 3)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("short row: err = %v, want ErrOutOfRange", err)
	}
	if err := l.Col(10, 0, 0, gotCol); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("column 10: err = %v, want ErrOutOfRange", err)
	}
}

func TestLattice_FlushSavesDirtyTiles(t *testing.T) {
	store := NewMemoryStore()
	l := newTestLattice(t, Shape{NX: 8, NY: 8, NPol: 1, NChan: 1}, WithTileSize(4), WithStore(store))

	_ = l.Set(0, 0, 0, 0, 1)
	_ = l.Set(7, 7, 0, 0, 2)
	if _, err := l.At(0, 7, 0, 0); err != nil {
		t.Fatalf("At: %v", err)
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("store holds %d tiles, want the 2 dirty ones", store.Len())
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if got := l.Stats().PageOuts; got != 2 {
		t.Errorf("page-outs = %d, want 2", got)
	}

	data, ok, err := store.Load(TileKey{X: 1, Y: 1})
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if data[3*4+3] != 2 {
		t.Errorf("saved tile corner = %v, want 2", data[15])
	}
}

type failingStore struct{ *MemoryStore }

var errStoreFull = errors.New("store full")

func (*failingStore) Save(TileKey, []complex64) error { return errStoreFull }

func TestLattice_PageOutFailureSurfaces(t *testing.T) {
	l := newTestLattice(t, Shape{NX: 8, NY: 4, NPol: 1, NChan: 1},
		WithTileSize(4), WithMaxTiles(1), WithStore(&failingStore{MemoryStore: NewMemoryStore()}))

	if err := l.Set(0, 0, 0, 0, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := l.Set(5, 0, 0, 0, 1)
	if !errors.Is(err, ErrPaging) || !errors.Is(err, errStoreFull) {
		t.Fatalf("err = %v, want ErrPaging wrapping the store error", err)
	}
	if _, err := l.At(0, 0, 0, 0); !errors.Is(err, ErrPaging) {
		t.Errorf("later access: err = %v, want ErrPaging", err)
	}
}

func TestLattice_Close(t *testing.T) {
	store := NewMemoryStore()
	l, err := New(Shape{NX: 4, NY: 4, NPol: 1, NChan: 1}, WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = l.Set(1, 1, 0, 0, 1)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := l.At(1, 1, 0, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("At after Close: err = %v, want ErrClosed", err)
	}
	if err := l.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Close: err = %v, want ErrClosed", err)
	}
	if _, _, err := store.Load(TileKey{}); !errors.Is(err, ErrClosed) {
		t.Errorf("store Load after Close: err = %v, want ErrClosed", err)
	}
}
