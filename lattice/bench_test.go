package lattice

import "testing"

func BenchmarkLattice_AddResident(b *testing.B) {
	l, _ := New(Shape{NX: 256, NY: 256, NPol: 1, NChan: 1})
	defer l.Close()
	for b.Loop() {
		for x := 100; x < 116; x++ {
			_ = l.Add(x, 128, 0, 0, 1)
		}
	}
}

func BenchmarkLattice_RowPaged(b *testing.B) {
	l, _ := New(Shape{NX: 512, NY: 512, NPol: 1, NChan: 1}, WithTileSize(64), WithMaxTiles(4))
	defer l.Close()
	row := make([]complex128, 512)
	for b.Loop() {
		for y := 0; y < 512; y += 64 {
			_ = l.Row(y, 0, 0, row)
		}
	}
}
