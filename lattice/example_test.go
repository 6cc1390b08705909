package lattice_test

import (
	"fmt"

	"github.com/jonwraymond/cfgrid/lattice"
)

func ExampleLattice() {
	l, _ := lattice.New(lattice.Shape{NX: 8, NY: 8, NPol: 1, NChan: 1},
		lattice.WithTileSize(4), lattice.WithMaxTiles(1))
	defer l.Close()

	// A 2x2 footprint centred on the corner shared by four tiles.
	for y := 3; y <= 4; y++ {
		for x := 3; x <= 4; x++ {
			_ = l.Add(x, y, 0, 0, 1)
		}
	}
	v, _ := l.At(3, 3, 0, 0)
	fmt.Println(v, l.Stats().PageOuts > 0)
	// Output: (1+0i) true
}
