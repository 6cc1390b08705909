package parangle_test

import (
	"fmt"

	"github.com/jonwraymond/cfgrid/parangle"
)

func ExampleDetector_Update() {
	d, _ := parangle.NewDetector(0.01)

	for _, pa := range []float64{0.0, 0.005, 0.011, 0.012} {
		changed, _ := d.Update(pa)
		fmt.Println(pa, changed)
	}
	// Output:
	// 0 true
	// 0.005 false
	// 0.011 true
	// 0.012 false
}
