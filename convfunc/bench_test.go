package convfunc

import (
	"context"
	"testing"

	"github.com/jonwraymond/cfgrid/coords"
)

func BenchmarkBuildWProjection(b *testing.B) {
	img, _ := coords.NewDirection(128, 128, [2]float64{1e-3, 1e-3}, [2]float64{0, 0})
	p := Params{Image: img, NX: 128, NY: 128, NW: 8, WScale: WScaleFor(8, img.MaxW())}
	ctx := context.Background()
	for b.Loop() {
		if _, err := BuildWProjection(ctx, p); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPlane_Forward(b *testing.B) {
	p := NewPlane(256, 256)
	data := make([]complex128, 256*256)
	data[128*256+128] = 1
	for b.Loop() {
		p.Forward(data)
	}
}
