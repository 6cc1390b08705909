package ftmachine

import (
	"context"
	"testing"

	"github.com/jonwraymond/cfgrid/cfcache"
	"github.com/jonwraymond/cfgrid/coords"
	"github.com/jonwraymond/cfgrid/resilience"
	"github.com/jonwraymond/cfgrid/vis"
)

// With the observing frequency equal to the speed of light, uvw in metres
// are uvw in wavelengths.
const unitFreq = speedOfLight

func newTestImage(t testing.TB, n int, cell, freq float64) *Image {
	t.Helper()
	c, err := coords.NewDirection(n, n, [2]float64{cell, cell}, [2]float64{0, 0})
	if err != nil {
		t.Fatalf("NewDirection: %v", err)
	}
	img, err := NewImage(n, n, 1, 1, c, freq)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	return img
}

func newTestCache(t testing.TB, opts ...cfcache.Option) *cfcache.Cache {
	t.Helper()
	opts = append([]cfcache.Option{cfcache.WithRetry(resilience.Once())}, opts...)
	c, err := cfcache.New(opts...)
	if err != nil {
		t.Fatalf("cfcache.New: %v", err)
	}
	return c
}

func newTestMachine(t testing.TB, v Variant, c *cfcache.Cache, opts ...Option) *Machine {
	t.Helper()
	m, err := New(v, c, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

// uvBuffer holds one single-channel, single-polarization row per uvw, all
// with value 1 and unit weight.
func uvBuffer(pa, freq float64, uvw ...[3]float64) *vis.Buffer {
	b := vis.NewBuffer(len(uvw), 1, []float64{freq})
	b.PA = pa
	for i, p := range uvw {
		b.Rows[i] = vis.Row{UVW: p, Antenna1: 0, Antenna2: 1}
		b.Data[i][0][0] = 1
	}
	return b
}

func toSkyImage(t testing.TB, m *Machine, img *Image, bufs ...*vis.Buffer) (*Image, [][]float64) {
	t.Helper()
	ctx := context.Background()
	if err := m.InitializeToSky(ctx, img); err != nil {
		t.Fatalf("InitializeToSky: %v", err)
	}
	for _, b := range bufs {
		if err := m.Put(ctx, b, true); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	out, sums, err := m.FinalizeToSky(ctx, true)
	if err != nil {
		t.Fatalf("FinalizeToSky: %v", err)
	}
	return out, sums
}

func near(a complex64, re, im, tol float64) bool {
	return abs(float64(real(a))-re) <= tol && abs(float64(imag(a))-im) <= tol
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
