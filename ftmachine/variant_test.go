package ftmachine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jonwraymond/cfgrid/cfcache"
	"github.com/jonwraymond/cfgrid/convfunc"
)

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindGrid, KindWProject, KindMosaic} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("awproject"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("unknown kind: err = %v, want ErrInvalidOption", err)
	}
}

func TestWProject_CachesEveryPlane(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	m := newTestMachine(t, WProject(4), c, WithPadding(1))
	img := newTestImage(t, 32, 1e-3, unitFreq)

	buf := uvBuffer(0, unitFreq,
		[3]float64{125, 0, 0}, [3]float64{40, -70, 30}, [3]float64{-60, 20, -120}, [3]float64{10, 90, 250})
	out, _ := toSkyImage(t, m, img, buf)

	if st := m.Stats(); st.Builds != 1 || st.RowsGridded != 4 {
		t.Fatalf("stats = %+v, want one build and four rows", st)
	}
	if g := m.Geometry(); g.WScale <= 0 {
		t.Errorf("w scale = %v, want > 0", g.WScale)
	}
	if v := out.At(16, 16, 0, 0); !near(v, 1, 0, 1e-3) {
		t.Errorf("psf centre = %v, want 1", v)
	}

	res, err := c.Locate(ctx, cfcache.Query{NW: 4, PA: 0, DPA: 0.01, Frequency: unitFreq})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if res.Status != cfcache.MemoryHit || res.CF.NW() != 4 {
		t.Fatalf("Locate = %v with %d planes, want a memory hit with 4", res.Status, res.CF.NW())
	}
	prev := 0
	for iw := range 4 {
		sup, _, err := res.CF.Support(iw, 0)
		if err != nil {
			t.Fatalf("Support(%d): %v", iw, err)
		}
		if sup < prev {
			t.Errorf("plane %d support %d shrinks from %d", iw, sup, prev)
		}
		prev = sup
	}
}

func mosaicImage(t testing.TB) *Image {
	return newTestImage(t, 64, 5e-4, 1.4e9)
}

func TestMosaic_WeightImageAndAvgPB(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := newTestCache(t, cfcache.WithDir(dir))
	m := newTestMachine(t, Mosaic(convfunc.VLA()), c,
		WithPadding(1), WithSavePA(true), WithQualifier("field0"))

	buf := uvBuffer(0, 1.4e9, [3]float64{100, 0, 0}, [3]float64{-50, 80, 0}, [3]float64{30, -120, 0})
	out, _ := toSkyImage(t, m, mosaicImage(t), buf)
	if out == nil {
		t.Fatal("nil image")
	}

	wi := m.WeightImage()
	if wi == nil || wi.NX != 64 || wi.NY != 64 {
		t.Fatalf("weight image = %+v", wi)
	}
	pb := m.AvgPB()
	if pb == nil {
		t.Fatal("nil avg PB")
	}
	peak := float32(0)
	for _, v := range pb.Pixels {
		if math.IsNaN(float64(v)) || v < 0 {
			t.Fatalf("avg PB pixel %v", v)
		}
		peak = max(peak, v)
	}
	if peak != 1 {
		t.Errorf("avg PB peak = %v, want 1", peak)
	}

	loaded, err := c.LoadAvgPB(ctx, "field0")
	if err != nil {
		t.Fatalf("LoadAvgPB: %v", err)
	}
	if loaded.NX != pb.NX || loaded.NY != pb.NY {
		t.Fatalf("loaded %dx%d, want %dx%d", loaded.NX, loaded.NY, pb.NX, pb.NY)
	}
	for i := range pb.Pixels {
		if loaded.Pixels[i] != pb.Pixels[i] {
			t.Fatalf("pixel %d = %v, want %v", i, loaded.Pixels[i], pb.Pixels[i])
		}
	}
	if st := m.Stats(); st.PersistFailures != 0 || st.Builds != 1 {
		t.Errorf("stats = %+v", st)
	}
}

// Without WithSavePA the beam is still derived but never written.
func TestMosaic_AvgPBNotSavedByDefault(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, cfcache.WithDir(t.TempDir()))
	m := newTestMachine(t, Mosaic(convfunc.VLA()), c, WithPadding(1), WithQualifier("field1"))
	toSkyImage(t, m, mosaicImage(t), uvBuffer(0, 1.4e9, [3]float64{100, 0, 0}))

	if m.AvgPB() == nil {
		t.Fatal("nil avg PB")
	}
	if _, err := c.LoadAvgPB(ctx, "field1"); err == nil {
		t.Fatal("LoadAvgPB succeeded for an unsaved beam")
	}
}

func TestMosaic_NoWeightImageForOtherKinds(t *testing.T) {
	m := newTestMachine(t, Grid(), newTestCache(t), WithPadding(1))
	toSkyImage(t, m, newTestImage(t, 32, 1e-3, unitFreq), uvBuffer(0, unitFreq, [3]float64{125, 0, 0}))
	if m.WeightImage() != nil || m.AvgPB() != nil {
		t.Fatal("plain gridder produced mosaic products")
	}
}
