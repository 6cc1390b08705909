package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/cfgrid/coords"
	"github.com/jonwraymond/cfgrid/ftmachine"
	"github.com/jonwraymond/cfgrid/vis"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	v, err := cfg.Variant()
	if err != nil || v.Kind() != ftmachine.KindGrid {
		t.Fatalf("Variant = %v, %v", v, err)
	}
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
cache:
  dir: /scratch/cf
  retry:
    max_attempts: 5
    initial_delay: 20ms
gridder:
  kind: wproject
  w_planes: 16
  pa_tolerance: 0.02
  save_pa: true
  qualifier: field3
  tile_store: leveldb
observe:
  service_name: imager
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Cache.Dir != "/scratch/cf" || cfg.Cache.Retry.MaxAttempts != 5 || cfg.Cache.Retry.InitialDelay != 20*time.Millisecond {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	g := cfg.Gridder
	if g.Kind != "wproject" || g.WPlanes != 16 || g.Tolerance != 0.02 || !g.SavePA || g.Qualifier != "field3" {
		t.Errorf("gridder = %+v", g)
	}
	if g.Padding != ftmachine.DefaultPadding || g.CacheSize != ftmachine.DefaultCacheSize {
		t.Errorf("defaults lost: padding %v, cache size %d", g.Padding, g.CacheSize)
	}
	if cfg.Observe.ServiceName != "imager" || !cfg.Observe.Logging.Enabled {
		t.Errorf("observe = %+v", cfg.Observe)
	}
	v, err := cfg.Variant()
	if err != nil {
		t.Fatalf("Variant: %v", err)
	}
	if v.Kind() != ftmachine.KindWProject || v.NW() != 16 {
		t.Errorf("variant = %v with %d planes", v.Kind(), v.NW())
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown kind", "gridder: {kind: awproject}"},
		{"no w planes", "gridder: {kind: wproject, w_planes: 0}"},
		{"zero tolerance", "gridder: {pa_tolerance: 0}"},
		{"shrinking padding", "gridder: {padding: 0.5}"},
		{"tile store", "gridder: {tile_store: redis}"},
		{"blocked dish", "gridder: {kind: mosaic, aperture: {diameter: 12, blockage: 12}}"},
		{"save without qualifier", "gridder: {save_pa: true, qualifier: \"\"}"},
		{"service name", "observe: {service_name: \"\"}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
	if _, err := Parse([]byte("gridder: [")); err == nil || errors.Is(err, ErrInvalidConfig) {
		t.Errorf("malformed YAML: err = %v, want a parse error", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfgrid.yaml")
	if err := os.WriteFile(path, []byte("gridder:\n  kind: mosaic\n  mosaic_offset: [2, -1]\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gridder.Kind != "mosaic" || cfg.Gridder.MosaicOffset != [2]int{2, -1} {
		t.Errorf("gridder = %+v", cfg.Gridder)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestOpen_GridsThroughScratchTiles(t *testing.T) {
	ctx := context.Background()
	tiles := t.TempDir()
	cfg := Default()
	cfg.Cache.Dir = t.TempDir()
	cfg.Observe.Logging.Enabled = false
	cfg.Gridder.Padding = 1
	cfg.Gridder.SavePA = true
	cfg.Gridder.TileStore = "leveldb"
	cfg.Gridder.TileDir = tiles
	cfg.Gridder.TileSize = 8
	cfg.Gridder.CacheSize = 64

	rt, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() {
		if err := rt.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	dir, err := coords.NewDirection(32, 32, [2]float64{1e-3, 1e-3}, [2]float64{0, 0})
	if err != nil {
		t.Fatalf("NewDirection: %v", err)
	}
	img, err := ftmachine.NewImage(32, 32, 1, 1, dir, 1.4e9)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	buf := vis.NewBuffer(2, 1, []float64{1.4e9})
	buf.Rows[0] = vis.Row{UVW: [3]float64{20, 5, 0}, Antenna1: 0, Antenna2: 1}
	buf.Rows[1] = vis.Row{UVW: [3]float64{-15, 30, 0}, Antenna1: 1, Antenna2: 2}

	m := rt.Machine
	if err := m.InitializeToSky(ctx, img); err != nil {
		t.Fatalf("InitializeToSky: %v", err)
	}
	if err := m.Put(ctx, buf, true); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, _, err := m.FinalizeToSky(ctx, true); err != nil {
		t.Fatalf("FinalizeToSky: %v", err)
	}

	st := m.Stats()
	if st.RowsGridded != 2 || st.PageOuts == 0 {
		t.Errorf("stats = %+v, want two rows and paging", st)
	}
	if entries, _ := os.ReadDir(tiles); len(entries) != 0 {
		t.Errorf("scratch tiles left behind: %v", entries)
	}
	if _, err := os.Stat(filepath.Join(cfg.Cache.Dir, "CF-0.cf")); err != nil {
		t.Errorf("kernel not persisted: %v", err)
	}
}
