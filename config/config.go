package config

import (
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/cfgrid/cfcache"
	"github.com/jonwraymond/cfgrid/convfunc"
	"github.com/jonwraymond/cfgrid/ftmachine"
	"github.com/jonwraymond/cfgrid/lattice"
	"github.com/jonwraymond/cfgrid/observe"
	"github.com/jonwraymond/cfgrid/parangle"
	"github.com/jonwraymond/cfgrid/resilience"
)

// Config describes one imaging run.
type Config struct {
	Cache   CacheConfig    `yaml:"cache"`
	Gridder GridderConfig  `yaml:"gridder"`
	Observe observe.Config `yaml:"observe"`
}

// CacheConfig configures the convolution-function cache.
type CacheConfig struct {
	// Dir is the cache directory. Empty keeps kernels in memory only.
	Dir string `yaml:"dir"`
	// MaxEntries bounds the in-memory kernel planes.
	MaxEntries int                    `yaml:"max_entries"`
	Retry      resilience.RetryConfig `yaml:"retry"`
}

// GridderConfig configures the gridding machine.
type GridderConfig struct {
	Kind      string  `yaml:"kind"`     // grid|wproject|mosaic
	WPlanes   int     `yaml:"w_planes"` // wproject only
	Padding   float64 `yaml:"padding"`
	Tolerance float64 `yaml:"pa_tolerance"` // radians
	UseZero   bool    `yaml:"use_zero"`
	Sampling  int     `yaml:"sampling"`
	ConvSize  int     `yaml:"conv_size"`
	MaxW      float64 `yaml:"max_w"`
	SavePA    bool    `yaml:"save_pa"`
	Qualifier string  `yaml:"qualifier"`

	TileSize  int    `yaml:"tile_size"`
	CacheSize int    `yaml:"cache_size"` // resident lattice pixels
	TileStore string `yaml:"tile_store"` // memory|leveldb
	// TileDir holds scratch tile databases when TileStore is leveldb. Empty
	// keeps the database in memory.
	TileDir string `yaml:"tile_dir"`

	Aperture     ApertureConfig `yaml:"aperture"`      // mosaic only
	MosaicOffset [2]int         `yaml:"mosaic_offset"` // pixels, mosaic only
}

// ApertureConfig is a dish illumination, in metres.
type ApertureConfig struct {
	Diameter float64 `yaml:"diameter"`
	Blockage float64 `yaml:"blockage"`
	LegWidth float64 `yaml:"leg_width"`
}

// ValidTileStores lists the accepted tile_store values.
var ValidTileStores = []string{"memory", "leveldb"}

// Default returns an in-memory spheroidal gridder with info logging.
func Default() Config {
	a := convfunc.VLA()
	return Config{
		Cache: CacheConfig{
			MaxEntries: cfcache.DefaultMaxEntries,
			Retry:      resilience.RetryConfig{MaxAttempts: 3},
		},
		Gridder: GridderConfig{
			Kind:      ftmachine.KindGrid.String(),
			WPlanes:   1,
			Padding:   ftmachine.DefaultPadding,
			Tolerance: parangle.DefaultTolerance,
			Qualifier: ftmachine.DefaultQualifier,
			TileSize:  lattice.DefaultTileSize,
			CacheSize: ftmachine.DefaultCacheSize,
			TileStore: "memory",
			Aperture:  ApertureConfig{Diameter: a.Diameter, Blockage: a.Blockage, LegWidth: a.LegWidth},
		},
		Observe: observe.DefaultConfig(),
	}
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	g := c.Gridder
	kind, err := ftmachine.ParseKind(g.Kind)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if kind == ftmachine.KindWProject && g.WPlanes < 1 {
		return fmt.Errorf("%w: w_planes %d", ErrInvalidConfig, g.WPlanes)
	}
	if err := parangle.ValidateTolerance(g.Tolerance); err != nil {
		return fmt.Errorf("%w: pa_tolerance: %w", ErrInvalidConfig, err)
	}
	if math.IsNaN(g.Padding) || g.Padding < 1 {
		return fmt.Errorf("%w: padding %v, want >= 1", ErrInvalidConfig, g.Padding)
	}
	if g.TileSize <= 0 || g.CacheSize <= 0 {
		return fmt.Errorf("%w: tile_size %d, cache_size %d", ErrInvalidConfig, g.TileSize, g.CacheSize)
	}
	if g.Sampling < 0 || g.ConvSize < 0 || g.MaxW < 0 {
		return fmt.Errorf("%w: sampling %d, conv_size %d, max_w %v", ErrInvalidConfig, g.Sampling, g.ConvSize, g.MaxW)
	}
	if !slices.Contains(ValidTileStores, g.TileStore) {
		return fmt.Errorf("%w: tile_store %q", ErrInvalidConfig, g.TileStore)
	}
	if g.SavePA && g.Qualifier == "" {
		return fmt.Errorf("%w: save_pa needs a qualifier", ErrInvalidConfig)
	}
	if kind == ftmachine.KindMosaic {
		a := g.Aperture
		if a.Diameter <= 0 || a.Blockage < 0 || a.Blockage >= a.Diameter || a.LegWidth < 0 {
			return fmt.Errorf("%w: aperture %+v", ErrInvalidConfig, a)
		}
	}
	if c.Cache.MaxEntries < 0 || c.Cache.Retry.MaxAttempts < 0 {
		return fmt.Errorf("%w: max_entries %d, retry attempts %d", ErrInvalidConfig, c.Cache.MaxEntries, c.Cache.Retry.MaxAttempts)
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Variant returns the gridding variant the configuration names.
func (c *Config) Variant() (ftmachine.Variant, error) {
	kind, err := ftmachine.ParseKind(c.Gridder.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch kind {
	case ftmachine.KindWProject:
		return ftmachine.WProject(c.Gridder.WPlanes), nil
	case ftmachine.KindMosaic:
		a := c.Gridder.Aperture
		return ftmachine.Mosaic(convfunc.Aperture{Diameter: a.Diameter, Blockage: a.Blockage, LegWidth: a.LegWidth}), nil
	default:
		return ftmachine.Grid(), nil
	}
}

// CacheOptions returns the cache options of the configuration.
func (c *Config) CacheOptions() []cfcache.Option {
	var opts []cfcache.Option
	if c.Cache.Dir != "" {
		opts = append(opts, cfcache.WithDir(c.Cache.Dir))
	}
	if c.Cache.MaxEntries > 0 {
		opts = append(opts, cfcache.WithMaxEntries(c.Cache.MaxEntries))
	}
	return append(opts, cfcache.WithRetry(resilience.NewRetry(c.Cache.Retry)))
}

// MachineOptions returns the gridding machine options of the
// configuration.
func (c *Config) MachineOptions() []ftmachine.Option {
	g := c.Gridder
	opts := []ftmachine.Option{
		ftmachine.WithPadding(g.Padding),
		ftmachine.WithTolerance(g.Tolerance),
		ftmachine.WithUseZero(g.UseZero),
		ftmachine.WithSampling(g.Sampling),
		ftmachine.WithConvSize(g.ConvSize),
		ftmachine.WithMaxW(g.MaxW),
		ftmachine.WithSavePA(g.SavePA),
		ftmachine.WithQualifier(g.Qualifier),
		ftmachine.WithTileSize(g.TileSize),
		ftmachine.WithCacheSize(g.CacheSize),
		ftmachine.WithMosaicOffset(g.MosaicOffset[0], g.MosaicOffset[1]),
	}
	if g.TileStore == "leveldb" {
		dir := g.TileDir
		opts = append(opts, ftmachine.WithTileStore(func() (lattice.TileStore, error) {
			if dir == "" {
				return lattice.OpenMemoryLevelDB()
			}
			return lattice.OpenScratchLevelDB(dir)
		}))
	}
	return opts
}
