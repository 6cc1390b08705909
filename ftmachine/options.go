package ftmachine

import (
	"github.com/jonwraymond/cfgrid/cfstore"
	"github.com/jonwraymond/cfgrid/lattice"
	"github.com/jonwraymond/cfgrid/observe"
	"github.com/jonwraymond/cfgrid/parangle"
)

const (
	// DefaultPadding is the grid padding factor.
	DefaultPadding = 1.2
	// DefaultQualifier names cached kernel files.
	DefaultQualifier = "CF"
	// DefaultCacheSize is the number of lattice pixels kept resident.
	DefaultCacheSize = 1 << 22
)

// Option configures a Machine.
type Option func(*config)

type config struct {
	padding   float64
	tileSize  int
	cacheSize int
	useZero   bool
	tolerance float64
	sampling  int
	convSize  int
	maxW      float64
	savePA    bool
	qualifier string
	mosaic    cfstore.Offset
	newStore  func() (lattice.TileStore, error)

	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
}

func defaultConfig() config {
	return config{
		padding:   DefaultPadding,
		tileSize:  lattice.DefaultTileSize,
		cacheSize: DefaultCacheSize,
		tolerance: parangle.DefaultTolerance,
		qualifier: DefaultQualifier,
	}
}

// WithPadding sets the grid padding factor; values <= 1 disable padding.
func WithPadding(f float64) Option {
	return func(c *config) { c.padding = f }
}

// WithTileSize sets the lattice tile edge in pixels.
func WithTileSize(n int) Option {
	return func(c *config) { c.tileSize = n }
}

// WithCacheSize sets how many lattice pixels stay resident. A padded grid
// larger than this is paged through the tile store.
func WithCacheSize(pixels int) Option {
	return func(c *config) { c.cacheSize = pixels }
}

// WithUseZero includes zero-spacing and autocorrelation rows.
func WithUseZero(use bool) Option {
	return func(c *config) { c.useZero = use }
}

// WithTolerance sets the parallactic-angle tolerance in radians.
func WithTolerance(dPA float64) Option {
	return func(c *config) { c.tolerance = dPA }
}

// WithSampling sets the kernel oversampling factor; 0 picks the builder's
// default.
func WithSampling(n int) Option {
	return func(c *config) { c.sampling = n }
}

// WithConvSize sets the kernel screen size; 0 picks the builder's default.
func WithConvSize(n int) Option {
	return func(c *config) { c.convSize = n }
}

// WithMaxW sets the largest w (wavelengths) the w-planes cover. By default
// it follows from the image cell size.
func WithMaxW(w float64) Option {
	return func(c *config) { c.maxW = w }
}

// WithSavePA persists built kernels to the cache directory.
func WithSavePA(save bool) Option {
	return func(c *config) { c.savePA = save }
}

// WithQualifier names persisted kernels and the average primary beam.
func WithQualifier(q string) Option {
	return func(c *config) { c.qualifier = q }
}

// WithMosaicOffset sets the pointing offset, in image pixels, of a mosaic
// field.
func WithMosaicOffset(x, y int) Option {
	return func(c *config) { c.mosaic = cfstore.Offset{X: x, Y: y} }
}

// WithTileStore sets the factory for the store that receives paged-out
// tiles. It is called once per initialization; the lattice closes the
// store when the machine finalizes.
func WithTileStore(newStore func() (lattice.TileStore, error)) Option {
	return func(c *config) { c.newStore = newStore }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t observe.Tracer) Option {
	return func(c *config) { c.tracer = t }
}
