package ftmachine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonwraymond/cfgrid/cfcache"
	"github.com/jonwraymond/cfgrid/cfstore"
	"github.com/jonwraymond/cfgrid/convfunc"
	"github.com/jonwraymond/cfgrid/coords"
	"github.com/jonwraymond/cfgrid/lattice"
	"github.com/jonwraymond/cfgrid/observe"
	"github.com/jonwraymond/cfgrid/parangle"
	"github.com/jonwraymond/cfgrid/vis"
)

// State is the life-cycle state of a Machine.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type direction int

const (
	toSky direction = iota
	toVis
)

// Stats reports what a machine has done since its last initialization.
type Stats struct {
	// RowsGridded and RowsDegridded count rows with at least one sample on
	// the grid.
	RowsGridded   int64
	RowsDegridded int64
	// SkippedRows counts rows whose every footprint fell off the grid.
	SkippedRows int64
	// IgnoredRows counts zero-spacing rows left out without WithUseZero.
	IgnoredRows    int64
	FlaggedSamples int64

	// Builds, MemoryHits and DiskHits count kernel lookups by outcome.
	Builds     int64
	MemoryHits int64
	DiskHits   int64
	// PersistFailures counts cache writes that failed; gridding went on.
	PersistFailures int64

	PageIns  int64
	PageOuts int64
}

// Machine grids and degrids visibilities with the kernels of one Variant.
// Methods are safe for concurrent use but serialise on one lock; buffers
// should arrive in observation order.
type Machine struct {
	mu      sync.Mutex
	variant Variant
	cache   *cfcache.Cache
	cfg     config
	mw      *observe.Middleware
	logger  observe.Logger

	state    State
	dir      direction
	image    *Image
	geom     Geometry
	padX     int
	padY     int
	uvScale  [2]float64
	uvOffset [2]float64
	corrX    []float64
	corrY    []float64

	grid      *lattice.Lattice
	weights   *lattice.Lattice
	detector  *parangle.Detector
	kernelInc [2]float64
	cf        *cfstore.Store
	weightCF  *cfstore.Store
	sumWeight [][]float64

	stats       Stats
	weightImage *Image
	avgPB       *cfcache.AvgPB
}

// New creates a machine for variant that takes its kernels from cache.
func New(variant Variant, cache *cfcache.Cache, opts ...Option) (*Machine, error) {
	if variant == nil {
		return nil, fmt.Errorf("%w: nil variant", ErrInvalidOption)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: nil cache", ErrInvalidOption)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := parangle.ValidateTolerance(cfg.tolerance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	if math.IsNaN(cfg.padding) || cfg.tileSize <= 0 || cfg.cacheSize <= 0 || cfg.sampling < 0 || cfg.convSize < 0 {
		return nil, fmt.Errorf("%w: padding %v, tile %d, cache %d pixels, sampling %d, screen %d",
			ErrInvalidOption, cfg.padding, cfg.tileSize, cfg.cacheSize, cfg.sampling, cfg.convSize)
	}
	if cfg.maxW < 0 || math.IsNaN(cfg.maxW) || math.IsInf(cfg.maxW, 0) {
		return nil, fmt.Errorf("%w: max w %v", ErrInvalidOption, cfg.maxW)
	}
	if cfg.logger == nil {
		cfg.logger = observe.NopLogger()
	}
	logger := cfg.logger.With(observe.F("component", "ftmachine"), observe.F("gridder", variant.Kind().String()))
	return &Machine{
		variant: variant,
		cache:   cache,
		cfg:     cfg,
		mw:      observe.NewMiddleware(cfg.tracer, cfg.metrics, logger),
		logger:  logger,
	}, nil
}

// Kind returns the variant kind.
func (m *Machine) Kind() Kind { return m.variant.Kind() }

// State returns the life-cycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Geometry returns the padded-grid geometry of the current initialization.
func (m *Machine) Geometry() Geometry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geom
}

// Stats returns a snapshot of the machine counters.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	if m.grid != nil {
		ls := m.grid.Stats()
		s.PageIns += ls.PageIns
		s.PageOuts += ls.PageOuts
	}
	return s
}

// InitializeToSky prepares to grid visibilities into an image shaped like
// img. img itself is not modified.
func (m *Machine) InitializeToSky(ctx context.Context, img *Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mw.Run(ctx, observe.Op{Component: "ftmachine", Name: "initialize_to_sky"}, func(ctx context.Context) error {
		return m.initialize(ctx, img, toSky)
	})
}

// InitializeToVis prepares to degrid visibilities from the model img: the
// model is grid-corrected, padded and transformed into the lattice.
func (m *Machine) InitializeToVis(ctx context.Context, img *Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mw.Run(ctx, observe.Op{Component: "ftmachine", Name: "initialize_to_vis"}, func(ctx context.Context) error {
		if err := m.initialize(ctx, img, toVis); err != nil {
			return err
		}
		if err := m.loadModel(ctx); err != nil {
			m.release()
			m.state = StateUninitialized
			return err
		}
		return nil
	})
}

func (m *Machine) initialize(ctx context.Context, img *Image, dir direction) error {
	if m.state == StateActive {
		return ErrAlreadyActive
	}
	if err := img.Validate(); err != nil {
		return err
	}

	nx := coords.PaddedSize(img.NX, m.cfg.padding)
	ny := coords.PaddedSize(img.NY, m.cfg.padding)
	padX, padY := (nx-img.NX)/2, (ny-img.NY)/2
	padded := img.Coords
	padded.RefPixel[0] += float64(padX)
	padded.RefPixel[1] += float64(padY)

	g := Geometry{
		Coords:    padded,
		NX:        nx,
		NY:        ny,
		ConvSize:  m.cfg.convSize,
		Sampling:  m.cfg.sampling,
		Frequency: img.Frequency,
		Mosaic:    m.cfg.mosaic,
	}
	if nW := m.variant.NW(); nW > 1 {
		maxW := m.cfg.maxW
		if maxW == 0 {
			maxW = img.Coords.MaxW()
		}
		g.WScale = convfunc.WScaleFor(nW, maxW)
	}

	detector, err := parangle.NewDetector(m.cfg.tolerance)
	if err != nil {
		return err
	}
	// A zero increment skips the cache's geometry check; an invalid geometry
	// is reported by the builder on the first miss.
	kernelInc, _ := convfunc.KernelIncrement(g.params(0, m.variant.NW()))

	shape := lattice.Shape{NX: nx, NY: ny, NPol: img.NPol, NChan: img.NChan}
	grid, err := m.newLattice(shape)
	if err != nil {
		return err
	}
	var weights *lattice.Lattice
	if m.variant.Kind() == KindMosaic && dir == toSky {
		if weights, err = m.newLattice(shape); err != nil {
			_ = grid.Close()
			return err
		}
	}

	m.image = img
	m.dir = dir
	m.geom = g
	m.padX, m.padY = padX, padY
	m.uvScale = padded.UVScale(nx, ny)
	m.uvOffset = coords.UVOffset(nx, ny)
	m.corrX = convfunc.GridCorrection(nx)
	m.corrY = convfunc.GridCorrection(ny)
	m.grid, m.weights = grid, weights
	m.detector = detector
	m.kernelInc = kernelInc
	m.cf, m.weightCF = nil, nil
	m.sumWeight = make([][]float64, img.NPol)
	for p := range m.sumWeight {
		m.sumWeight[p] = make([]float64, img.NChan)
	}
	m.stats = Stats{}
	m.weightImage, m.avgPB = nil, nil
	m.state = StateActive

	tx, ty := grid.Tiles()
	m.logger.Info(ctx, "machine initialized",
		observe.F("direction", map[direction]string{toSky: "sky", toVis: "vis"}[dir]),
		observe.F("nx", nx), observe.F("ny", ny),
		observe.F("tiles", tx*ty), observe.F("w_scale", g.WScale))
	return nil
}

func (m *Machine) newLattice(shape lattice.Shape) (*lattice.Lattice, error) {
	ts := m.cfg.tileSize
	opts := []lattice.Option{
		lattice.WithTileSize(ts),
		lattice.WithMaxTiles(max(1, m.cfg.cacheSize/(ts*ts))),
	}
	if m.cfg.newStore != nil {
		store, err := m.cfg.newStore()
		if err != nil {
			return nil, fmt.Errorf("ftmachine: tile store: %w", err)
		}
		opts = append(opts, lattice.WithStore(store))
	}
	return lattice.New(shape, opts...)
}

// ready checks that the machine is active in direction dir.
func (m *Machine) ready(dir direction) error {
	switch m.state {
	case StateUninitialized:
		return ErrNotActive
	case StateFinalized:
		return ErrFinalized
	}
	if m.dir != dir {
		return ErrWrongDirection
	}
	return nil
}

// kernels makes the kernel stack for pa current, asking the cache only
// when the detector reports a change.
func (m *Machine) kernels(ctx context.Context, pa float64) error {
	changed, err := m.detector.Update(pa)
	if err != nil {
		return err
	}
	if !changed && m.cf != nil {
		return nil
	}

	q := cfcache.Query{
		NW:         m.variant.NW(),
		PA:         pa,
		DPA:        m.cfg.tolerance,
		Frequency:  m.geom.Frequency,
		Increment:  m.kernelInc,
		MosaicX:    m.geom.Mosaic.X,
		MosaicY:    m.geom.Mosaic.Y,
		WantWeight: m.variant.Kind() == KindMosaic,
	}
	op := observe.Op{Component: "ftmachine", Name: "locate"}
	var res cfcache.Result
	err = m.mw.Run(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = m.cache.BuildOnce(ctx, q, m.cfg.qualifier, m.cfg.savePA, func(ctx context.Context) (*cfstore.Store, *cfstore.Store, error) {
			start := time.Now()
			cf, weight, err := m.variant.BuildConvolutionFunction(ctx, m.geom, pa)
			if err != nil {
				return nil, nil, err
			}
			sup, _, _ := cf.Support(cf.NW()-1, 0)
			m.logger.Info(ctx, "convolution function built",
				observe.F("pa", pa), observe.F("nw", cf.NW()),
				observe.F("size", cf.Kernel().Shape().NX()), observe.F("max_support", sup),
				observe.F("duration_ms", float64(time.Since(start).Microseconds())/1000))
			return cf, weight, nil
		})
		if errors.Is(err, cfcache.ErrPersistenceFailure) && res.CF != nil {
			m.stats.PersistFailures++
			return nil
		}
		return err
	})
	if err != nil {
		m.detector.Reset()
		m.cf, m.weightCF = nil, nil
		return err
	}

	switch res.Status {
	case cfcache.MemoryHit:
		m.stats.MemoryHits++
	case cfcache.DiskHit:
		m.stats.DiskHits++
	default:
		m.stats.Builds++
	}
	m.cf, m.weightCF = res.CF, res.WeightCF
	return nil
}

// Put grids buf. With dopsf every unflagged sample is gridded as 1 to make
// the point spread function.
func (m *Machine) Put(ctx context.Context, buf *vis.Buffer, dopsf bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(toSky); err != nil {
		return err
	}
	if err := buf.Validate(); err != nil {
		return err
	}
	return m.mw.Run(ctx, observe.Op{Component: "ftmachine", Name: "put"}, func(ctx context.Context) error {
		if err := m.kernels(ctx, buf.PA); err != nil {
			return err
		}
		processed, skipped, err := m.gridBuffer(buf, dopsf)
		m.mw.Metrics().RecordRows(ctx, "put", processed, skipped)
		return err
	})
}

// Get degrids the model into buf.Model. Samples that are flagged, ignored
// or off the grid get zero.
func (m *Machine) Get(ctx context.Context, buf *vis.Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(toVis); err != nil {
		return err
	}
	if err := buf.Validate(); err != nil {
		return err
	}
	return m.mw.Run(ctx, observe.Op{Component: "ftmachine", Name: "get"}, func(ctx context.Context) error {
		if err := m.kernels(ctx, buf.PA); err != nil {
			return err
		}
		buf.ResetModel()
		processed, skipped, err := m.degridBuffer(buf)
		m.mw.Metrics().RecordRows(ctx, "get", processed, skipped)
		return err
	})
}

// FinalizeToSky transforms the grid to the image plane, removes the
// gridding taper, optionally divides by the summed weights and cuts away
// the padding. It returns the image and the summed weights per
// polarization and channel. The machine is finalized even on error.
func (m *Machine) FinalizeToSky(ctx context.Context, normalize bool) (*Image, [][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(toSky); err != nil {
		return nil, nil, err
	}

	var out *Image
	err := m.mw.Run(ctx, observe.Op{Component: "ftmachine", Name: "finalize_to_sky"}, func(ctx context.Context) error {
		var err error
		if out, err = m.toImage(ctx, m.grid, normalize); err != nil {
			return err
		}
		if m.weights != nil {
			if m.weightImage, err = m.toImage(ctx, m.weights, normalize); err != nil {
				return err
			}
			m.saveAvgPB(ctx)
		}
		return nil
	})
	sums := make([][]float64, len(m.sumWeight))
	for p := range sums {
		sums[p] = append([]float64(nil), m.sumWeight[p]...)
	}
	err = errors.Join(err, m.finish(ctx))
	if err != nil {
		return nil, nil, err
	}
	return out, sums, nil
}

// FinalizeToVis releases the lattice. The machine is finalized even on
// error.
func (m *Machine) FinalizeToVis(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(toVis); err != nil {
		return err
	}
	return m.mw.Run(ctx, observe.Op{Component: "ftmachine", Name: "finalize_to_vis"}, m.finish)
}

// finish flushes the cache index, closes the lattices and moves to
// StateFinalized. A cache write failure is counted, not returned.
func (m *Machine) finish(ctx context.Context) error {
	err := m.release()
	m.state = StateFinalized
	if ferr := m.cache.Flush(ctx); ferr != nil {
		if !errors.Is(ferr, cfcache.ErrPersistenceFailure) {
			return errors.Join(err, ferr)
		}
		m.stats.PersistFailures++
	}
	return err
}

// release closes the lattices, keeping their paging counts.
func (m *Machine) release() error {
	var errs []error
	for _, l := range []*lattice.Lattice{m.grid, m.weights} {
		if l == nil {
			continue
		}
		ls := l.Stats()
		if l == m.grid {
			m.stats.PageIns += ls.PageIns
			m.stats.PageOuts += ls.PageOuts
		}
		errs = append(errs, l.Close())
	}
	m.grid, m.weights = nil, nil
	return errors.Join(errs...)
}

// WeightImage returns the gridded weight image of the last mosaic
// FinalizeToSky, or nil.
func (m *Machine) WeightImage() *Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.weightImage
}

// AvgPB returns the average primary beam of the last mosaic FinalizeToSky,
// or nil.
func (m *Machine) AvgPB() *cfcache.AvgPB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avgPB
}

// saveAvgPB derives the peak-normalised beam from the first plane of the
// weight image and, with WithSavePA, caches it under the qualifier.
func (m *Machine) saveAvgPB(ctx context.Context) {
	wi := m.weightImage
	pb, err := cfcache.NewAvgPB(wi.NX, wi.NY, wi.Coords)
	if err != nil {
		return
	}
	peak := 0.0
	for y := range wi.NY {
		for x := range wi.NX {
			v := wi.At(x, y, 0, 0)
			a := math.Hypot(float64(real(v)), float64(imag(v)))
			pb.Set(x, y, float32(a))
			peak = math.Max(peak, a)
		}
	}
	if peak > 0 {
		for i := range pb.Pixels {
			pb.Pixels[i] /= float32(peak)
		}
	}
	m.avgPB = pb
	if !m.cfg.savePA {
		return
	}
	if err := m.cache.SaveAvgPB(ctx, m.cfg.qualifier, pb); err != nil {
		m.stats.PersistFailures++
	}
}
