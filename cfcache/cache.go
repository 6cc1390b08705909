package cfcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/cfgrid/cfstore"
	"github.com/jonwraymond/cfgrid/observe"
	"github.com/jonwraymond/cfgrid/parangle"
	"github.com/jonwraymond/cfgrid/resilience"
)

// Query describes a Locate request.
type Query struct {
	// NW is the number of w-planes wanted, starting at plane 0.
	NW int
	// PA is the parallactic angle in radians.
	PA float64
	// DPA is the bucketing tolerance; <= 0 uses the detector's tolerance.
	DPA float64
	// Frequency is the reference frequency (Hz) the kernels are built for.
	// Kernels of another frequency never match.
	Frequency float64
	// Increment, when non-zero, is the kernel pixel increment the caller
	// grids with. A cached stack with another increment is
	// ErrCorruptCacheEntry.
	Increment [2]float64
	// MosaicX and MosaicY select a mosaic pointing offset.
	MosaicX, MosaicY int
	// WantWeight also requires the weight kernels of the same stack.
	WantWeight bool
}

func (q Query) mosaic() cfstore.Offset {
	return cfstore.Offset{X: q.MosaicX, Y: q.MosaicY}
}

// Result is the outcome of Locate. CF and WeightCF are shared with the
// cache and must not be modified.
type Result struct {
	Status   Status
	CF       *cfstore.Store
	WeightCF *cfstore.Store
}

// Stats is a snapshot of cache counters.
type Stats struct {
	MemoryHits      int64
	DiskHits        int64
	Misses          int64
	Inserts         int64
	PersistFailures int64
	Evictions       int64
	Entries         int
	Slots           int
	IndexRows       int
}

// Cache is a two-tier convolution-function cache. Methods are safe for
// concurrent use; memory hits proceed in parallel, inserts and disk
// promotion are serialised.
type Cache struct {
	mu       sync.RWMutex
	disk     Disk
	detector *parangle.Detector
	table    *Table
	slots    []float64
	dirty    bool
	memory   *memoryTier

	indexLoaded atomic.Bool
	builds      singleflight.Group

	logger  observe.Logger
	metrics observe.Metrics
	retry   *resilience.Retry

	memoryHits      atomic.Int64
	diskHits        atomic.Int64
	misses          atomic.Int64
	inserts         atomic.Int64
	persistFailures atomic.Int64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	disk       Disk
	detector   *parangle.Detector
	maxEntries int
	logger     observe.Logger
	metrics    observe.Metrics
	retry      *resilience.Retry
}

// WithDir persists to a directory.
func WithDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.disk = NewDirDisk(dir)
		}
	}
}

// WithDisk persists through d.
func WithDisk(d Disk) Option {
	return func(o *options) { o.disk = d }
}

// WithDetector sets the detector whose tolerance buckets inserts.
func WithDetector(d *parangle.Detector) Option {
	return func(o *options) { o.detector = d }
}

// WithMaxEntries bounds the memory tier in w-planes (default DefaultMaxEntries).
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRetry retries disk writes with r.
func WithRetry(r *resilience.Retry) Option {
	return func(o *options) { o.retry = r }
}

// New creates a Cache. Nothing is read from disk until first use.
func New(opts ...Option) (*Cache, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = observe.NopLogger()
	}
	if o.metrics == nil {
		o.metrics = observe.NopMetrics()
	}
	if o.retry == nil {
		o.retry = resilience.NewRetry(resilience.RetryConfig{})
	}

	mem, err := newMemoryTier(o.maxEntries)
	if err != nil {
		return nil, fmt.Errorf("cfcache: memory tier: %w", err)
	}
	return &Cache{
		disk:     o.disk,
		detector: o.detector,
		table:    NewTable(),
		memory:   mem,
		logger:   o.logger.With(observe.F("component", "cfcache")),
		metrics:  o.metrics,
		retry:    o.retry,
	}, nil
}

// SetCacheDir points the cache at dir. An empty dir disables persistence.
// The index is read on the next use.
func (c *Cache) SetCacheDir(dir string) {
	var d Disk
	if dir != "" {
		d = NewDirDisk(dir)
	}
	c.SetDisk(d)
}

// SetDisk replaces the persistence backend. The index is read on the next use.
func (c *Cache) SetDisk(d Disk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disk = d
	c.table = NewTable()
	c.dirty = false
	c.indexLoaded.Store(false)
}

// SetPAChangeDetector sets the detector whose tolerance buckets inserts and
// queries without their own tolerance.
func (c *Cache) SetPAChangeDetector(d *parangle.Detector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detector = d
}

func (c *Cache) tolerance() float64 {
	if c.detector != nil {
		return c.detector.Tolerance()
	}
	return parangle.DefaultTolerance
}

// Locate looks up planes [0, q.NW) at q.PA. A MemoryHit does no disk I/O.
// Disk read errors and corrupt entries are returned as errors.
func (c *Cache) Locate(ctx context.Context, q Query) (Result, error) {
	if err := c.validate(q); err != nil {
		return Result{}, err
	}
	if err := c.ensureIndex(ctx); err != nil {
		return Result{}, err
	}

	c.mu.RLock()
	res, ok := c.fromMemory(q)
	c.mu.RUnlock()
	if ok {
		return c.found(ctx, q, res)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if res, ok := c.fromMemory(q); ok {
		return c.found(ctx, q, res)
	}
	res, err := c.fromDisk(ctx, q)
	if err != nil {
		return Result{}, err
	}
	return c.found(ctx, q, res)
}

// found counts a lookup outcome and checks a hit against the query
// geometry.
func (c *Cache) found(ctx context.Context, q Query, res Result) (Result, error) {
	if res.Status != NotCached {
		if err := checkIncrement(q, res.CF, res.WeightCF); err != nil {
			c.logger.Error(ctx, "cached kernel geometry does not match query", observe.Err(err))
			return Result{}, err
		}
	}
	c.hit(ctx, res.Status)
	return res, nil
}

func checkIncrement(q Query, stores ...*cfstore.Store) error {
	if q.Increment == [2]float64{} {
		return nil
	}
	for _, s := range stores {
		if s == nil {
			continue
		}
		got := s.Coords().Increment
		for i := range got {
			if math.Abs(got[i]-q.Increment[i]) > 1e-9*math.Abs(q.Increment[i]) {
				return fmt.Errorf("%w: %s kernel increment %v, query wants %v",
					ErrCorruptCacheEntry, s.Role(), got, q.Increment)
			}
		}
	}
	return nil
}

func (c *Cache) validate(q Query) error {
	if err := parangle.Validate(q.PA); err != nil {
		return err
	}
	if q.NW < 1 {
		return fmt.Errorf("%w: nW %d", ErrInvalidQuery, q.NW)
	}
	if math.IsNaN(q.DPA) || math.IsInf(q.DPA, 0) {
		return fmt.Errorf("%w: dPA %v", ErrInvalidQuery, q.DPA)
	}
	if err := validFrequency(q.Frequency); err != nil {
		return err
	}
	for _, inc := range q.Increment {
		if math.IsNaN(inc) || math.IsInf(inc, 0) {
			return fmt.Errorf("%w: increment %v", ErrInvalidQuery, q.Increment)
		}
	}
	return nil
}

func validFrequency(f float64) error {
	if !(f > 0) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: frequency %v", ErrInvalidQuery, f)
	}
	return nil
}

func (c *Cache) hit(ctx context.Context, s Status) {
	switch s {
	case MemoryHit:
		c.memoryHits.Add(1)
	case DiskHit:
		c.diskHits.Add(1)
	default:
		c.misses.Add(1)
	}
	c.metrics.RecordLookup(ctx, s.String())
}

// bucket returns the slot closest to pa within dPA. Caller holds mu.
func (c *Cache) bucket(pa, dPA float64) (int, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, s := range c.slots {
		if !parangle.Within(s, pa, dPA) {
			continue
		}
		if d := math.Abs(s - pa); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

func (c *Cache) queryTolerance(q Query) float64 {
	if q.DPA > 0 {
		return q.DPA
	}
	return c.tolerance()
}

// fromMemory assembles the requested stacks from the LRU. Caller holds mu.
func (c *Cache) fromMemory(q Query) (Result, bool) {
	slot, ok := c.bucket(q.PA, c.queryTolerance(q))
	if !ok {
		return Result{}, false
	}
	cf, ok := c.memory.stack(slot, q.Frequency, cfstore.RoleCF, q.mosaic(), q.NW)
	if !ok {
		return Result{}, false
	}
	res := Result{Status: MemoryHit, CF: cf}
	if q.WantWeight {
		if res.WeightCF, ok = c.memory.stack(slot, q.Frequency, cfstore.RoleWeight, q.mosaic(), q.NW); !ok {
			return Result{}, false
		}
	}
	return res, true
}

// fromDisk reads the requested stacks through the index and promotes every
// plane to memory. Caller holds mu for writing.
func (c *Cache) fromDisk(ctx context.Context, q Query) (Result, error) {
	if c.disk == nil {
		return Result{Status: NotCached}, nil
	}
	slot, ok := c.bucket(q.PA, c.queryTolerance(q))
	if !ok {
		return Result{Status: NotCached}, nil
	}

	roles := []cfstore.Role{cfstore.RoleCF}
	if q.WantWeight {
		roles = append(roles, cfstore.RoleWeight)
	}

	rows := make(map[cfstore.Role][]Entry, len(roles))
	for _, role := range roles {
		for w := range q.NW {
			e, ok := c.table.Find(c.slots[slot], q.Frequency, role, q.mosaic(), w)
			if !ok {
				return Result{Status: NotCached}, nil
			}
			rows[role] = append(rows[role], e)
		}
	}

	res := Result{Status: DiskHit}
	loaded := make(map[string]*cfstore.Store)
	for _, role := range roles {
		parts := make([]*cfstore.Store, q.NW)
		for w, e := range rows[role] {
			s, ok := loaded[e.File]
			if !ok {
				var err error
				if s, err = c.readKernel(ctx, e); err != nil {
					return Result{}, err
				}
				loaded[e.File] = s
			}
			plane, err := s.Slice(w)
			if err != nil {
				return Result{}, fmt.Errorf("%w: %s: plane %d: %w", ErrCorruptCacheEntry, e.File, w, err)
			}
			parts[w] = plane
			c.memory.add(planeKey{slot: slot, freq: q.Frequency, role: role, plane: w, mosaic: q.mosaic()}, plane)
		}
		stack, err := cfstore.Stack(parts)
		if err != nil {
			return Result{}, fmt.Errorf("%w: assembling w-stack: %w", ErrCorruptCacheEntry, err)
		}
		if role == cfstore.RoleCF {
			res.CF = stack
		} else {
			res.WeightCF = stack
		}
	}

	c.logger.Info(ctx, "promoted convolution functions from disk",
		observe.F("pa", c.slots[slot]), observe.F("nw", q.NW), observe.F("files", len(loaded)))
	return res, nil
}

// readKernel reads the file behind e and checks it against the index row.
func (c *Cache) readKernel(ctx context.Context, e Entry) (*cfstore.Store, error) {
	s, err := c.disk.ReadKernel(ctx, e.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s: %w", ErrCorruptCacheEntry, e.File, err)
		}
		c.logger.Error(ctx, "reading cached kernel failed", observe.F("file", e.File), observe.Err(err))
		return nil, err
	}
	shape := s.Kernel().Shape()
	if [4]int(shape) != e.Shape || s.Role() != e.Role || s.Frequency() != e.Frequency {
		err := fmt.Errorf("%w: %s: shape %v role %s at %g Hz, index says %v role %s at %g Hz",
			ErrCorruptCacheEntry, e.File, shape, s.Role(), s.Frequency(), e.Shape, e.Role, e.Frequency)
		c.logger.Error(ctx, "cached kernel does not match index", observe.F("file", e.File), observe.Err(err))
		return nil, err
	}
	if e.WPlane < s.FirstPlane() || e.WPlane >= s.FirstPlane()+s.NW() {
		return nil, fmt.Errorf("%w: %s: w-plane %d outside [%d,%d)",
			ErrCorruptCacheEntry, e.File, e.WPlane, s.FirstPlane(), s.FirstPlane()+s.NW())
	}
	return s, nil
}

// ensureIndex loads the disk index once and checks that every referenced
// kernel file exists.
func (c *Cache) ensureIndex(ctx context.Context) error {
	if c.indexLoaded.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexLoaded.Load() {
		return nil
	}
	if c.disk == nil {
		c.indexLoaded.Store(true)
		return nil
	}

	t, err := c.disk.ReadIndex(ctx)
	if err != nil {
		c.logger.Error(ctx, "reading cache index failed", observe.Err(err))
		return err
	}
	for _, f := range t.Files() {
		if err := c.disk.Stat(ctx, f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("%w: index references missing file %s", ErrCorruptCacheEntry, f)
			} else {
				err = fmt.Errorf("cfcache: stat %s: %w", f, err)
			}
			c.logger.Error(ctx, "cache index is inconsistent", observe.Err(err))
			return err
		}
	}

	c.table = t
	for _, pa := range t.PAs() {
		if !containsExact(c.slots, pa) {
			c.slots = append(c.slots, pa)
		}
	}
	c.indexLoaded.Store(true)
	c.logger.Debug(ctx, "cache index loaded", observe.F("rows", t.Len()), observe.F("slots", len(c.slots)))
	return nil
}

func containsExact(xs []float64, v float64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// CacheConvFunction inserts every plane of cfs under the slot of pa,
// bucketed with the detector's tolerance, and under the frequency of cfs.
// With savePA and a cache directory, the store is also written to
// "<qualifier>-<n>.cf" and indexed; the index reaches disk on Flush. A
// failed write returns an error wrapping ErrPersistenceFailure while the
// memory entry stays usable.
func (c *Cache) CacheConvFunction(ctx context.Context, pa float64, cfs *cfstore.Store, qualifier string, savePA bool) error {
	return c.insert(ctx, pa, 0, cfs, qualifier, savePA)
}

// insert is CacheConvFunction with an explicit bucketing tolerance; dPA <= 0
// uses the detector's.
func (c *Cache) insert(ctx context.Context, pa, dPA float64, cfs *cfstore.Store, qualifier string, savePA bool) error {
	if err := parangle.Validate(pa); err != nil {
		return err
	}
	if cfs == nil {
		return fmt.Errorf("%w: nil store", ErrInvalidQuery)
	}
	if err := validFrequency(cfs.Frequency()); err != nil {
		return err
	}
	if savePA {
		if err := validQualifier(qualifier); err != nil {
			return err
		}
	}
	if err := c.ensureIndex(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if dPA <= 0 {
		dPA = c.tolerance()
	}
	slot, ok := c.bucket(pa, dPA)
	if !ok {
		c.slots = append(c.slots, pa)
		slot = len(c.slots) - 1
	}
	for w := cfs.FirstPlane(); w < cfs.FirstPlane()+cfs.NW(); w++ {
		plane, err := cfs.Slice(w)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		c.memory.add(planeKey{slot: slot, freq: cfs.Frequency(), role: cfs.Role(), plane: w, mosaic: cfs.Mosaic()}, plane)
	}
	c.inserts.Add(1)
	c.logger.Debug(ctx, "convolution functions cached",
		observe.F("pa", c.slots[slot]), observe.F("first_plane", cfs.FirstPlane()),
		observe.F("nw", cfs.NW()), observe.F("role", cfs.Role().String()))

	if !savePA || c.disk == nil {
		return nil
	}

	name := fmt.Sprintf("%s-%d.cf", qualifier, c.table.NextFile)
	c.table.NextFile++
	err := c.retry.Execute(ctx, func(ctx context.Context) error {
		return c.disk.WriteKernel(ctx, name, cfs)
	})
	if err != nil {
		return c.persistFailed(ctx, "kernel", name, err)
	}
	c.table.Entries = append(c.table.Entries, rowsFor(c.slots[slot], cfs, name)...)
	c.dirty = true
	return nil
}

func (c *Cache) persistFailed(ctx context.Context, target, name string, err error) error {
	c.persistFailures.Add(1)
	c.metrics.RecordPersistFailure(ctx, target)
	c.logger.Warn(ctx, "cache write failed; continuing without persistence",
		observe.F("target", target), observe.F("file", name), observe.Err(err))
	return fmt.Errorf("%w: %s %s: %w", ErrPersistenceFailure, target, name, err)
}

// Flush atomically rewrites aux.dat when rows were added since the last
// flush. It is a no-op without a directory or without new rows.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disk == nil || !c.dirty {
		return nil
	}
	snapshot := c.table.clone()
	err := c.retry.Execute(ctx, func(ctx context.Context) error {
		return c.disk.WriteIndex(ctx, snapshot)
	})
	if err != nil {
		return c.persistFailed(ctx, "index", IndexFile, err)
	}
	c.dirty = false
	c.logger.Debug(ctx, "cache index flushed", observe.F("rows", snapshot.Len()))
	return nil
}

// LoadAvgPB reads the average primary beam stored under qualifier.
func (c *Cache) LoadAvgPB(ctx context.Context, qualifier string) (*AvgPB, error) {
	if err := validQualifier(qualifier); err != nil {
		return nil, err
	}
	c.mu.RLock()
	d := c.disk
	c.mu.RUnlock()
	if d == nil {
		return nil, fmt.Errorf("%w: avg PB %q: %w", ErrNotFound, qualifier, ErrNoCacheDir)
	}
	return d.ReadImage(ctx, avgPBName(qualifier))
}

// SaveAvgPB writes pb under qualifier. Failures wrap ErrPersistenceFailure.
func (c *Cache) SaveAvgPB(ctx context.Context, qualifier string, pb *AvgPB) error {
	if err := validQualifier(qualifier); err != nil {
		return err
	}
	if pb == nil {
		return fmt.Errorf("%w: nil avg PB", ErrInvalidQuery)
	}
	c.mu.RLock()
	d := c.disk
	c.mu.RUnlock()
	name := avgPBName(qualifier)
	if d == nil {
		return c.persistFailed(ctx, "avgpb", name, ErrNoCacheDir)
	}
	err := c.retry.Execute(ctx, func(ctx context.Context) error {
		return d.WriteImage(ctx, name, pb)
	})
	if err != nil {
		return c.persistFailed(ctx, "avgpb", name, err)
	}
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		MemoryHits:      c.memoryHits.Load(),
		DiskHits:        c.diskHits.Load(),
		Misses:          c.misses.Load(),
		Inserts:         c.inserts.Load(),
		PersistFailures: c.persistFailures.Load(),
		Evictions:       c.memory.evictions.Load(),
		Entries:         c.memory.len(),
		Slots:           len(c.slots),
		IndexRows:       c.table.Len(),
	}
}

// Slots returns the parallactic angles of the known slots.
func (c *Cache) Slots() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]float64, len(c.slots))
	copy(out, c.slots)
	return out
}
