package lattice

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const (
	// DefaultTileSize is the tile edge in pixels.
	DefaultTileSize = 64
	// DefaultMaxTiles bounds the resident tiles when no limit is configured.
	DefaultMaxTiles = 256
)

// Shape is the extent of a lattice.
type Shape struct {
	NX, NY, NPol, NChan int
}

func (s Shape) valid() bool {
	return s.NX > 0 && s.NY > 0 && s.NPol > 0 && s.NChan > 0
}

// Stats reports paging activity.
type Stats struct {
	// PageIns counts tiles read back from the store.
	PageIns int64
	// PageOuts counts dirty tiles written to the store.
	PageOuts int64
	// Evictions counts tiles dropped from the resident set.
	Evictions int64
	// Resident is the number of tiles in memory.
	Resident int
	// MaxTiles is the resident bound.
	MaxTiles int
}

type tile struct {
	data    []complex64
	dirty   bool
	evicted bool
}

// Option configures a Lattice.
type Option func(*Lattice)

// WithTileSize sets the tile edge in pixels.
func WithTileSize(n int) Option {
	return func(l *Lattice) { l.tileSize = n }
}

// WithMaxTiles bounds the number of resident tiles.
func WithMaxTiles(n int) Option {
	return func(l *Lattice) { l.maxTiles = n }
}

// WithStore sets where evicted tiles go. The lattice closes it on Close.
func WithStore(s TileStore) Option {
	return func(l *Lattice) { l.store = s }
}

// Lattice is a tiled complex grid of Shape pixels. It is safe for
// concurrent use, though gridding normally drives it from one goroutine.
type Lattice struct {
	mu       sync.Mutex
	shape    Shape
	tileSize int
	maxTiles int
	tilesX   int
	tilesY   int
	store    TileStore
	resident *lru.Cache

	last    *tile
	lastKey TileKey

	pageErr error
	stats   Stats
	closed  bool
}

// New allocates a lattice. Tiles start at zero and are created on first
// touch.
func New(shape Shape, opts ...Option) (*Lattice, error) {
	if !shape.valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidShape, shape)
	}
	l := &Lattice{
		shape:    shape,
		tileSize: DefaultTileSize,
		maxTiles: DefaultMaxTiles,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tileSize <= 0 || l.maxTiles <= 0 {
		return nil, fmt.Errorf("%w: tile size %d, %d resident tiles", ErrInvalidShape, l.tileSize, l.maxTiles)
	}
	if l.store == nil {
		l.store = NewMemoryStore()
	}
	l.tilesX = (shape.NX + l.tileSize - 1) / l.tileSize
	l.tilesY = (shape.NY + l.tileSize - 1) / l.tileSize

	resident, err := lru.NewWithEvict(l.maxTiles, l.pageOut)
	if err != nil {
		return nil, err
	}
	l.resident = resident
	l.stats.MaxTiles = l.maxTiles
	return l, nil
}

// pageOut runs while l.mu is held, from inside the LRU.
func (l *Lattice) pageOut(k, v any) {
	key, t := k.(TileKey), v.(*tile)
	t.evicted = true
	l.stats.Evictions++
	if !t.dirty {
		return
	}
	if err := l.store.Save(key, t.data); err != nil {
		if l.pageErr == nil {
			l.pageErr = fmt.Errorf("%w: page out %s: %w", ErrPaging, key, err)
		}
		return
	}
	l.stats.PageOuts++
}

// Shape returns the lattice extent.
func (l *Lattice) Shape() Shape { return l.shape }

// TileSize returns the tile edge in pixels.
func (l *Lattice) TileSize() int { return l.tileSize }

// Tiles returns the number of tiles per plane along x and y.
func (l *Lattice) Tiles() (int, int) { return l.tilesX, l.tilesY }

// fetch returns the resident tile for key, paging it in or creating it.
func (l *Lattice) fetch(key TileKey) (*tile, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if l.pageErr != nil {
		return nil, l.pageErr
	}
	if l.last != nil && !l.last.evicted && l.lastKey == key {
		return l.last, nil
	}
	if v, ok := l.resident.Get(key); ok {
		t := v.(*tile)
		l.last, l.lastKey = t, key
		return t, nil
	}

	data, ok, err := l.store.Load(key)
	if err != nil {
		return nil, fmt.Errorf("%w: page in %s: %w", ErrPaging, key, err)
	}
	n := l.tileSize * l.tileSize
	switch {
	case !ok:
		data = make([]complex64, n)
	case len(data) != n:
		return nil, fmt.Errorf("%w: page in %s: %d samples, want %d", ErrPaging, key, len(data), n)
	default:
		l.stats.PageIns++
	}
	t := &tile{data: data}
	l.resident.Add(key, t)
	if l.pageErr != nil {
		return nil, l.pageErr
	}
	l.last, l.lastKey = t, key
	return t, nil
}

func (l *Lattice) locate(x, y, pol, ch int) (TileKey, int, error) {
	s := l.shape
	if x < 0 || x >= s.NX || y < 0 || y >= s.NY || pol < 0 || pol >= s.NPol || ch < 0 || ch >= s.NChan {
		return TileKey{}, 0, fmt.Errorf("%w: (%d,%d,%d,%d) in %+v", ErrOutOfRange, x, y, pol, ch, s)
	}
	ts := l.tileSize
	key := TileKey{Pol: pol, Chan: ch, X: x / ts, Y: y / ts}
	return key, (y%ts)*ts + x%ts, nil
}

// Contains reports whether pixel (x, y) lies on the lattice.
func (l *Lattice) Contains(x, y int) bool {
	return x >= 0 && x < l.shape.NX && y >= 0 && y < l.shape.NY
}

// At returns one pixel.
func (l *Lattice) At(x, y, pol, ch int) (complex64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, i, err := l.locate(x, y, pol, ch)
	if err != nil {
		return 0, err
	}
	t, err := l.fetch(key)
	if err != nil {
		return 0, err
	}
	return t.data[i], nil
}

// Set stores one pixel.
func (l *Lattice) Set(x, y, pol, ch int, v complex64) error {
	return l.update(x, y, pol, ch, func(*complex64) complex64 { return v })
}

// Add accumulates v into one pixel.
func (l *Lattice) Add(x, y, pol, ch int, v complex64) error {
	return l.update(x, y, pol, ch, func(p *complex64) complex64 { return *p + v })
}

func (l *Lattice) update(x, y, pol, ch int, fn func(*complex64) complex64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, i, err := l.locate(x, y, pol, ch)
	if err != nil {
		return err
	}
	t, err := l.fetch(key)
	if err != nil {
		return err
	}
	t.data[i] = fn(&t.data[i])
	t.dirty = true
	return nil
}

// Row copies row y of plane (pol, ch) into dst, which must hold NX samples.
func (l *Lattice) Row(y, pol, ch int, dst []complex128) error {
	return l.line(y, pol, ch, dst, true, false)
}

// SetRow overwrites row y of plane (pol, ch) from src.
func (l *Lattice) SetRow(y, pol, ch int, src []complex128) error {
	return l.line(y, pol, ch, src, true, true)
}

// Col copies column x of plane (pol, ch) into dst, which must hold NY samples.
func (l *Lattice) Col(x, pol, ch int, dst []complex128) error {
	return l.line(x, pol, ch, dst, false, false)
}

// SetCol overwrites column x of plane (pol, ch) from src.
func (l *Lattice) SetCol(x, pol, ch int, src []complex128) error {
	return l.line(x, pol, ch, src, false, true)
}

// line walks one row (horizontal) or column, a tile at a time.
func (l *Lattice) line(at, pol, ch int, buf []complex128, horizontal, write bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	length, across := l.shape.NY, l.shape.NX
	if horizontal {
		length, across = l.shape.NX, l.shape.NY
	}
	if len(buf) != length {
		return fmt.Errorf("%w: line of %d samples, want %d", ErrOutOfRange, len(buf), length)
	}
	if at < 0 || at >= across || pol < 0 || pol >= l.shape.NPol || ch < 0 || ch >= l.shape.NChan {
		return fmt.Errorf("%w: line %d of plane (%d,%d)", ErrOutOfRange, at, pol, ch)
	}

	ts := l.tileSize
	for start := 0; start < length; start += ts {
		key := TileKey{Pol: pol, Chan: ch, X: start / ts, Y: at / ts}
		if !horizontal {
			key.X, key.Y = at/ts, start/ts
		}
		t, err := l.fetch(key)
		if err != nil {
			return err
		}
		for i := start; i < min(start+ts, length); i++ {
			off := (at%ts)*ts + i%ts
			if !horizontal {
				off = (i%ts)*ts + at%ts
			}
			if write {
				t.data[off] = complex64(buf[i])
			} else {
				buf[i] = complex128(t.data[off])
			}
		}
		if write {
			t.dirty = true
		}
	}
	return nil
}

// Flush writes every dirty resident tile to the store. Tiles stay resident.
func (l *Lattice) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

func (l *Lattice) flush() error {
	if l.closed {
		return ErrClosed
	}
	var errs []error
	if l.pageErr != nil {
		errs = append(errs, l.pageErr)
	}
	for _, k := range l.resident.Keys() {
		v, ok := l.resident.Peek(k)
		if !ok {
			continue
		}
		t := v.(*tile)
		if !t.dirty {
			continue
		}
		key := k.(TileKey)
		if err := l.store.Save(key, t.data); err != nil {
			errs = append(errs, fmt.Errorf("%w: flush %s: %w", ErrPaging, key, err))
			continue
		}
		t.dirty = false
		l.stats.PageOuts++
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of paging activity.
func (l *Lattice) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	if !l.closed {
		s.Resident = l.resident.Len()
	}
	return s
}

// Close flushes the lattice and closes its store. It is idempotent.
func (l *Lattice) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	err := l.flush()
	l.closed = true
	l.last = nil
	l.pageErr = nil
	// Tiles are already saved; purging must not page them out again.
	for _, k := range l.resident.Keys() {
		if v, ok := l.resident.Peek(k); ok {
			v.(*tile).dirty = false
		}
	}
	l.resident.Purge()
	return errors.Join(err, l.store.Close())
}
