package lattice

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// TileKey addresses one tile: its polarization and channel plane and its
// tile column and row.
type TileKey struct {
	Pol, Chan int
	X, Y      int
}

func (k TileKey) String() string {
	return fmt.Sprintf("tile:%d:%d:%d:%d", k.Pol, k.Chan, k.X, k.Y)
}

// Bytes returns a fixed-width big-endian encoding that sorts tiles by
// plane, then row, then column.
func (k TileKey) Bytes() []byte {
	b := make([]byte, 1+4*4)
	b[0] = 't'
	binary.BigEndian.PutUint32(b[1:], uint32(k.Pol))
	binary.BigEndian.PutUint32(b[5:], uint32(k.Chan))
	binary.BigEndian.PutUint32(b[9:], uint32(k.Y))
	binary.BigEndian.PutUint32(b[13:], uint32(k.X))
	return b
}

// TileStore holds tiles paged out of a Lattice.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: Save must not retain data; Load returns a slice the caller owns.
// - Errors: Load returns (nil, false, nil) for a tile never saved.
type TileStore interface {
	// Load returns the saved samples of a tile.
	Load(key TileKey) ([]complex64, bool, error)

	// Save stores the samples of a tile, replacing any earlier copy.
	Save(key TileKey, data []complex64) error

	// Close releases the store. Later calls fail with ErrClosed.
	Close() error
}

// MemoryStore is an in-memory TileStore.
type MemoryStore struct {
	mu     sync.RWMutex
	tiles  map[TileKey][]complex64
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tiles: make(map[TileKey][]complex64)}
}

// Load returns a copy of the saved tile.
func (s *MemoryStore) Load(key TileKey) ([]complex64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	data, ok := s.tiles[key]
	if !ok {
		return nil, false, nil
	}
	return append([]complex64(nil), data...), true, nil
}

// Save stores a copy of data.
func (s *MemoryStore) Save(key TileKey, data []complex64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tiles[key] = append([]complex64(nil), data...)
	return nil
}

// Len returns the number of saved tiles.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tiles)
}

// Close drops every saved tile.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.tiles = nil
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ TileStore = (*MemoryStore)(nil)
