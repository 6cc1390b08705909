package lattice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBStore keeps paged-out tiles in a LevelDB database. Samples are
// stored as little-endian float32 (real, imaginary) pairs.
type LevelDBStore struct {
	db      *leveldb.DB
	scratch string
}

// OpenLevelDB opens or creates a tile database at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	}
	db, err := leveldb.OpenFile(path, opt)
	if err != nil {
		return nil, fmt.Errorf("lattice: open %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

// OpenScratchLevelDB creates a fresh tile database in a new directory under
// dir. Close removes the directory.
func OpenScratchLevelDB(dir string) (*LevelDBStore, error) {
	path, err := os.MkdirTemp(dir, "tiles-*")
	if err != nil {
		return nil, fmt.Errorf("lattice: scratch directory: %w", err)
	}
	s, err := OpenLevelDB(path)
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, err
	}
	s.scratch = path
	return s, nil
}

// OpenMemoryLevelDB opens a tile database held entirely in memory.
func OpenMemoryLevelDB() (*LevelDBStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("lattice: open memory database: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

// Load reads a tile.
func (s *LevelDBStore) Load(key TileKey) ([]complex64, bool, error) {
	raw, err := s.db.Get(key.Bytes(), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if errors.Is(err, leveldb.ErrClosed) {
		return nil, false, ErrClosed
	}
	if err != nil {
		return nil, false, fmt.Errorf("lattice: load %s: %w", key, err)
	}
	if len(raw)%8 != 0 {
		return nil, false, fmt.Errorf("lattice: load %s: %d bytes is not a whole number of samples", key, len(raw))
	}
	data := make([]complex64, len(raw)/8)
	for i := range data {
		re := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i+4:]))
		data[i] = complex(re, im)
	}
	return data, true, nil
}

// Save writes a tile.
func (s *LevelDBStore) Save(key TileKey, data []complex64) error {
	raw := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[8*i:], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(raw[8*i+4:], math.Float32bits(imag(v)))
	}
	err := s.db.Put(key.Bytes(), raw, nil)
	if errors.Is(err, leveldb.ErrClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("lattice: save %s: %w", key, err)
	}
	return nil
}

// Close closes the database, removing it if it is a scratch database.
func (s *LevelDBStore) Close() error {
	err := s.db.Close()
	if s.scratch != "" {
		err = errors.Join(err, os.RemoveAll(s.scratch))
		s.scratch = ""
	}
	return err
}

var _ TileStore = (*LevelDBStore)(nil)
