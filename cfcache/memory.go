package cfcache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/jonwraymond/cfgrid/cfstore"
)

// DefaultMaxEntries bounds the memory tier when no size is configured.
const DefaultMaxEntries = 4096

// memoryTier holds single-plane stores in an LRU and memoises assembled
// stacks until one of their planes is replaced or evicted.
type memoryTier struct {
	planes    *lru.Cache
	evictions atomic.Int64

	memoMu sync.Mutex
	memo   map[stackKey]*cfstore.Store
}

func newMemoryTier(size int) (*memoryTier, error) {
	if size <= 0 {
		size = DefaultMaxEntries
	}
	m := &memoryTier{memo: make(map[stackKey]*cfstore.Store)}
	planes, err := lru.NewWithEvict(size, func(k, _ any) {
		m.evictions.Add(1)
		if pk, ok := k.(planeKey); ok {
			m.forget(pk)
		}
	})
	if err != nil {
		return nil, err
	}
	m.planes = planes
	return m, nil
}

// add inserts a plane, replacing any previous version.
func (m *memoryTier) add(k planeKey, s *cfstore.Store) {
	m.forget(k)
	m.planes.Add(k, s)
}

// stack returns the planes [0, nW) for (slot, freq, role, mosaic) as one
// store, or false when any plane is missing.
func (m *memoryTier) stack(slot int, freq float64, role cfstore.Role, mosaic cfstore.Offset, nW int) (*cfstore.Store, bool) {
	parts := make([]*cfstore.Store, nW)
	for w := range nW {
		v, ok := m.planes.Get(planeKey{slot: slot, freq: freq, role: role, plane: w, mosaic: mosaic})
		if !ok {
			return nil, false
		}
		parts[w] = v.(*cfstore.Store)
	}

	sk := stackKey{slot: slot, freq: freq, role: role, nW: nW, mosaic: mosaic}
	m.memoMu.Lock()
	defer m.memoMu.Unlock()
	if s, ok := m.memo[sk]; ok {
		return s, true
	}
	s, err := cfstore.Stack(parts)
	if err != nil {
		return nil, false
	}
	m.memo[sk] = s
	return s, true
}

// forget drops memoised stacks that include plane k.
func (m *memoryTier) forget(k planeKey) {
	m.memoMu.Lock()
	defer m.memoMu.Unlock()
	for sk := range m.memo {
		if sk.slot == k.slot && sk.freq == k.freq && sk.role == k.role && sk.mosaic == k.mosaic && k.plane < sk.nW {
			delete(m.memo, sk)
		}
	}
}

func (m *memoryTier) len() int { return m.planes.Len() }
