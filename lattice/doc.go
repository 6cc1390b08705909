// Package lattice provides a paged complex uv-grid.
//
// A Lattice holds nx by ny pixels for each polarization and channel plane,
// split into square tiles. Only a bounded number of tiles stay resident;
// the least recently used tile is written to a TileStore when it is dirty
// and read back on the next access. Callers address pixels, never tiles, so
// a kernel footprint that straddles a tile boundary needs no special care.
//
// Two stores are provided: MemoryStore keeps evicted tiles in a map and
// LevelDBStore keeps them in a LevelDB database on disk (or in memory for
// tests).
package lattice
