// Package cfstore defines the convolution-function store: one oversampled
// kernel array together with its coordinate, per-plane support radii,
// sampling factor and the parallactic angle it was computed for.
//
// A Store is immutable once built. Kernels are laid out as
// [w-plane][Mueller element][y][x] with the kernel origin at the array
// centre. The package also provides the binary codec used for the on-disk
// cache: a fixed header, a zstd-compressed payload and an xxhash checksum.
package cfstore
