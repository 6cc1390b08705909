// Package coords holds the small amount of coordinate bookkeeping the
// gridding core needs: a linear direction coordinate, its Fourier conjugate,
// oversampled kernel coordinates and padded grid sizes.
package coords
