// Package convfunc computes oversampled convolution functions.
//
// Every builder follows the same recipe: fill an image-plane screen (w-term
// phase, primary beam, spheroidal taper), Fourier transform it to the uv
// plane, normalise by the peak, find the support radius of each plane, scale
// plane 0 to unit sum and trim the kernel to its support. The result is a
// cfstore.Store ready for the cache.
//
// Gridding with these kernels tapers the image by the spheroid; divide the
// dirty image by GridCorrection to undo it.
package convfunc
