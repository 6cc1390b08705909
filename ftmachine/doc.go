// Package ftmachine grids visibilities onto a paged uv-lattice and degrids
// model visibilities from it.
//
// A Machine is built around one Variant (plain spheroidal gridding,
// w-projection or mosaic primary-beam gridding) and one cfcache.Cache. Its
// life cycle is
//
//	Uninitialized -> InitializeToSky / InitializeToVis -> Active
//	Active -> Put / Get (repeated) -> FinalizeToSky / FinalizeToVis -> Finalized
//
// and a finalized machine must be initialized again before reuse.
//
// For every buffer the machine feeds the parallactic angle to its change
// detector. When the angle has moved by the tolerance it asks the cache for
// the kernel stack, building and caching it on a miss. Queries carry the
// image frequency, the expected kernel increment and the machine's own
// tolerance, so machines of different geometry can share one cache. Each unflagged
// sample is then spread over (or read from) a footprint of the lattice. A
// footprint that falls entirely off the grid is counted in
// Stats.SkippedRows rather than reported as an error.
package ftmachine
