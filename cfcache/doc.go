// Package cfcache caches convolution functions in memory and on disk.
//
// A Cache answers Locate queries for a full w-stack of kernels at a
// parallactic angle. Angles are bucketed into slots: a query matches the
// closest slot within its tolerance. Lookups try a bounded in-memory LRU
// first, then the on-disk index (aux.dat) and kernel files, and finally
// report NotCached so the caller can build the kernels and insert them with
// CacheConvFunction. A hit always covers every requested w-plane; a partial
// stack is a miss.
//
// Disk writes are atomic (write to a temporary file, then rename). A failed
// write leaves the in-memory entry usable and is reported as
// ErrPersistenceFailure. A missing or mismatched kernel file referenced by
// the index is ErrCorruptCacheEntry and must stop the imaging run.
//
//	c, err := cfcache.New(cfcache.WithDir("/scratch/cf"))
//	res, err := c.Locate(ctx, cfcache.Query{NW: 32, PA: pa, Frequency: freq})
//	if res.Status == cfcache.NotCached {
//	    cf := build()
//	    err = c.CacheConvFunction(ctx, pa, cf, "wproj", true)
//	}
//	err = c.Flush(ctx)
package cfcache
