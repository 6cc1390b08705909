package cfcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/cfgrid/cfstore"
)

// BuildFunc computes the stack for a query. weight may be nil unless the
// query wants weights.
type BuildFunc func(ctx context.Context) (cf, weight *cfstore.Store, err error)

// BuildOnce locates q and, on a miss, builds and caches the stack.
// Concurrent callers with the same query share one build. The returned
// Result has Status NotCached when the stack was built by this call.
//
// A persistence failure is returned together with a usable Result; test for
// it with errors.Is(err, ErrPersistenceFailure).
func (c *Cache) BuildOnce(ctx context.Context, q Query, qualifier string, savePA bool, build BuildFunc) (Result, error) {
	res, err := c.Locate(ctx, q)
	if err != nil || res.Status != NotCached {
		return res, err
	}

	key := fmt.Sprintf("%g/%g/%d/%d,%d/%t/%g", q.PA, q.Frequency, q.NW, q.MosaicX, q.MosaicY, q.WantWeight, q.Increment)
	v, err, _ := c.builds.Do(key, func() (any, error) {
		// A concurrent build may have finished between Locate and Do.
		if res, err := c.Locate(ctx, q); err != nil || res.Status != NotCached {
			return res, err
		}

		cf, weight, err := build(ctx)
		if err != nil {
			return Result{}, err
		}
		if cf == nil || cf.NW() < q.NW || cf.FirstPlane() != 0 {
			return Result{}, fmt.Errorf("%w: build returned a stack not covering planes [0,%d)", ErrInvalidQuery, q.NW)
		}
		if q.WantWeight && weight == nil {
			return Result{}, fmt.Errorf("%w: build returned no weight kernels", ErrInvalidQuery)
		}
		for _, s := range []*cfstore.Store{cf, weight} {
			if s != nil && s.Frequency() != q.Frequency {
				return Result{}, fmt.Errorf("%w: build returned kernels for %g Hz, query is for %g Hz",
					ErrInvalidQuery, s.Frequency(), q.Frequency)
			}
		}
		if err := checkIncrement(q, cf, weight); err != nil {
			return Result{}, fmt.Errorf("%w: build returned kernels of another geometry: %w", ErrInvalidQuery, err)
		}

		res := Result{Status: NotCached, CF: cf, WeightCF: weight}
		var persistErr error
		for _, s := range []*cfstore.Store{cf, weight} {
			if s == nil {
				continue
			}
			err := c.insert(ctx, q.PA, q.DPA, s, qualifier, savePA)
			switch {
			case err == nil:
			case errors.Is(err, ErrPersistenceFailure):
				persistErr = errors.Join(persistErr, err)
			default:
				return Result{}, err
			}
		}
		return res, persistErr
	})
	res, _ = v.(Result)
	return res, err
}
