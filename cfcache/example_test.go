package cfcache_test

import (
	"context"
	"fmt"
	"os"

	"github.com/jonwraymond/cfgrid/cfcache"
	"github.com/jonwraymond/cfgrid/cfstore"
)

func exampleStack(pa float64) *cfstore.Store {
	k, _ := cfstore.NewArray(cfstore.Shape{2, 1, 16, 16})
	for i := range k.Data() {
		k.Data()[i] = 1
	}
	sup, _ := cfstore.UniformSupport(2, 1, 1)
	s, _ := cfstore.New(cfstore.Params{
		Kernel:    k,
		XSupport:  sup,
		YSupport:  sup,
		Sampling:  4,
		PA:        pa,
		Frequency: 1.4e9,
	})
	return s
}

func ExampleCache_Locate() {
	dir, _ := os.MkdirTemp("", "cfcache-example")
	defer os.RemoveAll(dir)
	ctx := context.Background()

	c, _ := cfcache.New(cfcache.WithDir(dir))
	q := cfcache.Query{NW: 2, PA: 0.3, DPA: 0.01, Frequency: 1.4e9}

	res, _ := c.Locate(ctx, q)
	fmt.Println(res.Status)

	_ = c.CacheConvFunction(ctx, q.PA, exampleStack(q.PA), "wproj", true)
	_ = c.Flush(ctx)

	res, _ = c.Locate(ctx, q)
	fmt.Println(res.Status)

	reopened, _ := cfcache.New(cfcache.WithDir(dir))
	res, _ = reopened.Locate(ctx, cfcache.Query{NW: 2, PA: 0.305, DPA: 0.01, Frequency: 1.4e9})
	fmt.Println(res.Status, res.CF.NW())
	// Output:
	// miss
	// memory
	// disk 2
}
