package cfcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/cfgrid/cfstore"
	"github.com/jonwraymond/cfgrid/coords"
	"github.com/jonwraymond/cfgrid/resilience"
)

const testFreq = 1.4e9

// testStack builds nW planes starting at absolute plane first with an
// n×n kernel and recognisable sample values.
func testStack(t testing.TB, first, nW, n int, pa float64, role cfstore.Role) *cfstore.Store {
	t.Helper()
	return testStackAt(t, first, nW, n, pa, testFreq, role)
}

func testStackAt(t testing.TB, first, nW, n int, pa, freq float64, role cfstore.Role) *cfstore.Store {
	t.Helper()
	k, err := cfstore.NewArray(cfstore.Shape{nW, 1, n, n})
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	data := k.Data()
	for i := range data {
		data[i] = complex(float32(i%97)*0.01+float32(first), float32(i%13)-float32(role))
	}
	xs, err := cfstore.UniformSupport(nW, 1, 2)
	if err != nil {
		t.Fatalf("UniformSupport: %v", err)
	}
	ys, _ := cfstore.UniformSupport(nW, 1, 2)
	wv := make([]float64, nW)
	for i := range wv {
		wv[i] = float64((first + i) * (first + i))
	}
	s, err := cfstore.New(cfstore.Params{
		Kernel:     k,
		Coords:     coords.Direction{RefPixel: [2]float64{float64(n / 2), float64(n / 2)}, Increment: [2]float64{1, 1}},
		XSupport:   xs,
		YSupport:   ys,
		Sampling:   4,
		PA:         pa,
		FirstPlane: first,
		WValues:    wv,
		Frequency:  freq,
		Role:       role,
	})
	if err != nil {
		t.Fatalf("cfstore.New: %v", err)
	}
	return s
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithRetry(resilience.Once())}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func locate(t *testing.T, c *Cache, q Query) Result {
	t.Helper()
	res, err := c.Locate(context.Background(), q)
	if err != nil {
		t.Fatalf("Locate(%+v): %v", q, err)
	}
	return res
}

func insert(t *testing.T, c *Cache, pa float64, s *cfstore.Store, save bool) {
	t.Helper()
	if err := c.CacheConvFunction(context.Background(), pa, s, "test", save); err != nil {
		t.Fatalf("CacheConvFunction: %v", err)
	}
}

// countingDisk counts every call that touches storage.
type countingDisk struct {
	Disk
	reads  atomic.Int64
	writes atomic.Int64
}

func (d *countingDisk) ReadIndex(ctx context.Context) (*Table, error) {
	d.reads.Add(1)
	return d.Disk.ReadIndex(ctx)
}

func (d *countingDisk) ReadKernel(ctx context.Context, name string) (*cfstore.Store, error) {
	d.reads.Add(1)
	return d.Disk.ReadKernel(ctx, name)
}

func (d *countingDisk) ReadImage(ctx context.Context, name string) (*AvgPB, error) {
	d.reads.Add(1)
	return d.Disk.ReadImage(ctx, name)
}

func (d *countingDisk) Stat(ctx context.Context, name string) error {
	d.reads.Add(1)
	return d.Disk.Stat(ctx, name)
}

func (d *countingDisk) WriteIndex(ctx context.Context, tb *Table) error {
	d.writes.Add(1)
	return d.Disk.WriteIndex(ctx, tb)
}

func (d *countingDisk) WriteKernel(ctx context.Context, name string, s *cfstore.Store) error {
	d.writes.Add(1)
	return d.Disk.WriteKernel(ctx, name, s)
}

var errDiskFull = errors.New("no space left on device")

// failingDisk fails every write.
type failingDisk struct {
	Disk
}

func (failingDisk) WriteIndex(context.Context, *Table) error { return errDiskFull }
func (failingDisk) WriteKernel(context.Context, string, *cfstore.Store) error {
	return errDiskFull
}
func (failingDisk) WriteImage(context.Context, string, *AvgPB) error { return errDiskFull }
