package vis

import (
	"context"
	"io"
)

// Iterator delivers buffers in observation order.
//
// Contract:
// - Next returns io.EOF once the buffers are exhausted.
// - Context: Next must honor cancellation.
type Iterator interface {
	Next(ctx context.Context) (*Buffer, error)
}

// SliceIterator iterates over a fixed list of buffers.
type SliceIterator struct {
	bufs []*Buffer
	next int
}

// NewSliceIterator returns an iterator over bufs.
func NewSliceIterator(bufs ...*Buffer) *SliceIterator {
	return &SliceIterator{bufs: bufs}
}

// Next returns the next buffer or io.EOF.
func (it *SliceIterator) Next(ctx context.Context) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.next >= len(it.bufs) {
		return nil, io.EOF
	}
	b := it.bufs[it.next]
	it.next++
	return b, nil
}

// Reset rewinds to the first buffer.
func (it *SliceIterator) Reset() { it.next = 0 }

// Each calls fn for every buffer until the iterator is exhausted or fn
// fails.
func Each(ctx context.Context, it Iterator, fn func(*Buffer) error) error {
	for {
		b, err := it.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
}
