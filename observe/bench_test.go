package observe

import (
	"context"
	"io"
	"testing"
)

func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard).With(F("component", "bench"))
	ctx := context.Background()
	b.ReportAllocs()
	for b.Loop() {
		logger.Info(ctx, "row gridded", F("row", 12), F("plane", 3))
	}
}

func BenchmarkMiddleware_Nop(b *testing.B) {
	mw := NopMiddleware()
	step := mw.Wrap(Op{Component: "bench", Name: "step"}, func(context.Context) error { return nil })
	ctx := context.Background()
	b.ReportAllocs()
	for b.Loop() {
		_ = step(ctx)
	}
}
