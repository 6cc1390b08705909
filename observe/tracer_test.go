package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracer_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracer(tp.Tracer("test"))

	op := Op{
		Component: "lattice",
		Name:      "flush",
		Attrs:     []attribute.KeyValue{attribute.Int("tiles", 4)},
	}
	_, span := tracer.Start(context.Background(), op)
	tracer.End(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	want := map[attribute.Key]string{
		"cfgrid.component": "lattice",
		"cfgrid.op":        "flush",
	}
	got := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		got[kv.Key] = kv.Value
	}
	for k, v := range want {
		if got[k].AsString() != v {
			t.Errorf("attribute %s = %q, want %q", k, got[k].AsString(), v)
		}
	}
	if got["tiles"].AsInt64() != 4 {
		t.Errorf("tiles attribute = %v", got["tiles"])
	}
}

func TestNopTracer_NoPanic(t *testing.T) {
	tracer := NopTracer()
	_, span := tracer.Start(context.Background(), Op{Name: "x"})
	tracer.End(span, nil)
}
