package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Op names an instrumented operation, e.g. {Component: "cfcache", Name: "locate"}.
type Op struct {
	Component string
	Name      string
	Attrs     []attribute.KeyValue
}

// SpanName returns "<component>.<name>".
func (o Op) SpanName() string {
	if o.Component == "" {
		return o.Name
	}
	return o.Component + "." + o.Name
}

// Tracer wraps OpenTelemetry tracing with operation-scoped spans.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: End must be best-effort and must not panic.
type Tracer interface {
	// Start starts a span for op.
	Start(ctx context.Context, op Op) (context.Context, trace.Span)

	// End ends the span, recording err when non-nil.
	End(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// NopTracer returns a tracer whose spans record nothing.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *tracerImpl) Start(ctx context.Context, op Op) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(op.Attrs)+2)
	attrs = append(attrs,
		attribute.String("cfgrid.component", op.Component),
		attribute.String("cfgrid.op", op.Name),
	)
	attrs = append(attrs, op.Attrs...)

	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) End(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
