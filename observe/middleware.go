package observe

import (
	"context"
	"time"
)

// StepFunc is an instrumentable unit of work.
type StepFunc func(ctx context.Context) error

// Middleware wraps steps with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a StepFunc safe for concurrent use when fn is.
//   - Context: the span context is passed to fn.
//   - Errors: errors from fn are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NopMiddleware returns a Middleware that only runs the step.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Metrics returns the middleware's metrics sink.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Tracer returns the middleware's tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Wrap instruments fn as op. Successful steps log at debug level, failures
// at error level.
func (m *Middleware) Wrap(op Op, fn StepFunc) StepFunc {
	return func(ctx context.Context) error {
		ctx, span := m.tracer.Start(ctx, op)
		start := time.Now()

		err := fn(ctx)

		duration := time.Since(start)
		m.tracer.End(span, err)
		m.metrics.RecordStep(ctx, op, duration, err)

		fields := []Field{
			F("component", op.Component),
			F("op", op.Name),
			F("duration_ms", float64(duration.Microseconds())/1000),
		}
		if err != nil {
			m.logger.Error(ctx, op.SpanName()+" failed", append(fields, Err(err))...)
		} else {
			m.logger.Debug(ctx, op.SpanName()+" completed", fields...)
		}
		return err
	}
}

// Run is Wrap followed by a call.
func (m *Middleware) Run(ctx context.Context, op Op, fn StepFunc) error {
	return m.Wrap(op, fn)(ctx)
}

// MiddlewareFromObserver builds a Middleware from an Observer's providers.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
