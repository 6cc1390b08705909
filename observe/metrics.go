package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricStepTotal      = "cfgrid.step.total"
	MetricStepErrors     = "cfgrid.step.errors"
	MetricStepDuration   = "cfgrid.step.duration_ms"
	MetricLookups        = "cfcache.lookups"
	MetricPersistFailure = "cfcache.persist_failures"
	MetricRows           = "ftmachine.rows"
	MetricSkippedRows    = "ftmachine.skipped_rows"
)

// Metrics records cache and gridding telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordStep records one instrumented operation with its duration.
	RecordStep(ctx context.Context, op Op, duration time.Duration, err error)

	// RecordLookup records a convolution-function lookup outcome
	// ("memory", "disk" or "miss").
	RecordLookup(ctx context.Context, status string)

	// RecordPersistFailure records a failed cache write ("kernel", "index", "avgpb").
	RecordPersistFailure(ctx context.Context, target string)

	// RecordRows records visibility rows processed by op ("put" or "get")
	// and how many of them fell entirely off the grid.
	RecordRows(ctx context.Context, op string, processed, skipped int64)
}

type metricsImpl struct {
	stepTotal     metric.Int64Counter
	stepErrors    metric.Int64Counter
	stepDuration  metric.Float64Histogram
	lookups       metric.Int64Counter
	persistFailed metric.Int64Counter
	rows          metric.Int64Counter
	skipped       metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.stepTotal, err = meter.Int64Counter(MetricStepTotal,
		metric.WithDescription("Instrumented operations executed"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.stepErrors, err = meter.Int64Counter(MetricStepErrors,
		metric.WithDescription("Instrumented operations that failed"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.stepDuration, err = meter.Float64Histogram(MetricStepDuration,
		metric.WithDescription("Instrumented operation duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.lookups, err = meter.Int64Counter(MetricLookups,
		metric.WithDescription("Convolution-function lookups by outcome"),
		metric.WithUnit("{lookup}")); err != nil {
		return nil, err
	}
	if m.persistFailed, err = meter.Int64Counter(MetricPersistFailure,
		metric.WithDescription("Cache writes that could not be persisted"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.rows, err = meter.Int64Counter(MetricRows,
		metric.WithDescription("Visibility rows gridded or degridded"),
		metric.WithUnit("{row}")); err != nil {
		return nil, err
	}
	if m.skipped, err = meter.Int64Counter(MetricSkippedRows,
		metric.WithDescription("Visibility rows whose footprint was off the grid"),
		metric.WithUnit("{row}")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordStep(ctx context.Context, op Op, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("component", op.Component),
		attribute.String("op", op.Name),
	)
	m.stepTotal.Add(ctx, 1, opt)
	if err != nil {
		m.stepErrors.Add(ctx, 1, opt)
	}
	m.stepDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, status string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *metricsImpl) RecordPersistFailure(ctx context.Context, target string) {
	m.persistFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}

func (m *metricsImpl) RecordRows(ctx context.Context, op string, processed, skipped int64) {
	opt := metric.WithAttributes(attribute.String("op", op))
	m.rows.Add(ctx, processed, opt)
	if skipped > 0 {
		m.skipped.Add(ctx, skipped, opt)
	}
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordStep(context.Context, Op, time.Duration, error) {}
func (noopMetrics) RecordLookup(context.Context, string)                 {}
func (noopMetrics) RecordPersistFailure(context.Context, string)         {}
func (noopMetrics) RecordRows(context.Context, string, int64, int64)     {}
