// Package exporters creates the OpenTelemetry exporters selected by name in
// the observe configuration.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter indicates an exporter name outside the supported set.
var ErrUnknownExporter = errors.New("exporters: unknown exporter")

// ErrEndpointNotConfigured indicates the OTLP endpoint variables are unset.
var ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")

// otlpEndpoint returns the first non-empty endpoint variable.
func otlpEndpoint(signal string) (string, error) {
	for _, key := range []string{"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_" + signal + "_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_%s_ENDPOINT",
		ErrEndpointNotConfigured, signal)
}

// NewTracingExporter creates a span exporter: stdout, otlp or none.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	case "otlp":
		if _, err := otlpEndpoint("TRACES"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)
	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

// NewMetricsReader creates a metrics reader: stdout, otlp, prometheus or none.
func NewMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, error) {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch name {
	case "prometheus":
		reader, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return reader, nil
	case "stdout":
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
	case "otlp":
		if _, err := otlpEndpoint("METRICS"); err != nil {
			return nil, err
		}
		exp, err = otlpmetricgrpc.New(ctx)
	case "none", "":
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s metrics exporter: %w", name, err)
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}
