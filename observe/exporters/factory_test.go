package exporters

import (
	"context"
	"errors"
	"testing"
)

func TestNewTracingExporter_Unknown(t *testing.T) {
	_, err := NewTracingExporter(context.Background(), "jaeger")
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("error = %v, want ErrUnknownExporter", err)
	}
}

func TestNewTracingExporter_Stdout(t *testing.T) {
	exp, err := NewTracingExporter(context.Background(), "stdout")
	if err != nil {
		t.Fatalf("stdout exporter failed: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
}

func TestNewTracingExporter_OTLPNeedsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	_, err := NewTracingExporter(context.Background(), "otlp")
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("error = %v, want ErrEndpointNotConfigured", err)
	}
}

func TestNewMetricsReader(t *testing.T) {
	for _, name := range []string{"stdout", "none", "", "prometheus"} {
		reader, err := NewMetricsReader(context.Background(), name)
		if err != nil {
			t.Fatalf("NewMetricsReader(%q) failed: %v", name, err)
		}
		if reader == nil {
			t.Fatalf("NewMetricsReader(%q) returned nil", name)
		}
		_ = reader.Shutdown(context.Background())
	}
}

func TestNewMetricsReader_Unknown(t *testing.T) {
	_, err := NewMetricsReader(context.Background(), "graphite")
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("error = %v, want ErrUnknownExporter", err)
	}
}

func TestNewMetricsReader_OTLPNeedsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	_, err := NewMetricsReader(context.Background(), "otlp")
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("error = %v, want ErrEndpointNotConfigured", err)
	}
}
