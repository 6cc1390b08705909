// Package observe provides the logging, metrics and tracing used by the
// convolution-function cache and the gridding machines.
//
// It is a pure instrumentation library: exporters are created from
// configuration, and components receive a Logger, Metrics and Tracer
// explicitly. Disabled subsystems fall back to no-op implementations so
// callers never need nil checks.
package observe
