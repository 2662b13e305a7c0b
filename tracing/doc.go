// Package tracing integrates OpenTelemetry with the engine: every command
// and job execution runs inside a span. Applications that do not configure
// an exporter get no-op spans.
package tracing
