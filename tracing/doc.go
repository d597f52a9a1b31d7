// Package tracing is a thin wrapper over OpenTelemetry so the engine can
// emit spans for runs, steps and registry calls without every caller
// importing the upstream packages.  Applications that do not install an
// exporter get no-op spans.
package tracing
