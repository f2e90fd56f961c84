// Package telemetry wraps OpenTelemetry SDK initialization, providing the
// daemon's TracerProvider and MeterProvider configuration in one place.
// When telemetry is disabled the global providers stay noop and no external
// service is contacted.
package telemetry
