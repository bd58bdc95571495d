// Package observe provides observability primitives for the response cache.
//
// It is a pure instrumentation library: structured JSON logging with
// redaction of sensitive healthcare fields, OpenTelemetry metrics for cache
// outcomes, and spans per cache operation. No execution, no transport, no
// I/O beyond exporter setup.
package observe
