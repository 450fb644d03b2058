// Package otel exports authvault counters as OpenTelemetry observable
// instruments. The exporter registers a single callback that reads a metrics
// snapshot on each collection.
package otel
