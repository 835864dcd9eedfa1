// Package otel bridges session orchestrator metrics into an OpenTelemetry
// meter through observable instruments read on collection.
package otel
