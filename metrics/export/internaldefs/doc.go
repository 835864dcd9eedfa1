// Package internaldefs carries the shared metric name/help definitions used
// by the prometheus and otel exporters. It is internal plumbing; applications
// import one of the exporter packages instead.
package internaldefs
