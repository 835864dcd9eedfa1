// Package prometheus renders session orchestrator metrics in Prometheus text
// exposition format without depending on the Prometheus client library.
package prometheus
