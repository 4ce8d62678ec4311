// Package metrics defines the Prometheus metrics exposed by the
// transcriber service.
package metrics
