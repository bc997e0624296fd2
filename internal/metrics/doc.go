// Package metrics records doorbell activity as Prometheus metrics.
package metrics
