// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics
