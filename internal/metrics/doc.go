// Package metrics exposes Prometheus collectors for commands and jobs.
package metrics
