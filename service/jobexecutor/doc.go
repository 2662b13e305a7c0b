// Package jobexecutor acquires due jobs under a lease and runs them on a
// bounded worker pool, recording failures with backoff.
package jobexecutor
