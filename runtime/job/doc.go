// Package job implements the built-in job handlers and the job lifecycle:
// executing a leased job, and recording failures with retry backoff until a
// job goes dead.
package job
