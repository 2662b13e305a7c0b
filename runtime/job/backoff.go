package job

import (
	"math"
	"math/rand"
	"time"
)

// Backoff determines when a failed job is retried.
type Backoff interface {
	NextRetry(now time.Time, failures int) time.Time
}

// ExponentialBackoff doubles the delay with every failure, from Min up to Max.
type ExponentialBackoff struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64
}

// NextRetry returns the due date of a job that failed failures times so far.
func (p ExponentialBackoff) NextRetry(now time.Time, failures int) time.Time {
	return now.Add(p.delay(failures))
}

// delay returns the delay after the n'th failure, counted from 0.
func (p ExponentialBackoff) delay(n int) time.Duration {
	s := math.Pow(2, float64(n)) * p.Min.Seconds()
	if s > p.Max.Seconds() {
		s = p.Max.Seconds()
	}
	s *= 1 + (rand.Float64() * p.Jitter)
	return time.Duration(s * float64(time.Second))
}
