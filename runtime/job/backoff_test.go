package job

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff_NextRetry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := ExponentialBackoff{Min: time.Second, Max: time.Minute}

	assert.Equal(t, now.Add(time.Second), policy.NextRetry(now, 0), "first failure waits the minimum")
	assert.Equal(t, now.Add(2*time.Second), policy.NextRetry(now, 1))
	assert.Equal(t, now.Add(8*time.Second), policy.NextRetry(now, 3))
	assert.Equal(t, now.Add(time.Minute), policy.NextRetry(now, 20), "delay is capped")
}

func TestExponentialBackoff_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	policy := ExponentialBackoff{Min: 100 * time.Millisecond, Max: 30 * time.Second}

	properties.Property("delay never decreases with more failures", prop.ForAll(
		func(n int) bool {
			return policy.delay(n) <= policy.delay(n+1)
		},
		gen.IntRange(0, 40),
	))

	properties.Property("delay stays between min and max", prop.ForAll(
		func(n int) bool {
			d := policy.delay(n)
			return d >= policy.Min && d <= policy.Max
		},
		gen.IntRange(0, 64),
	))

	properties.Property("jitter adds at most the configured fraction", prop.ForAll(
		func(n int, jitter float64) bool {
			jittered := ExponentialBackoff{Min: policy.Min, Max: policy.Max, Jitter: jitter}
			base := policy.delay(n)
			d := jittered.delay(n)
			return d >= base && float64(d) <= float64(base)*(1+jitter)+1
		},
		gen.IntRange(0, 20),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
