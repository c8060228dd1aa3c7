// Package backoff computes retry wait durations for API failures.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

const (
	// GrowthFactor is deliberately steeper than the usual doubling; the
	// provider's rate limits punish early retries.
	GrowthFactor = 2.5

	// JitterBound caps the random spread added to each exponential wait.
	JitterBound = 2 * time.Second

	// ResetMargin pads the provider-reported reset instant.
	ResetMargin = time.Minute
)

// Exponential returns the wait before retrying after the given
// zero-based attempt: base * GrowthFactor^attempt plus random jitter.
func Exponential(attempt int, base time.Duration) time.Duration {
	wait := time.Duration(float64(base) * math.Pow(GrowthFactor, float64(attempt)))
	jitter := time.Duration(rand.Int63n(int64(JitterBound)))
	return wait + jitter
}

// ResetWait returns how long to wait for a rate-limit window that resets
// at the given epoch second: until the reset instant plus ResetMargin,
// floored at one minute. Used whenever a rate-limit response carries an
// explicit reset time; Exponential is the fallback when none is present.
func ResetWait(resetEpoch int64, now time.Time) time.Duration {
	wait := time.Unix(resetEpoch, 0).Sub(now) + ResetMargin
	if wait < time.Minute {
		return time.Minute
	}
	return wait
}
