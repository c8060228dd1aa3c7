package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialMonotonic(t *testing.T) {
	// With a base well above the jitter bound, successive waits must
	// strictly increase even at jitter's extremes.
	base := 10 * time.Second

	prev := time.Duration(0)
	for attempt := 0; attempt <= 5; attempt++ {
		wait := Exponential(attempt, base)
		assert.Greater(t, wait, prev, "attempt %d", attempt)
		prev = wait
	}
}

func TestExponentialBounds(t *testing.T) {
	base := time.Minute

	for attempt := 0; attempt <= 3; attempt++ {
		wait := Exponential(attempt, base)
		lower := time.Duration(float64(base) * pow(GrowthFactor, attempt))
		assert.GreaterOrEqual(t, wait, lower)
		assert.Less(t, wait, lower+JitterBound)
	}
}

func TestResetWaitFutureReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(120 * time.Second)

	wait := ResetWait(reset.Unix(), now)

	// 120s until reset + 60s margin, with no double-counted buffer.
	assert.GreaterOrEqual(t, wait, 180*time.Second)
	assert.Less(t, wait, 181*time.Second)
}

func TestResetWaitFloorsAtOneMinute(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Reset already passed.
	wait := ResetWait(now.Add(-time.Hour).Unix(), now)
	assert.Equal(t, time.Minute, wait)

	// Reset imminently: margin alone stays at the floor.
	wait = ResetWait(now.Unix(), now)
	assert.Equal(t, time.Minute, wait)
}

func pow(f float64, n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= f
	}
	return out
}
