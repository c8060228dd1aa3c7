// Package quota tracks API calls made against the provider's daily budget.
package quota

import (
	"log"
	"sync"
	"time"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

// resetBuffer pads the provider-reported reset instant against clock skew.
const resetBuffer = time.Minute

// Tracker counts API calls in the current day window. The scheduler and
// fetcher consult ApproachingLimit before issuing calls and skip work
// (not error) when it reports true.
type Tracker struct {
	mu           sync.Mutex
	dailyLimit   int
	callsToday   int
	dailyResetAt time.Time // zero when the provider has not reported one

	now        func() time.Time
	resetTimer *time.Timer
}

// New creates a Tracker with the given daily call limit.
func New(dailyLimit int) *Tracker {
	return &Tracker{
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
}

// NewWithClock creates a Tracker with an injected clock for tests.
func NewWithClock(dailyLimit int, now func() time.Time) *Tracker {
	return &Tracker{
		dailyLimit: dailyLimit,
		now:        now,
	}
}

// TrackCall records one outbound API call. When the response carried daily
// rate-limit metadata, the daily reset instant is updated and a one-shot
// timer is armed to zero the counter once the window rolls over.
func (t *Tracker) TrackCall(info *types.RateLimitInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callsToday++

	if info != nil && info.Day != nil && info.Day.Reset > 0 {
		resetAt := time.Unix(info.Day.Reset, 0)
		t.dailyResetAt = resetAt

		if until := resetAt.Sub(t.now()); until > 0 {
			if t.resetTimer != nil {
				t.resetTimer.Stop()
			}
			t.resetTimer = time.AfterFunc(until+resetBuffer, t.Reset)
		}
	}

	if t.dailyLimit <= 0 {
		return
	}
	pct := t.callsToday * 100 / t.dailyLimit
	if pct >= 80 {
		log.Printf("[quota] API usage: %d/%d calls (%d%%) - approaching limit", t.callsToday, t.dailyLimit, pct)
	} else {
		log.Printf("[quota] API usage: %d/%d calls (%d%%)", t.callsToday, t.dailyLimit, pct)
	}
}

// ApproachingLimit reports whether the daily call budget is exhausted.
func (t *Tracker) ApproachingLimit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callsToday >= t.dailyLimit
}

// Reset zeroes the counter and clears the known reset instant.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// ResetIfElapsed resets the counter when the provider-reported daily
// window has already passed. Called at the top of each monitoring run as
// a belt-and-braces companion to the reset timer.
func (t *Tracker) ResetIfElapsed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dailyResetAt.IsZero() && t.now().After(t.dailyResetAt) {
		t.resetLocked()
	}
}

func (t *Tracker) resetLocked() {
	t.callsToday = 0
	t.dailyResetAt = time.Time{}
	if t.resetTimer != nil {
		t.resetTimer.Stop()
		t.resetTimer = nil
	}
	log.Println("[quota] daily API call counter has been reset")
}

// CallsToday returns the number of calls recorded in the current window.
func (t *Tracker) CallsToday() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callsToday
}

// DailyLimit returns the configured daily call budget.
func (t *Tracker) DailyLimit() int {
	return t.dailyLimit
}

// DailyResetAt returns the provider-reported reset instant, or the zero
// time when none has been reported in this window.
func (t *Tracker) DailyResetAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dailyResetAt
}

// Stop cancels the pending reset timer, if any.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resetTimer != nil {
		t.resetTimer.Stop()
		t.resetTimer = nil
	}
}
