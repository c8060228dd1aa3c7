// Package fetcher drives the per-account fetch/retry state machine.
package fetcher

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/backoff"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/config"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/twitter"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

// Review-sink error codes.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNoTweets        = "NO_TWEETS"
)

const (
	// emptyRetryDelay is the fixed wait between attempts when the API
	// succeeds but returns nothing.
	emptyRetryDelay = 5 * time.Second

	// rateLimitBase seeds exponential backoff for 429s that carry no
	// reset time.
	rateLimitBase = time.Minute

	// transientBase seeds exponential backoff for network/5xx errors.
	transientBase = time.Second
)

// Outcome is the terminal state of one account fetch.
type Outcome int

const (
	// OutcomeSuccess means tweets were fetched.
	OutcomeSuccess Outcome = iota
	// OutcomeValidationError means the handle is malformed; permanent,
	// routed to the review sink, never retried.
	OutcomeValidationError
	// OutcomeNoTweets means every attempt returned an empty result;
	// routed to the review sink.
	OutcomeNoTweets
	// OutcomeQuotaDeferred means the daily call budget is exhausted and
	// the fetch was skipped without any network call.
	OutcomeQuotaDeferred
	// OutcomeError means retries were exhausted on a transient failure;
	// the account stays eligible for the next run.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationError:
		return "validation_error"
	case OutcomeNoTweets:
		return "no_tweets"
	case OutcomeQuotaDeferred:
		return "quota_deferred"
	case OutcomeError:
		return "error"
	}
	return "unknown"
}

// Result is what one fetch attempt sequence produced.
type Result struct {
	Outcome  Outcome
	Tweets   []types.CachedTweet
	Code     string // review-sink error code, when terminal-failed
	Message  string
	Err      error
	Attempts int
}

// TweetSource lists recent tweets for a handle. Satisfied by *twitter.Client.
type TweetSource interface {
	RecentTweets(ctx context.Context, handle string, count int, includeReplies, includeRetweets bool) ([]types.CachedTweet, error)
}

// LimitGuard is the pre-call quota check. Satisfied by *quota.Tracker.
type LimitGuard interface {
	ApproachingLimit() bool
}

// Fetcher fetches recent tweets for one account at a time, retrying
// transient failures per the configured attempt cap.
type Fetcher struct {
	source          TweetSource
	guard           LimitGuard
	tweetsPerFetch  int
	includeReplies  bool
	includeRetweets bool
	maxAttempts     int

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Fetcher from the monitor configuration.
func New(source TweetSource, guard LimitGuard, cfg config.MonitorConfig) *Fetcher {
	maxAttempts := cfg.MaxRetryAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Fetcher{
		source:          source,
		guard:           guard,
		tweetsPerFetch:  cfg.TweetsPerAccount,
		includeReplies:  cfg.IncludeReplies,
		includeRetweets: cfg.IncludeRetweets,
		maxAttempts:     maxAttempts,
		sleep:           sleepCtx,
		now:             time.Now,
	}
}

// Fetch runs the state machine for one handle until a terminal outcome.
func (f *Fetcher) Fetch(ctx context.Context, handle string) Result {
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if f.guard != nil && f.guard.ApproachingLimit() {
			log.Printf("[fetcher] skipping @%s - approaching daily API limit", handle)
			return Result{Outcome: OutcomeQuotaDeferred, Attempts: attempt}
		}

		tweets, err := f.source.RecentTweets(ctx, handle, f.tweetsPerFetch, f.includeReplies, f.includeRetweets)
		if err != nil {
			if res, done := f.handleError(ctx, handle, attempt, err); done {
				return res
			}
			continue
		}

		if len(tweets) == 0 {
			if attempt == f.maxAttempts-1 {
				log.Printf("[fetcher] no tweets for @%s after %d attempts", handle, f.maxAttempts)
				return Result{
					Outcome:  OutcomeNoTweets,
					Code:     CodeNoTweets,
					Message:  "Account consistently returns 0 tweets despite successful API calls",
					Attempts: attempt + 1,
				}
			}
			log.Printf("[fetcher] no tweets for @%s, retrying (%d/%d)", handle, attempt+1, f.maxAttempts)
			if err := f.sleep(ctx, emptyRetryDelay); err != nil {
				return Result{Outcome: OutcomeError, Err: err, Attempts: attempt + 1}
			}
			continue
		}

		log.Printf("[fetcher] fetched %d tweets for @%s", len(tweets), handle)
		return Result{Outcome: OutcomeSuccess, Tweets: tweets, Attempts: attempt + 1}
	}

	// Unreachable: every branch above terminates or continues within
	// the attempt cap.
	return Result{Outcome: OutcomeError, Err: errors.New("fetcher: attempt loop exhausted"), Attempts: f.maxAttempts}
}

// handleError classifies one attempt's failure. done means the result
// is terminal; otherwise the caller retries after the backoff taken here.
func (f *Fetcher) handleError(ctx context.Context, handle string, attempt int, err error) (Result, bool) {
	var apiErr *twitter.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsValidation() {
			log.Printf("[fetcher] validation error for @%s: %s", handle, apiErr.Message)
			return Result{
				Outcome:  OutcomeValidationError,
				Code:     CodeValidationError,
				Message:  apiErr.Message,
				Err:      err,
				Attempts: attempt + 1,
			}, true
		}

		if apiErr.IsRateLimit() {
			if attempt == f.maxAttempts-1 {
				return Result{Outcome: OutcomeError, Err: err, Attempts: attempt + 1}, true
			}

			var wait time.Duration
			if apiErr.RateLimit != nil && apiErr.RateLimit.Reset > 0 {
				wait = backoff.ResetWait(apiErr.RateLimit.Reset, f.now())
			} else {
				wait = backoff.Exponential(attempt, rateLimitBase)
			}
			log.Printf("[fetcher] rate limit hit for @%s, waiting %s before retry %d/%d", handle, wait.Round(time.Second), attempt+2, f.maxAttempts)
			if err := f.sleep(ctx, wait); err != nil {
				return Result{Outcome: OutcomeError, Err: err, Attempts: attempt + 1}, true
			}
			return Result{}, false
		}
	}

	// Network failure or unclassified status: transient for this run.
	if attempt == f.maxAttempts-1 {
		return Result{Outcome: OutcomeError, Err: err, Attempts: attempt + 1}, true
	}
	wait := backoff.Exponential(attempt, transientBase)
	log.Printf("[fetcher] fetch failed for @%s (%v), retrying in %s", handle, err, wait.Round(time.Millisecond))
	if err := f.sleep(ctx, wait); err != nil {
		return Result{Outcome: OutcomeError, Err: err, Attempts: attempt + 1}, true
	}
	return Result{}, false
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
