// Package monitor orchestrates the batched, rate-limit-aware account
// monitoring runs.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/config"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/fetcher"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/store"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

const (
	// targetWindow is the span a full batch should be spread across.
	targetWindow = 45 * time.Minute

	// safetyFactor inflates inter-account spacing for margin against
	// the provider's per-window budget.
	safetyFactor = 3.0
)

// AccountFetcher runs the per-account fetch state machine.
type AccountFetcher interface {
	Fetch(ctx context.Context, handle string) fetcher.Result
}

// QuotaTracker is the daily call-budget state the scheduler consults.
type QuotaTracker interface {
	ApproachingLimit() bool
	ResetIfElapsed()
	CallsToday() int
	DailyLimit() int
}

// Monitor partitions the watch-list into batches and processes them on
// staggered timers. Batches are independent deferred tasks: batch k
// fires at run start + k*interval whether or not batch k-1 finished, so
// an overrunning batch may overlap the next one. That is inherited
// behavior, kept deliberately.
type Monitor struct {
	store store.Store
	fetch AccountFetcher
	quota QuotaTracker
	cfg   config.MonitorConfig

	// injectable for tests
	sleep     func(ctx context.Context, d time.Duration) error
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu     sync.Mutex
	timers []*time.Timer
}

// New creates a Monitor.
func New(st store.Store, fetch AccountFetcher, qt QuotaTracker, cfg config.MonitorConfig) *Monitor {
	return &Monitor{
		store:     st,
		fetch:     fetch,
		quota:     qt,
		cfg:       cfg,
		sleep:     sleepCtx,
		afterFunc: time.AfterFunc,
	}
}

// Run executes one monitoring pass: batch 0 synchronously, later
// batches on deferred timers keyed by a run id. ctx cancellation stops
// un-started batches from firing but does not abort in-flight work.
func (m *Monitor) Run(ctx context.Context) error {
	m.quota.ResetIfElapsed()

	log.Println("[monitor] starting account monitoring process")

	if m.cfg.TestMode {
		return m.runTestMode(ctx)
	}

	accounts, err := m.store.AccountsToMonitor(ctx)
	if err != nil {
		return fmt.Errorf("monitor: loading accounts: %w", err)
	}
	if len(accounts) == 0 {
		log.Println("[monitor] no accounts found to monitor")
		return nil
	}

	batches := partition(accounts, m.cfg.BatchSize)
	runID := uuid.NewString()
	interval := time.Duration(m.cfg.BatchIntervalMinutes) * time.Minute

	log.Printf("[monitor] run %s: %d accounts in %d batches of up to %d",
		runID, len(accounts), len(batches), m.cfg.BatchSize)

	m.processBatch(ctx, runID, batches[0], 1, len(batches))

	for k := 1; k < len(batches); k++ {
		k := k
		delay := time.Duration(k) * interval
		log.Printf("[monitor] run %s: scheduling batch %d/%d in %s", runID, k+1, len(batches), delay)

		var timer *time.Timer
		timer = m.afterFunc(delay, func() {
			defer m.discardTimer(timer)
			if ctx.Err() != nil {
				log.Printf("[monitor] run %s: batch %d cancelled before start", runID, k+1)
				return
			}
			m.processBatch(ctx, runID, batches[k], k+1, len(batches))
		})

		m.mu.Lock()
		m.timers = append(m.timers, timer)
		m.mu.Unlock()
	}

	return nil
}

// StopPending stops deferred batch timers that have not fired yet.
func (m *Monitor) StopPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
}

// discardTimer drops a fired timer so the slice doesn't grow across
// cron runs for the life of the process.
func (m *Monitor) discardTimer(timer *time.Timer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.timers {
		if t == timer {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// runTestMode processes only the configured test account.
func (m *Monitor) runTestMode(ctx context.Context) error {
	log.Printf("[monitor] TEST MODE: processing single account @%s", m.cfg.TestAccount)

	account, err := m.store.AccountByHandle(ctx, m.cfg.TestAccount)
	if err != nil {
		return fmt.Errorf("monitor: loading test account: %w", err)
	}
	if account == nil {
		log.Printf("[monitor] test account @%s not found in database, add it first", m.cfg.TestAccount)
		return nil
	}

	m.processAccount(ctx, *account)
	return nil
}

// processBatch handles one batch sequentially, spacing accounts by the
// adaptive delay. Skipped entirely when the daily budget is exhausted.
func (m *Monitor) processBatch(ctx context.Context, runID string, accounts []types.Account, num, total int) {
	if m.quota.ApproachingLimit() {
		log.Printf("[monitor] run %s: skipping batch %d/%d - approaching daily API limit (%d/%d)",
			runID, num, total, m.quota.CallsToday(), m.quota.DailyLimit())
		return
	}

	delay := AdaptiveDelay(len(accounts), time.Duration(m.cfg.BaseAPIDelayMs)*time.Millisecond)
	log.Printf("[monitor] run %s: processing batch %d/%d (%d accounts, %s between accounts)",
		runID, num, total, len(accounts), delay.Round(time.Second))

	for i, account := range accounts {
		m.processAccount(ctx, account)

		if i < len(accounts)-1 {
			if err := m.sleep(ctx, delay); err != nil {
				log.Printf("[monitor] run %s: batch %d interrupted: %v", runID, num, err)
				return
			}
		}
	}

	log.Printf("[monitor] run %s: completed batch %d/%d", runID, num, total)
}

// processAccount fetches one account and routes the outcome: cache
// reconciliation on success, review sink on terminal failure.
func (m *Monitor) processAccount(ctx context.Context, account types.Account) {
	if m.quota.ApproachingLimit() {
		log.Printf("[monitor] skipping @%s - approaching daily API limit (%d/%d)",
			account.Handle, m.quota.CallsToday(), m.quota.DailyLimit())
		return
	}

	log.Printf("[monitor] processing account @%s", account.Handle)
	res := m.fetch.Fetch(ctx, account.Handle)

	switch res.Outcome {
	case fetcher.OutcomeSuccess:
		m.reconcile(ctx, account, res.Tweets)

	case fetcher.OutcomeValidationError, fetcher.OutcomeNoTweets:
		if err := m.store.UpsertReviewEntry(ctx, account.Handle, res.Message, res.Code); err != nil {
			log.Printf("[monitor] failed to record @%s for review: %v", account.Handle, err)
		} else {
			log.Printf("[monitor] added @%s to review list (%s)", account.Handle, res.Code)
		}
		// Update last_checked so the staleness ordering stops
		// front-running a permanently broken account.
		if err := m.store.UpdateLastChecked(ctx, account.ID); err != nil {
			log.Printf("[monitor] failed to update last_checked for @%s: %v", account.Handle, err)
		}

	case fetcher.OutcomeQuotaDeferred:
		log.Printf("[monitor] @%s deferred to a later run (daily API limit)", account.Handle)

	case fetcher.OutcomeError:
		log.Printf("[monitor] error processing @%s after %d attempts: %v", account.Handle, res.Attempts, res.Err)
	}
}

// reconcile replaces the account's cache when the fetched set differs,
// and always refreshes last_checked. Partial failure between delete and
// insert is logged, not rolled back.
func (m *Monitor) reconcile(ctx context.Context, account types.Account, fresh []types.CachedTweet) {
	cached, err := m.store.CachedTweets(ctx, account.ID)
	if err != nil {
		log.Printf("[monitor] failed to load cached tweets for @%s: %v", account.Handle, err)
		return
	}

	if Changed(fresh, cached) {
		log.Printf("[monitor] tweets changed for @%s, updating cache", account.Handle)

		if err := m.store.DeleteCachedTweets(ctx, account.ID); err != nil {
			log.Printf("[monitor] failed to clear cache for @%s: %v", account.Handle, err)
			return
		}

		for i := range fresh {
			fresh[i].AccountID = account.ID
		}
		if err := m.store.InsertCachedTweets(ctx, fresh); err != nil {
			log.Printf("[monitor] failed to insert tweets for @%s (cache left partial): %v", account.Handle, err)
		}
	} else {
		log.Printf("[monitor] no changes in tweets for @%s", account.Handle)
	}

	if err := m.store.UpdateLastChecked(ctx, account.ID); err != nil {
		log.Printf("[monitor] failed to update last_checked for @%s: %v", account.Handle, err)
	}
}

// AdaptiveDelay computes the inter-account spacing for a batch: the
// target window split across the batch, inflated by the safety factor,
// never below the configured base delay.
func AdaptiveDelay(batchSize int, base time.Duration) time.Duration {
	if batchSize < 1 {
		batchSize = 1
	}
	d := time.Duration(float64(targetWindow) / float64(batchSize) * safetyFactor)
	if d < base {
		return base
	}
	return d
}

// partition splits accounts into consecutive batches of up to size; the
// last batch may be short.
func partition(accounts []types.Account, size int) [][]types.Account {
	if size < 1 {
		size = 1
	}
	var batches [][]types.Account
	for i := 0; i < len(accounts); i += size {
		end := i + size
		if end > len(accounts) {
			end = len(accounts)
		}
		batches = append(batches, accounts[i:end])
	}
	return batches
}

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
