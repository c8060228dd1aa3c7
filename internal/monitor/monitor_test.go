package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/config"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/fetcher"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

// memStore is an in-memory store.Store with call counters.
type memStore struct {
	accounts    []types.Account
	cached      map[int64][]types.CachedTweet
	reviews     map[string]types.ReviewEntry
	lastChecked map[int64]int

	deleteCalls int
	insertCalls int
	inserted    []types.CachedTweet
}

func newMemStore(accounts ...types.Account) *memStore {
	return &memStore{
		accounts:    accounts,
		cached:      make(map[int64][]types.CachedTweet),
		reviews:     make(map[string]types.ReviewEntry),
		lastChecked: make(map[int64]int),
	}
}

func (s *memStore) AccountsToMonitor(ctx context.Context) ([]types.Account, error) {
	return s.accounts, nil
}

func (s *memStore) AccountByHandle(ctx context.Context, handle string) (*types.Account, error) {
	for _, a := range s.accounts {
		if a.Handle == handle {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memStore) AddAccount(ctx context.Context, handle string, priority int) error { return nil }
func (s *memStore) RemoveAccount(ctx context.Context, id int64) error                 { return nil }
func (s *memStore) UpdateAccountPriority(ctx context.Context, id int64, p int) error  { return nil }

func (s *memStore) UpdateLastChecked(ctx context.Context, id int64) error {
	s.lastChecked[id]++
	return nil
}

func (s *memStore) CachedTweets(ctx context.Context, accountID int64) ([]types.CachedTweet, error) {
	return s.cached[accountID], nil
}

func (s *memStore) DeleteCachedTweets(ctx context.Context, accountID int64) error {
	s.deleteCalls++
	delete(s.cached, accountID)
	return nil
}

func (s *memStore) InsertCachedTweets(ctx context.Context, tweets []types.CachedTweet) error {
	s.insertCalls++
	s.inserted = append(s.inserted, tweets...)
	for _, t := range tweets {
		s.cached[t.AccountID] = append(s.cached[t.AccountID], t)
	}
	return nil
}

func (s *memStore) UpsertReviewEntry(ctx context.Context, handle, message, code string) error {
	s.reviews[handle] = types.ReviewEntry{
		Handle: handle, ErrorMessage: message, ErrorCode: code,
		Status: types.ReviewPending, CreatedAt: time.Now(),
	}
	return nil
}

func (s *memStore) ReviewEntries(ctx context.Context) ([]types.ReviewEntry, error) {
	var out []types.ReviewEntry
	for _, e := range s.reviews {
		out = append(out, e)
	}
	return out, nil
}

func (s *memStore) UpdateReviewStatus(ctx context.Context, id int64, st types.ReviewStatus, n string) error {
	return nil
}

func (s *memStore) Close() error { return nil }

// scriptedFetcher returns a fixed result per handle.
type scriptedFetcher struct {
	results map[string]fetcher.Result
	calls   []string
}

func (f *scriptedFetcher) Fetch(ctx context.Context, handle string) fetcher.Result {
	f.calls = append(f.calls, handle)
	return f.results[handle]
}

type stubQuota struct {
	limited bool
	calls   int
	limit   int
}

func (q *stubQuota) ApproachingLimit() bool { return q.limited }
func (q *stubQuota) ResetIfElapsed()        {}
func (q *stubQuota) CallsToday() int        { return q.calls }
func (q *stubQuota) DailyLimit() int        { return q.limit }

func testConfig() config.MonitorConfig {
	return config.MonitorConfig{
		TweetsPerAccount:     3,
		BatchSize:            3,
		BatchIntervalMinutes: 20,
		BaseAPIDelayMs:       180000,
		MaxRetryAttempts:     3,
		DailyAPILimit:        400,
	}
}

func silentSleep(m *Monitor) {
	m.sleep = func(ctx context.Context, d time.Duration) error { return nil }
}

func accounts(handles ...string) []types.Account {
	out := make([]types.Account, len(handles))
	for i, h := range handles {
		out[i] = types.Account{ID: int64(i + 1), Handle: h, Platform: "x", Priority: 3}
	}
	return out
}

func TestAdaptiveDelayNeverBelowBase(t *testing.T) {
	base := 180 * time.Second
	for n := 1; n <= 100; n++ {
		assert.GreaterOrEqual(t, AdaptiveDelay(n, base), base, "batch size %d", n)
	}
}

func TestAdaptiveDelaySpreadsBatch(t *testing.T) {
	// 45m window / 3 accounts * 3.0 safety = 45m spacing.
	got := AdaptiveDelay(3, 3*time.Minute)
	assert.Equal(t, 45*time.Minute, got)
}

func TestPartition(t *testing.T) {
	batches := partition(accounts("a", "b", "c", "d", "e", "f", "g"), 3)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
}

func TestRunSchedulesDeferredBatches(t *testing.T) {
	st := newMemStore(accounts("a", "b", "c", "d", "e", "f", "g")...)
	f := &scriptedFetcher{results: map[string]fetcher.Result{}}
	for _, h := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		f.results[h] = fetcher.Result{Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{{TweetID: "t-" + h}}}
	}

	m := New(st, f, &stubQuota{limit: 400}, testConfig())
	silentSleep(m)

	var delays []time.Duration
	m.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		delays = append(delays, d)
		return time.NewTimer(time.Hour) // never fires in test
	}
	defer m.StopPending()

	require.NoError(t, m.Run(context.Background()))

	// Batch 0 ran synchronously.
	assert.Equal(t, []string{"a", "b", "c"}, f.calls)
	// Batches 1 and 2 deferred at +M and +2M.
	assert.Equal(t, []time.Duration{20 * time.Minute, 40 * time.Minute}, delays)
}

func TestRunCancelledContextStopsDeferredBatches(t *testing.T) {
	st := newMemStore(accounts("a", "b", "c", "d")...)
	f := &scriptedFetcher{results: map[string]fetcher.Result{
		"a": {Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{{TweetID: "1"}}},
		"b": {Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{{TweetID: "2"}}},
		"c": {Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{{TweetID: "3"}}},
		"d": {Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{{TweetID: "4"}}},
	}}

	m := New(st, f, &stubQuota{limit: 400}, testConfig())
	silentSleep(m)

	var deferred []func()
	m.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		deferred = append(deferred, fn)
		return time.NewTimer(time.Hour)
	}
	defer m.StopPending()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Run(ctx))
	require.Len(t, deferred, 1)

	// Shutdown lands before the deferred batch fires.
	cancel()
	deferred[0]()

	// Only batch 0's accounts were processed.
	assert.Equal(t, []string{"a", "b", "c"}, f.calls)
}

func TestFiredTimersDiscarded(t *testing.T) {
	st := newMemStore(accounts("a", "b", "c", "d", "e", "f", "g")...)
	f := &scriptedFetcher{results: map[string]fetcher.Result{}}
	for _, h := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		f.results[h] = fetcher.Result{Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{{TweetID: "t-" + h}}}
	}

	m := New(st, f, &stubQuota{limit: 400}, testConfig())
	silentSleep(m)

	var deferred []func()
	m.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		deferred = append(deferred, fn)
		return time.NewTimer(time.Hour)
	}
	defer m.StopPending()

	require.NoError(t, m.Run(context.Background()))
	require.Len(t, deferred, 2)

	m.mu.Lock()
	pending := len(m.timers)
	m.mu.Unlock()
	assert.Equal(t, 2, pending)

	// A fired batch removes its own timer, so repeated cron runs don't
	// accumulate dead entries.
	for _, fn := range deferred {
		fn()
	}

	m.mu.Lock()
	pending = len(m.timers)
	m.mu.Unlock()
	assert.Zero(t, pending)
}

func TestQuotaExhaustedSkipsBatchWithoutCalls(t *testing.T) {
	st := newMemStore(accounts("a", "b", "c")...)
	f := &scriptedFetcher{results: map[string]fetcher.Result{}}
	q := &stubQuota{limited: true, calls: 400, limit: 400}

	m := New(st, f, q, testConfig())
	silentSleep(m)

	require.NoError(t, m.Run(context.Background()))

	assert.Empty(t, f.calls)
	assert.Equal(t, 400, q.calls) // untouched
	assert.Empty(t, st.lastChecked)
}

func TestValidationErrorRoutedToReview(t *testing.T) {
	st := newMemStore(accounts("ab")...)
	f := &scriptedFetcher{results: map[string]fetcher.Result{
		"ab": {
			Outcome: fetcher.OutcomeValidationError,
			Code:    fetcher.CodeValidationError,
			Message: "username [ab] does not match the expected pattern",
		},
	}}

	m := New(st, f, &stubQuota{limit: 400}, testConfig())
	silentSleep(m)

	require.NoError(t, m.Run(context.Background()))

	require.Contains(t, st.reviews, "ab")
	assert.Equal(t, "VALIDATION_ERROR", st.reviews["ab"].ErrorCode)
	assert.Equal(t, 1, st.lastChecked[1])
}

func TestNoTweetsRoutedToReview(t *testing.T) {
	st := newMemStore(accounts("ghost123")...)
	f := &scriptedFetcher{results: map[string]fetcher.Result{
		"ghost123": {Outcome: fetcher.OutcomeNoTweets, Code: fetcher.CodeNoTweets, Message: "0 tweets"},
	}}

	m := New(st, f, &stubQuota{limit: 400}, testConfig())
	silentSleep(m)

	require.NoError(t, m.Run(context.Background()))

	require.Contains(t, st.reviews, "ghost123")
	assert.Equal(t, "NO_TWEETS", st.reviews["ghost123"].ErrorCode)
	assert.Equal(t, 1, st.lastChecked[1])
}

func TestFetchErrorSkipsAccountThisRun(t *testing.T) {
	st := newMemStore(accounts("flaky")...)
	f := &scriptedFetcher{results: map[string]fetcher.Result{
		"flaky": {Outcome: fetcher.OutcomeError, Attempts: 3},
	}}

	m := New(st, f, &stubQuota{limit: 400}, testConfig())
	silentSleep(m)

	require.NoError(t, m.Run(context.Background()))

	assert.Empty(t, st.reviews)
	// Not marked checked, so it stays at the front of the next run.
	assert.Empty(t, st.lastChecked)
}

func TestReconcileUnchangedOnlyTouchesLastChecked(t *testing.T) {
	st := newMemStore(accounts("OBEYGIANT")...)
	st.cached[1] = []types.CachedTweet{{AccountID: 1, TweetID: "10"}, {AccountID: 1, TweetID: "11"}}

	f := &scriptedFetcher{results: map[string]fetcher.Result{
		"OBEYGIANT": {Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{
			{TweetID: "11"}, {TweetID: "10"},
		}},
	}}

	m := New(st, f, &stubQuota{limit: 400}, testConfig())
	silentSleep(m)

	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, 0, st.deleteCalls)
	assert.Equal(t, 0, st.insertCalls)
	assert.Equal(t, 1, st.lastChecked[1])
}

func TestReconcileChangedReplacesCache(t *testing.T) {
	st := newMemStore(accounts("OBEYGIANT")...)
	st.cached[1] = []types.CachedTweet{{AccountID: 1, TweetID: "10"}, {AccountID: 1, TweetID: "11"}}

	f := &scriptedFetcher{results: map[string]fetcher.Result{
		"OBEYGIANT": {Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{
			{TweetID: "11"}, {TweetID: "12"},
		}},
	}}

	m := New(st, f, &stubQuota{limit: 400}, testConfig())
	silentSleep(m)

	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, 1, st.deleteCalls)
	assert.Equal(t, 1, st.insertCalls)
	require.Len(t, st.inserted, 2)
	// Inserted tweets are tagged with the owning account.
	assert.Equal(t, int64(1), st.inserted[0].AccountID)
	assert.Equal(t, int64(1), st.inserted[1].AccountID)
	assert.Equal(t, 1, st.lastChecked[1])
}

func TestChanged(t *testing.T) {
	a := []types.CachedTweet{{TweetID: "1"}, {TweetID: "2"}}

	tests := []struct {
		name   string
		fresh  []types.CachedTweet
		cached []types.CachedTweet
		want   bool
	}{
		{"identical sets", a, []types.CachedTweet{{TweetID: "2"}, {TweetID: "1"}}, false},
		{"different count", a, []types.CachedTweet{{TweetID: "1"}}, true},
		{"new id absent", a, []types.CachedTweet{{TweetID: "1"}, {TweetID: "3"}}, true},
		{"both empty", nil, nil, false},
		{"fresh only", a, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Changed(tt.fresh, tt.cached))
		})
	}
}

func TestRunTestModeProcessesSingleAccount(t *testing.T) {
	st := newMemStore(accounts("OBEYGIANT", "other")...)
	f := &scriptedFetcher{results: map[string]fetcher.Result{
		"OBEYGIANT": {Outcome: fetcher.OutcomeSuccess, Tweets: []types.CachedTweet{{TweetID: "1"}}},
	}}

	cfg := testConfig()
	cfg.TestMode = true
	cfg.TestAccount = "OBEYGIANT"

	m := New(st, f, &stubQuota{limit: 400}, cfg)
	silentSleep(m)

	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, []string{"OBEYGIANT"}, f.calls)
}
