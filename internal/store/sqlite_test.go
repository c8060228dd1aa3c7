package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

func testStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGetAccount(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddAccount(ctx, "OBEYGIANT", 2))

	a, err := s.AccountByHandle(ctx, "OBEYGIANT")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "OBEYGIANT", a.Handle)
	assert.Equal(t, "x", a.Platform)
	assert.Equal(t, 2, a.Priority)
	assert.Nil(t, a.LastChecked)
}

func TestAddAccountDuplicate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddAccount(ctx, "OBEYGIANT", 3))
	err := s.AddAccount(ctx, "OBEYGIANT", 1)
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestAddAccountClampsPriority(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddAccount(ctx, "someone", 99))
	a, err := s.AccountByHandle(ctx, "someone")
	require.NoError(t, err)
	assert.Equal(t, 3, a.Priority)
}

func TestAccountsToMonitorOrdering(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// never-checked accounts come first regardless of priority, then
	// stalest first; priority breaks ties.
	require.NoError(t, s.AddAccount(ctx, "checked_old", 5))
	require.NoError(t, s.AddAccount(ctx, "checked_new", 1))
	require.NoError(t, s.AddAccount(ctx, "never_p2", 2))
	require.NoError(t, s.AddAccount(ctx, "never_p1", 1))

	old, _ := s.AccountByHandle(ctx, "checked_old")
	require.NoError(t, s.UpdateLastChecked(ctx, old.ID))
	time.Sleep(10 * time.Millisecond)
	newer, _ := s.AccountByHandle(ctx, "checked_new")
	require.NoError(t, s.UpdateLastChecked(ctx, newer.ID))

	accounts, err := s.AccountsToMonitor(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 4)

	assert.Equal(t, "never_p1", accounts[0].Handle)
	assert.Equal(t, "never_p2", accounts[1].Handle)
	assert.Equal(t, "checked_old", accounts[2].Handle)
	assert.Equal(t, "checked_new", accounts[3].Handle)
}

func TestCachedTweetsRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddAccount(ctx, "OBEYGIANT", 3))
	a, _ := s.AccountByHandle(ctx, "OBEYGIANT")

	now := time.Now().UTC().Truncate(time.Second)
	tweets := []types.CachedTweet{
		{
			AccountID:       a.ID,
			TweetID:         "100",
			Text:            "new print drops tomorrow #obey",
			URL:             "https://twitter.com/OBEYGIANT/status/100",
			CreatedAt:       now.Add(-time.Hour),
			FetchedAt:       now,
			EngagementScore: 42.5,
			Summary:         "new print drops tomorrow #obey",
			VibeTags:        []string{"obey"},
			PublicMetrics:   types.PublicMetrics{RetweetCount: 10, LikeCount: 25},
		},
		{
			AccountID: a.ID,
			TweetID:   "101",
			Text:      "second",
			URL:       "https://twitter.com/OBEYGIANT/status/101",
			CreatedAt: now.Add(-2 * time.Hour),
			FetchedAt: now,
		},
	}

	require.NoError(t, s.InsertCachedTweets(ctx, tweets))

	got, err := s.CachedTweets(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered newest first.
	assert.Equal(t, "100", got[0].TweetID)
	assert.Equal(t, []string{"obey"}, got[0].VibeTags)
	assert.Equal(t, 10, got[0].PublicMetrics.RetweetCount)
	assert.InDelta(t, 42.5, got[0].EngagementScore, 0.001)

	require.NoError(t, s.DeleteCachedTweets(ctx, a.ID))
	got, err = s.CachedTweets(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemoveAccountCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddAccount(ctx, "OBEYGIANT", 3))
	a, _ := s.AccountByHandle(ctx, "OBEYGIANT")

	require.NoError(t, s.InsertCachedTweets(ctx, []types.CachedTweet{
		{AccountID: a.ID, TweetID: "1", Text: "x", FetchedAt: time.Now()},
	}))

	require.NoError(t, s.RemoveAccount(ctx, a.ID))

	got, err := s.CachedTweets(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	gone, err := s.AccountByHandle(ctx, "OBEYGIANT")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestReviewEntryUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertReviewEntry(ctx, "ab", "username too short", "VALIDATION_ERROR"))

	entries, err := s.ReviewEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ReviewPending, entries[0].Status)

	// Operator triages it and leaves notes.
	require.NoError(t, s.UpdateReviewStatus(ctx, entries[0].ID, types.ReviewIgnored, "known bad import"))

	// A repeat failure re-opens the entry but keeps the notes.
	require.NoError(t, s.UpsertReviewEntry(ctx, "ab", "still does not match", "VALIDATION_ERROR"))

	entries, err = s.ReviewEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ReviewPending, entries[0].Status)
	assert.Equal(t, "known bad import", entries[0].Notes)
	assert.Equal(t, "still does not match", entries[0].ErrorMessage)
}

func TestUpdateReviewStatusValidation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertReviewEntry(ctx, "ghost123", "no tweets", "NO_TWEETS"))
	entries, _ := s.ReviewEntries(ctx)
	require.Len(t, entries, 1)

	err := s.UpdateReviewStatus(ctx, entries[0].ID, "bogus", "")
	assert.Error(t, err)
}

func TestUpdatePriorityValidation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddAccount(ctx, "OBEYGIANT", 3))
	a, _ := s.AccountByHandle(ctx, "OBEYGIANT")

	assert.Error(t, s.UpdateAccountPriority(ctx, a.ID, 0))
	assert.Error(t, s.UpdateAccountPriority(ctx, a.ID, 6))
	require.NoError(t, s.UpdateAccountPriority(ctx, a.ID, 1))

	a, _ = s.AccountByHandle(ctx, "OBEYGIANT")
	assert.Equal(t, 1, a.Priority)
}
