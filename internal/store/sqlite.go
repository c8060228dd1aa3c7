package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

// SQLite is the default single-file backend.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if necessary) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *SQLite) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS x_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		platform TEXT NOT NULL DEFAULT 'x',
		priority INTEGER NOT NULL DEFAULT 3,
		last_checked DATETIME
	);

	CREATE TABLE IF NOT EXISTS tweets_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES x_accounts(id) ON DELETE CASCADE,
		tweet_id TEXT NOT NULL UNIQUE,
		tweet_text TEXT NOT NULL,
		tweet_url TEXT,
		created_at DATETIME,
		fetched_at DATETIME NOT NULL,
		engagement_score REAL NOT NULL DEFAULT 0,
		summary TEXT,
		vibe_tags TEXT,
		public_metrics TEXT
	);

	CREATE TABLE IF NOT EXISTS accounts_to_review (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		error_message TEXT,
		error_code TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tweets_cache_account ON tweets_cache(account_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_last_checked ON x_accounts(last_checked);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) AccountsToMonitor(ctx context.Context) ([]types.Account, error) {
	// SQLite sorts NULL first on ASC, so never-checked accounts lead.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, handle, platform, priority, last_checked
		FROM x_accounts
		ORDER BY last_checked ASC, priority ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

func (s *SQLite) AccountByHandle(ctx context.Context, handle string) (*types.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, handle, platform, priority, last_checked
		FROM x_accounts WHERE handle = ?
	`, handle)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLite) AddAccount(ctx context.Context, handle string, priority int) error {
	if priority < 1 || priority > 5 {
		priority = 3
	}

	existing, err := s.AccountByHandle(ctx, handle)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAccountExists
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO x_accounts (handle, platform, priority, last_checked)
		VALUES (?, 'x', ?, NULL)
	`, handle, priority)
	return err
}

func (s *SQLite) RemoveAccount(ctx context.Context, id int64) error {
	// Cached tweets go with the account via ON DELETE CASCADE.
	_, err := s.db.ExecContext(ctx, `DELETE FROM x_accounts WHERE id = ?`, id)
	return err
}

func (s *SQLite) UpdateAccountPriority(ctx context.Context, id int64, priority int) error {
	if priority < 1 || priority > 5 {
		return fmt.Errorf("store: invalid priority %d, must be between 1 and 5", priority)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE x_accounts SET priority = ? WHERE id = ?`, priority, id)
	return err
}

func (s *SQLite) UpdateLastChecked(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE x_accounts SET last_checked = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

func (s *SQLite) CachedTweets(ctx context.Context, accountID int64) ([]types.CachedTweet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, tweet_id, tweet_text, tweet_url,
			created_at, fetched_at, engagement_score, summary, vibe_tags, public_metrics
		FROM tweets_cache
		WHERE account_id = ?
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTweets(rows)
}

func (s *SQLite) DeleteCachedTweets(ctx context.Context, accountID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tweets_cache WHERE account_id = ?`, accountID)
	return err
}

func (s *SQLite) InsertCachedTweets(ctx context.Context, tweets []types.CachedTweet) error {
	for _, t := range tweets {
		tagsJSON, _ := json.Marshal(t.VibeTags)
		metricsJSON, _ := json.Marshal(t.PublicMetrics)

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tweets_cache (account_id, tweet_id, tweet_text, tweet_url,
				created_at, fetched_at, engagement_score, summary, vibe_tags, public_metrics)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tweet_id) DO UPDATE SET
				account_id = excluded.account_id,
				tweet_text = excluded.tweet_text,
				fetched_at = excluded.fetched_at,
				engagement_score = excluded.engagement_score,
				summary = excluded.summary,
				vibe_tags = excluded.vibe_tags,
				public_metrics = excluded.public_metrics
		`, t.AccountID, t.TweetID, t.Text, t.URL,
			t.CreatedAt, t.FetchedAt, t.EngagementScore, t.Summary, string(tagsJSON), string(metricsJSON))
		if err != nil {
			return fmt.Errorf("inserting tweet %s: %w", t.TweetID, err)
		}
	}
	return nil
}

func (s *SQLite) UpsertReviewEntry(ctx context.Context, handle, message, code string) error {
	// A repeat failure moves the entry back to pending but keeps any
	// operator notes.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts_to_review (handle, error_message, error_code, status, created_at)
		VALUES (?, ?, ?, 'pending', ?)
		ON CONFLICT(handle) DO UPDATE SET
			error_message = excluded.error_message,
			error_code = excluded.error_code,
			status = 'pending',
			created_at = excluded.created_at
	`, handle, message, code, time.Now().UTC())
	return err
}

func (s *SQLite) ReviewEntries(ctx context.Context) ([]types.ReviewEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, handle, error_message, error_code, status, notes, created_at
		FROM accounts_to_review
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.ReviewEntry
	for rows.Next() {
		var e types.ReviewEntry
		if err := rows.Scan(&e.ID, &e.Handle, &e.ErrorMessage, &e.ErrorCode, &e.Status, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLite) UpdateReviewStatus(ctx context.Context, id int64, status types.ReviewStatus, notes string) error {
	if !status.Valid() {
		return fmt.Errorf("store: invalid review status %q", status)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts_to_review SET status = ?, notes = ? WHERE id = ?
	`, status, notes, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*types.Account, error) {
	var a types.Account
	var lastChecked sql.NullTime
	if err := row.Scan(&a.ID, &a.Handle, &a.Platform, &a.Priority, &lastChecked); err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		a.LastChecked = &t
	}
	return &a, nil
}

func scanAccounts(rows *sql.Rows) ([]types.Account, error) {
	var accounts []types.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func scanTweets(rows *sql.Rows) ([]types.CachedTweet, error) {
	var tweets []types.CachedTweet
	for rows.Next() {
		var t types.CachedTweet
		var tagsJSON, metricsJSON sql.NullString
		err := rows.Scan(&t.ID, &t.AccountID, &t.TweetID, &t.Text, &t.URL,
			&t.CreatedAt, &t.FetchedAt, &t.EngagementScore, &t.Summary, &tagsJSON, &metricsJSON)
		if err != nil {
			return nil, err
		}
		if tagsJSON.Valid {
			json.Unmarshal([]byte(tagsJSON.String), &t.VibeTags)
		}
		if metricsJSON.Valid {
			json.Unmarshal([]byte(metricsJSON.String), &t.PublicMetrics)
		}
		tweets = append(tweets, t)
	}
	return tweets, rows.Err()
}
