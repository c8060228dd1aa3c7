package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

// Postgres backs the store with a managed Postgres database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("store: postgres driver requires DATABASE_URL")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parsing database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connecting: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS x_accounts (
		id BIGSERIAL PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE,
		platform TEXT NOT NULL DEFAULT 'x',
		priority INT NOT NULL DEFAULT 3,
		last_checked TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS tweets_cache (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES x_accounts(id) ON DELETE CASCADE,
		tweet_id TEXT NOT NULL UNIQUE,
		tweet_text TEXT NOT NULL,
		tweet_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ,
		fetched_at TIMESTAMPTZ NOT NULL,
		engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		vibe_tags JSONB,
		public_metrics JSONB
	);

	CREATE TABLE IF NOT EXISTS accounts_to_review (
		id BIGSERIAL PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE,
		error_message TEXT NOT NULL DEFAULT '',
		error_code TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tweets_cache_account ON tweets_cache(account_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_last_checked ON x_accounts(last_checked);
	`
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *Postgres) AccountsToMonitor(ctx context.Context) ([]types.Account, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, handle, platform, priority, last_checked
		FROM x_accounts
		ORDER BY last_checked ASC NULLS FIRST, priority ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []types.Account
	for rows.Next() {
		a, err := pgScanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (p *Postgres) AccountByHandle(ctx context.Context, handle string) (*types.Account, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, handle, platform, priority, last_checked
		FROM x_accounts WHERE handle = $1
	`, handle)

	a, err := pgScanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (p *Postgres) AddAccount(ctx context.Context, handle string, priority int) error {
	if priority < 1 || priority > 5 {
		priority = 3
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO x_accounts (handle, platform, priority, last_checked)
		VALUES ($1, 'x', $2, NULL)
		ON CONFLICT (handle) DO NOTHING
	`, handle, priority)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountExists
	}
	return nil
}

func (p *Postgres) RemoveAccount(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM x_accounts WHERE id = $1`, id)
	return err
}

func (p *Postgres) UpdateAccountPriority(ctx context.Context, id int64, priority int) error {
	if priority < 1 || priority > 5 {
		return fmt.Errorf("store: invalid priority %d, must be between 1 and 5", priority)
	}
	_, err := p.pool.Exec(ctx, `UPDATE x_accounts SET priority = $1 WHERE id = $2`, priority, id)
	return err
}

func (p *Postgres) UpdateLastChecked(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE x_accounts SET last_checked = now() WHERE id = $1`, id)
	return err
}

func (p *Postgres) CachedTweets(ctx context.Context, accountID int64) ([]types.CachedTweet, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, account_id, tweet_id, tweet_text, tweet_url,
			created_at, fetched_at, engagement_score, summary, vibe_tags, public_metrics
		FROM tweets_cache
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tweets []types.CachedTweet
	for rows.Next() {
		var t types.CachedTweet
		var tagsJSON, metricsJSON []byte
		err := rows.Scan(&t.ID, &t.AccountID, &t.TweetID, &t.Text, &t.URL,
			&t.CreatedAt, &t.FetchedAt, &t.EngagementScore, &t.Summary, &tagsJSON, &metricsJSON)
		if err != nil {
			return nil, err
		}
		if len(tagsJSON) > 0 {
			json.Unmarshal(tagsJSON, &t.VibeTags)
		}
		if len(metricsJSON) > 0 {
			json.Unmarshal(metricsJSON, &t.PublicMetrics)
		}
		tweets = append(tweets, t)
	}
	return tweets, rows.Err()
}

func (p *Postgres) DeleteCachedTweets(ctx context.Context, accountID int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM tweets_cache WHERE account_id = $1`, accountID)
	return err
}

func (p *Postgres) InsertCachedTweets(ctx context.Context, tweets []types.CachedTweet) error {
	batch := &pgx.Batch{}
	for _, t := range tweets {
		tagsJSON, _ := json.Marshal(t.VibeTags)
		metricsJSON, _ := json.Marshal(t.PublicMetrics)

		batch.Queue(`
			INSERT INTO tweets_cache (account_id, tweet_id, tweet_text, tweet_url,
				created_at, fetched_at, engagement_score, summary, vibe_tags, public_metrics)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (tweet_id) DO UPDATE SET
				account_id = excluded.account_id,
				tweet_text = excluded.tweet_text,
				fetched_at = excluded.fetched_at,
				engagement_score = excluded.engagement_score,
				summary = excluded.summary,
				vibe_tags = excluded.vibe_tags,
				public_metrics = excluded.public_metrics
		`, t.AccountID, t.TweetID, t.Text, t.URL,
			t.CreatedAt, t.FetchedAt, t.EngagementScore, t.Summary, tagsJSON, metricsJSON)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range tweets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("inserting tweets: %w", err)
		}
	}
	return nil
}

func (p *Postgres) UpsertReviewEntry(ctx context.Context, handle, message, code string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO accounts_to_review (handle, error_message, error_code, status, created_at)
		VALUES ($1, $2, $3, 'pending', $4)
		ON CONFLICT (handle) DO UPDATE SET
			error_message = excluded.error_message,
			error_code = excluded.error_code,
			status = 'pending',
			created_at = excluded.created_at
	`, handle, message, code, time.Now().UTC())
	return err
}

func (p *Postgres) ReviewEntries(ctx context.Context) ([]types.ReviewEntry, error) {
	rows, err := p.pool.Query(ctx, `
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

func (p *Postgres) UpdateReviewStatus(ctx context.Context, id int64, status types.ReviewStatus, notes string) error {
	if !status.Valid() {
		return fmt.Errorf("store: invalid review status %q", status)
	}
	_, err := p.pool.Exec(ctx, `
		UPDATE accounts_to_review SET status = $1, notes = $2 WHERE id = $3
	`, status, notes, id)
	return err
}

type pgRow interface {
	Scan(dest ...any) error
}

func pgScanAccount(row pgRow) (*types.Account, error) {
	var a types.Account
	var lastChecked *time.Time
	if err := row.Scan(&a.ID, &a.Handle, &a.Platform, &a.Priority, &lastChecked); err != nil {
		return nil, err
	}
	a.LastChecked = lastChecked
	return &a, nil
}
