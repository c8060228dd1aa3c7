// Package store persists accounts, cached tweets, and review entries.
package store

import (
	"context"
	"fmt"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/config"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

// ErrAccountExists is returned when adding a handle that is already monitored.
var ErrAccountExists = fmt.Errorf("store: account already exists")

// Store handles all database operations. The monitor writes through it
// and the dashboard reads/writes the same records independently.
type Store interface {
	// AccountsToMonitor returns all accounts ordered least-recently-checked
	// first (never-checked before everything), tie-broken by ascending
	// priority number. Staleness dominates so every account is eventually
	// covered.
	AccountsToMonitor(ctx context.Context) ([]types.Account, error)
	AccountByHandle(ctx context.Context, handle string) (*types.Account, error)
	AddAccount(ctx context.Context, handle string, priority int) error
	// RemoveAccount deletes the account and its cached tweets.
	RemoveAccount(ctx context.Context, id int64) error
	UpdateAccountPriority(ctx context.Context, id int64, priority int) error
	UpdateLastChecked(ctx context.Context, id int64) error

	CachedTweets(ctx context.Context, accountID int64) ([]types.CachedTweet, error)
	DeleteCachedTweets(ctx context.Context, accountID int64) error
	InsertCachedTweets(ctx context.Context, tweets []types.CachedTweet) error

	// UpsertReviewEntry records a permanent fetch failure, keyed by
	// handle. A repeat failure overwrites message, code, and timestamp
	// and moves the entry back to pending; operator notes survive.
	UpsertReviewEntry(ctx context.Context, handle, message, code string) error
	ReviewEntries(ctx context.Context) ([]types.ReviewEntry, error)
	UpdateReviewStatus(ctx context.Context, id int64, status types.ReviewStatus, notes string) error

	Close() error
}

// New creates a Store for the configured backend.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			p, err := config.DefaultSQLitePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(context.Background(), cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
