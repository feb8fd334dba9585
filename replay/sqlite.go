// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package replay

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/jwt"
	_ "modernc.org/sqlite"
)

var _ jwt.ReplayCache = (*SQLiteCache)(nil)

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS replay_cache (
			id          TEXT PRIMARY KEY,
			expires_at  INTEGER NOT NULL
		);`

	findSQL = `SELECT 1 FROM replay_cache WHERE id = ? AND expires_at > ?`

	// An expired row is overwritten; a live one is left alone, so the
	// statement changes no rows.
	addSQL = `
		INSERT INTO replay_cache (id, expires_at) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET expires_at = excluded.expires_at
		WHERE replay_cache.expires_at <= ?`

	pruneSQL = `DELETE FROM replay_cache WHERE expires_at <= ?`
)

// SQLiteCache is a jwt.ReplayCache persisted in a SQLite database. Expiry
// times are stored as unix nanoseconds.
type SQLiteCache struct {
	db            *sql.DB
	now           func() time.Time
	pruneInterval time.Duration
	logger        hclog.Logger

	mu        sync.Mutex
	lastPrune time.Time
}

// NewSQLiteCache opens (creating if needed) the SQLite database at path and
// bootstraps its schema. Use ":memory:" for a database which lives as long as
// the cache.
//
// Supported options:
//   - WithNow
//   - WithPruneInterval
//   - WithLogger
func NewSQLiteCache(ctx context.Context, path string, opt ...Option) (*SQLiteCache, error) {
	const op = "replay.NewSQLiteCache"
	if path == "" {
		return nil, fmt.Errorf("%s: missing path: %w", op, ErrInvalidParameter)
	}
	opts := getCacheOpts(opt...)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to open database: %w", op, err)
	}
	// Writes are serialized through one connection, which also keeps a
	// ":memory:" database alive for the life of the cache.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: unable to init replay_cache table: %w", op, err)
	}
	opts.withLogger.Debug("replay cache opened", "path", path)
	return &SQLiteCache{
		db:            db,
		now:           opts.withNow,
		pruneInterval: opts.withPruneInterval,
		logger:        opts.withLogger,
	}, nil
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// TryFind reports whether id is present and not yet expired.
func (c *SQLiteCache) TryFind(ctx context.Context, id string) (bool, error) {
	const op = "SQLiteCache.TryFind"
	var one int
	err := c.db.QueryRowContext(ctx, findSQL, id, c.now().UnixNano()).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%s: %w", op, err)
	default:
		return true, nil
	}
}

// TryAdd records id until expiry with a single upsert, so concurrent adds of
// the same id are decided by the database.
func (c *SQLiteCache) TryAdd(ctx context.Context, id string, expiry time.Time) (bool, error) {
	const op = "SQLiteCache.TryAdd"
	if id == "" {
		return false, fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	now := c.now()
	res, err := c.db.ExecContext(ctx, addSQL, id, expiry.UnixNano(), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	c.maybePrune(ctx, now)
	return n == 1, nil
}

// Prune deletes every expired entry and returns how many were removed.
func (c *SQLiteCache) Prune(ctx context.Context) (int64, error) {
	const op = "SQLiteCache.Prune"
	res, err := c.db.ExecContext(ctx, pruneSQL, c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// maybePrune is best effort: a failed prune doesn't fail the add.
func (c *SQLiteCache) maybePrune(ctx context.Context, now time.Time) {
	c.mu.Lock()
	if c.pruneInterval > 0 && now.Sub(c.lastPrune) < c.pruneInterval {
		c.mu.Unlock()
		return
	}
	c.lastPrune = now
	c.mu.Unlock()
	n, err := c.Prune(ctx)
	if err != nil {
		c.logger.Warn("unable to prune replay cache", "error", err)
		return
	}
	if n > 0 {
		c.logger.Trace("pruned replay cache", "removed", n)
	}
}
