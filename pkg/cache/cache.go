// Package cache stores synthesized audio blobs so the same segment is never
// downloaded twice for the same voice.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/netscane/rovel-desk/pkg/db"
)

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// SQLiteCache implements Cacher using pkg/db.
type SQLiteCache struct {
	db *db.DB
}

// NewSQLiteCache creates a new cache.
func NewSQLiteCache(d *db.DB) *SQLiteCache {
	return &SQLiteCache{db: d}
}

func (c *SQLiteCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var data []byte
	err := c.db.QueryRowContext(ctx, "SELECT data FROM audio_cache WHERE key = ?", key).Scan(&data)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Cache: read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (c *SQLiteCache) SetCache(ctx context.Context, key string, val []byte) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO audio_cache (key, data) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET data = excluded.data, created_at = CURRENT_TIMESTAMP",
		key, val)
	return err
}

// NullCache is a Cacher that never hits. Used when the database is disabled.
type NullCache struct{}

func (NullCache) GetCache(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (NullCache) SetCache(ctx context.Context, key string, val []byte) error { return nil }
