package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/persona/pkg/models"
)

// Cache is a key/value cache backed by SQLite. Entries survive restarts.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_ms INTEGER NOT NULL
);
`

// New creates a Cache with the given database path and default TTL.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Get retrieves a cached value. A miss or an expired entry returns "".
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	var value string
	var createdAt time.Time
	var ttlMillis int64

	err := c.db.QueryRowContext(ctx,
		`SELECT value, created_at, ttl_ms FROM cache_entries WHERE key = ?`,
		key,
	).Scan(&value, &createdAt, &ttlMillis)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return "", nil
	}
	if err != nil {
		c.misses.Add(1)
		return "", fmt.Errorf("cache get: %w", err)
	}

	ttl := time.Duration(ttlMillis) * time.Millisecond
	if ttl > 0 && time.Since(createdAt) > ttl {
		c.misses.Add(1)
		return "", nil
	}

	c.hits.Add(1)
	return value, nil
}

// Set stores a value in the cache.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, value, created_at, ttl_ms)
		 VALUES (?, ?, ?, ?)`,
		key, value, time.Now().UTC(), c.ttl.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Purge removes a single entry.
func (c *Cache) Purge(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache purge: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	var query string
	if expiredOnly {
		query = `DELETE FROM cache_entries WHERE ttl_ms > 0 AND (julianday('now') - julianday(created_at)) * 86400000 > ttl_ms`
	} else {
		query = `DELETE FROM cache_entries`
	}
	_, err := c.db.Exec(query)
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
