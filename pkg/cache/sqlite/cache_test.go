package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "caption/abc", "A picture of a cat"))

	v, err := c.Get(ctx, "caption/abc")
	require.NoError(t, err)
	assert.Equal(t, "A picture of a cat", v)

	v, err = c.Get(ctx, "caption/other")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v"))
	time.Sleep(10 * time.Millisecond)

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestPurge(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v"))
	require.NoError(t, c.Purge(ctx, "k"))

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Set(ctx, "h1", "data")
	_, _ = c.Get(ctx, "h1") // hit
	_, _ = c.Get(ctx, "h2") // miss

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Set(ctx, "h1", "data")
	_ = c.Set(ctx, "h2", "data")

	require.NoError(t, c.Clear(true))
	stats, _ := c.Stats()
	assert.Equal(t, int64(2), stats.Entries)

	require.NoError(t, c.Clear(false))
	stats, _ = c.Stats()
	assert.Equal(t, int64(0), stats.Entries)
}
