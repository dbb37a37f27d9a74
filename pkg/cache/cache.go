// Package cache provides key/value stores for values that are expensive to
// recompute, such as image captions.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pario-ai/persona/pkg/cache/sqlite"
)

// Store is a string key/value cache. Get returns "" on a miss.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, val string) error
	Purge(ctx context.Context, key string) error
}

var _ Store = (*sqlite.Cache)(nil)

// Options selects and sizes a Store.
type Options struct {
	Backend  string
	DBPath   string
	TTL      time.Duration
	Capacity int
	RedisURL string
}

// Open builds the Store named by opts.Backend. The returned close function
// releases any underlying connection.
func Open(opts Options) (Store, func() error, error) {
	switch opts.Backend {
	case "", "sqlite":
		c, err := sqlite.New(opts.DBPath, opts.TTL)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "memory":
		return NewMemStore(opts.Capacity, opts.TTL), func() error { return nil }, nil
	case "redis":
		s, err := NewRedisStore(opts.RedisURL, opts.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis cache: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Key derives a fixed-length cache key from a namespace and an arbitrary value.
func Key(namespace, value string) string {
	h := sha256.Sum256([]byte(value))
	return namespace + "/" + hex.EncodeToString(h[:])
}
