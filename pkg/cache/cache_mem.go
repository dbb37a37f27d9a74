package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemStore is an in-process LRU with per-entry expiry.
type MemStore struct {
	Data *expirable.LRU[string, string]
}

var _ Store = MemStore{}

func NewMemStore(capacity int, ttl time.Duration) MemStore {
	return MemStore{
		Data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s MemStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := s.Data.Get(key)
	if !ok {
		return "", nil
	}
	return v, nil
}

func (s MemStore) Set(ctx context.Context, key, val string) error {
	s.Data.Add(key, val)
	return nil
}

func (s MemStore) Purge(ctx context.Context, key string) error {
	s.Data.Remove(key)
	return nil
}
