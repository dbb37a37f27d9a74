package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in redis with a small local TinyLFU in front.
type RedisStore struct {
	Data   *cache.Cache
	TTL    time.Duration
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redisURL and fails if the server does not answer a ping.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	return newRedisStore(context.Background(), rdb, ttl)
}

func newRedisStore(ctx context.Context, rdb *redis.Client, ttl time.Duration) (*RedisStore, error) {
	// check redis connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(1_000, ttl),
	})
	return &RedisStore{
		Data:   data,
		TTL:    ttl,
		client: rdb,
	}, nil
}

func redisCacheKey(key string) string {
	return "persona/" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := s.Data.Get(ctx, redisCacheKey(key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key, val string) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(key),
		Value: val,
		TTL:   s.TTL,
	})
}

func (s *RedisStore) Purge(ctx context.Context, key string) error {
	err := s.Data.Delete(ctx, redisCacheKey(key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
