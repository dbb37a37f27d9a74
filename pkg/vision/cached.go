package vision

import (
	"context"

	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/cache"
)

const captionNamespace = "caption"

// CachedCaptioner remembers captions by image URL. Cache failures fall
// through to the wrapped captioner.
type CachedCaptioner struct {
	inner Captioner
	store cache.Store
	log   *zap.Logger
}

var _ Captioner = (*CachedCaptioner)(nil)

// NewCachedCaptioner wraps inner so captions are looked up in store first.
func NewCachedCaptioner(inner Captioner, store cache.Store, log *zap.Logger) *CachedCaptioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedCaptioner{inner: inner, store: store, log: log.Named("caption-cache")}
}

func (c *CachedCaptioner) Caption(ctx context.Context, imageURL string) (string, error) {
	key := cache.Key(captionNamespace, imageURL)
	if v, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn("cache read failed", zap.Error(err))
	} else if v != "" {
		return v, nil
	}

	caption, err := c.inner.Caption(ctx, imageURL)
	if err != nil || caption == "" {
		return caption, err
	}
	if err := c.store.Set(ctx, key, caption); err != nil {
		c.log.Warn("cache write failed", zap.Error(err))
	}
	return caption, nil
}
