package reddit

import (
	"context"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/platform"
)

const (
	seenCacheSize = 4096
	pageSize      = "100"
)

// pollStream polls a listing and yields items it has not seen before,
// oldest first. Whatever the first poll returns is treated as already seen.
type pollStream struct {
	client   *Client
	kind     platform.StreamKind
	path     string
	seen     *lru.Cache[string, struct{}]
	pending  []platform.Item
	primed   bool
	interval time.Duration
}

func newPollStream(c *Client, kind platform.StreamKind, path string) *pollStream {
	seen, _ := lru.New[string, struct{}](seenCacheSize)
	return &pollStream{
		client:   c,
		kind:     kind,
		path:     path,
		seen:     seen,
		interval: c.opts.PollInterval,
	}
}

// Next blocks until a new item arrives, the context ends or a poll fails.
func (s *pollStream) Next(ctx context.Context) (platform.Item, error) {
	for {
		if len(s.pending) > 0 {
			it := s.pending[0]
			s.pending = s.pending[1:]
			return it, nil
		}

		fresh, err := s.poll(ctx)
		if err != nil {
			return nil, err
		}
		if !s.primed {
			s.primed = true
			s.client.log.Info("stream started", zap.String("stream", string(s.kind)), zap.Int("skipped", len(fresh)))
			fresh = nil
		}
		if len(fresh) > 0 {
			s.pending = fresh
			continue
		}

		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// poll returns unseen items from one listing page in chronological order.
func (s *pollStream) poll(ctx context.Context) ([]platform.Item, error) {
	var l listing
	if err := s.client.call(ctx, http.MethodGet, s.path, url.Values{"limit": {pageSize}}, &l); err != nil {
		return nil, err
	}
	items, _, err := l.items()
	if err != nil {
		return nil, err
	}

	var fresh []platform.Item
	// listings are newest first
	for i := len(items) - 1; i >= 0; i-- {
		name := items[i].Ref().Fullname()
		if s.seen.Contains(name) {
			continue
		}
		s.seen.Add(name, struct{}{})
		fresh = append(fresh, items[i])
	}
	return fresh, nil
}
