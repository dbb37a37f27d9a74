package agent

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/platform"
)

const (
	answeredSize = 2048
	answeredTTL  = 24 * time.Hour
)

// targets tracks items a watcher is working on and items recently answered.
// The same comment can arrive on more than one stream, so every watcher
// claims its target before checking the platform for existing replies.
type targets struct {
	mu       sync.Mutex
	active   map[string]struct{}
	answered *expirable.LRU[string, struct{}]
}

func newTargets() *targets {
	return &targets{
		active:   make(map[string]struct{}),
		answered: expirable.NewLRU[string, struct{}](answeredSize, nil, answeredTTL),
	}
}

// claim reports whether name is free and, if so, marks it active.
func (t *targets) claim(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.active[name]; busy {
		return false
	}
	if t.answered.Contains(name) {
		return false
	}
	t.active[name] = struct{}{}
	return true
}

func (t *targets) release(name string) {
	t.mu.Lock()
	delete(t.active, name)
	t.mu.Unlock()
}

func (t *targets) markAnswered(name string) {
	t.answered.Add(name, struct{}{})
}

// claim takes target for the calling watcher. The returned release func must
// be called once the attempt ends.
func (a *Agent) claim(target platform.Item) (release func(), ok bool) {
	name := target.Ref().Fullname()
	if !a.targets.claim(name) {
		a.log.Debug("target already handled elsewhere, skipping", zap.String("target", name))
		return nil, false
	}
	return func() { a.targets.release(name) }, true
}

// alreadyReplied reports whether the bot has a direct reply on target.
// Failing to list replies counts as replied so nothing is posted twice.
func (a *Agent) alreadyReplied(ctx context.Context, target platform.Item) bool {
	if err := a.client.ExpandAllReplies(ctx, target); err != nil {
		a.log.Warn("could not expand replies, skipping", zap.Stringer("target", target.Ref()), zap.Error(err))
		return true
	}
	replies, err := a.client.Replies(ctx, target)
	if err != nil {
		a.log.Warn("could not list replies, skipping", zap.Stringer("target", target.Ref()), zap.Error(err))
		return true
	}
	me := a.client.Me()
	for _, r := range replies {
		if r.Author() == me {
			a.log.Debug("already replied", zap.Stringer("target", target.Ref()))
			return true
		}
	}
	return false
}
