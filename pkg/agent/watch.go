package agent

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/models"
	"github.com/pario-ai/persona/pkg/platform"
)

func (a *Agent) handleSubmission(ctx context.Context, it platform.Item) error {
	s, ok := it.(*platform.Submission)
	if !ok {
		return nil
	}
	a.counters.postsSeen.Add(1)
	if s.AuthorName == a.client.Me() {
		return nil
	}
	if kws := a.gate.Keywords(s.Title); len(kws) > 0 {
		a.log.Info("bad keyword in title, skipping", zap.String("id", s.ID), zap.Strings("keywords", kws))
		return nil
	}
	if s.IsSelf {
		if kws := a.gate.Keywords(s.SelfText); len(kws) > 0 {
			a.log.Info("bad keyword in post, skipping", zap.String("id", s.ID), zap.Strings("keywords", kws))
			return nil
		}
		if a.cfg.Behavior.LinkpostOnly {
			return nil
		}
	}
	release, ok := a.claim(s)
	if !ok {
		return nil
	}
	defer release()
	if a.alreadyReplied(ctx, s) {
		return nil
	}
	if !a.onTopic(ctx, s) {
		return nil
	}

	text := s.Title
	if s.IsSelf {
		text = s.Title + " " + s.SelfText
	}
	if a.roll() >= a.replyChance(text) {
		return nil
	}
	a.MakeComment(ctx, s)
	return nil
}

// onTopic charges and runs the topic classifier when topics are configured.
func (a *Agent) onTopic(ctx context.Context, s *platform.Submission) bool {
	if !a.gate.TopicsEnabled() {
		return true
	}
	text := platform.Body(s)
	if !a.ledger.AdmitFor(models.SpendTopic, utf8.RuneCountInString(text)) {
		a.log.Info("not enough characters left in budget for topic check")
		return false
	}
	v := a.gate.OnTopic(ctx, text)
	if !v.Admitted {
		a.log.Info("submission off topic, skipping", zap.String("id", s.ID), zap.String("reason", v.Reason))
	}
	return v.Admitted
}

func (a *Agent) handleComment(ctx context.Context, it platform.Item) error {
	c, ok := it.(*platform.Comment)
	if !ok {
		return nil
	}
	a.counters.commentsSeen.Add(1)
	a.considerComment(ctx, c)
	return nil
}

// considerComment decides whether c gets a reply and generates it.
func (a *Agent) considerComment(ctx context.Context, c *platform.Comment) {
	me := a.client.Me()
	if c.AuthorName == me {
		return
	}
	if a.cfg.Behavior.LinkpostOnly {
		sub, err := a.client.Submission(ctx, c.Submission)
		if err != nil {
			a.log.Warn("could not load submission, skipping", zap.String("id", c.ID), zap.Error(err))
			return
		}
		if sub.IsSelf {
			return
		}
	}
	if kws := a.gate.Keywords(c.Body); len(kws) > 0 {
		a.log.Info("bad keyword found, skipping", zap.String("id", c.ID), zap.Strings("keywords", kws))
		return
	}
	release, ok := a.claim(c)
	if !ok {
		return
	}
	defer release()
	if a.alreadyReplied(ctx, c) {
		return
	}

	var parent platform.Item
	if a.cfg.Behavior.FollowupOnly || !c.IsTopLevel() {
		p, err := a.client.Parent(ctx, c)
		if err != nil {
			a.log.Warn("could not load parent, skipping", zap.String("id", c.ID), zap.Error(err))
			return
		}
		if a.cfg.Behavior.FollowupOnly && p.Author() != me {
			return
		}
		parent = p
	}

	if c.IsTopLevel() {
		if a.cfg.Behavior.ForceTopReply {
			a.log.Info("top-level reply forced", zap.String("id", c.ID))
			a.GenerateReply(ctx, c)
			return
		}
		if a.roll() < a.replyChance(c.Body) {
			a.GenerateReply(ctx, c)
		}
		return
	}

	if a.worthReplying(ctx, parent, c) {
		a.GenerateReply(ctx, c)
	}
}

func (a *Agent) handleInbox(ctx context.Context, it platform.Item) error {
	a.counters.inboxSeen.Add(1)
	if err := a.client.MarkRead(ctx, it); err != nil {
		a.log.Warn("could not mark inbox item read", zap.Stringer("ref", it.Ref()), zap.Error(err))
	}

	switch v := it.(type) {
	case *platform.Message:
		if a.isKillMessage(v) {
			a.log.Warn("kill message received", zap.String("from", v.AuthorName))
			return ErrShutdown
		}
		a.log.Debug("ignoring private message", zap.String("from", v.AuthorName))
	case *platform.Comment:
		a.considerComment(ctx, v)
	}
	return nil
}

// isKillMessage reports whether m is the shutdown command from an allowed
// sender. No allowed senders disables the command.
func (a *Agent) isKillMessage(m *platform.Message) bool {
	cmd := a.cfg.Control.ShutdownCommand
	if cmd == "" || strings.TrimSpace(m.Body) != cmd {
		return false
	}
	for _, s := range a.cfg.Control.AllowedSenders {
		if strings.EqualFold(s, m.AuthorName) {
			return true
		}
	}
	a.log.Warn("kill message from unauthorised sender ignored", zap.String("from", m.AuthorName))
	return false
}
