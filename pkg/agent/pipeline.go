package agent

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/generate"
	"github.com/pario-ai/persona/pkg/models"
	"github.com/pario-ai/persona/pkg/platform"
	"github.com/pario-ai/persona/pkg/prompt"
	"github.com/pario-ai/persona/pkg/textgen"
)

// MakePost generates and submits a new post. It reports whether a post was
// made.
func (a *Agent) MakePost(ctx context.Context) bool {
	text := generate.SelfPostPrompt
	if a.roll() < a.cfg.Behavior.LinkpostShare {
		text = generate.LinkPostPrompt
	}
	d := models.Decision{Action: models.ActionPost, Target: "r/" + a.cfg.Bot.Subreddit, Model: a.cfg.Models.Post, Prompt: text}
	a.log.Info("generating a post", zap.String("subreddit", a.cfg.Bot.Subreddit))

	res := a.selector.FirstAcceptable(ctx, generate.Request{
		Prompt:  text,
		Model:   a.cfg.Models.Post,
		Params:  textgen.Params(a.cfg.Models.PostParams).With("return_full_text", true),
		Purpose: models.SpendPostPrompt,
		Clean:   generate.CleanPost,
	})
	d.Cost = res.Spent
	a.reportStatus()
	if !a.concluded(ctx, &d, res) {
		return false
	}

	post, _ := generate.ExtractPost(res.Candidate.Raw)
	post.Flair = a.cfg.Bot.PostFlair
	if text == generate.LinkPostPrompt {
		post.Body = ""
		url, err := a.linkFor(ctx, post.Title)
		if err != nil {
			a.log.Warn("image generation failed", zap.Error(err))
			d.Outcome, d.Reason = models.OutcomeFailed, err.Error()
			a.record(ctx, d)
			return false
		}
		post.URL = url
	} else {
		post.URL = ""
	}

	ref, err := a.client.Submit(ctx, post)
	if err != nil {
		a.log.Warn("post failed", zap.Error(err))
		d.Outcome, d.Reason = models.OutcomeFailed, err.Error()
		a.record(ctx, d)
		return false
	}

	a.counters.postsMade.Add(1)
	a.log.Info("post successful", zap.Stringer("ref", ref), zap.String("title", post.Title))
	a.reportStatus()
	d.Outcome, d.Target = models.OutcomePosted, ref.Fullname()
	a.record(ctx, d)
	return true
}

func (a *Agent) linkFor(ctx context.Context, title string) (string, error) {
	if a.images == nil {
		return "", errors.New("no image generator configured")
	}
	return a.images.GenerateImage(ctx, title)
}

// MakeComment writes a top-level comment on s.
func (a *Agent) MakeComment(ctx context.Context, s *platform.Submission) bool {
	a.log.Info("commenting on submission", zap.String("id", s.ID), zap.String("title", s.Title))
	d := models.Decision{Action: models.ActionComment, Target: s.Ref().Fullname(), Model: a.cfg.Models.Reply}

	p, err := a.builder.ForComment(ctx, s)
	if err != nil {
		a.discard(ctx, d, err)
		return false
	}
	return a.respond(ctx, d, s, p)
}

// GenerateReply writes a reply to c with the thread above it as context.
func (a *Agent) GenerateReply(ctx context.Context, c *platform.Comment) bool {
	a.log.Info("generating a reply", zap.String("id", c.ID), zap.String("body", c.Body))
	d := models.Decision{Action: models.ActionReply, Target: c.Ref().Fullname(), Model: a.cfg.Models.Reply}

	p, err := a.builder.ForReply(ctx, c)
	if err != nil {
		a.discard(ctx, d, err)
		return false
	}
	return a.respond(ctx, d, c, p)
}

func (a *Agent) discard(ctx context.Context, d models.Decision, err error) {
	switch {
	case errors.Is(err, prompt.ErrContextIncomplete):
		a.log.Info("post not in prompt, discarding")
	case errors.Is(err, prompt.ErrPromptTooLong):
		a.log.Info("prompt is too long, skipping")
	default:
		a.log.Warn("could not build prompt", zap.Error(err))
	}
	d.Outcome, d.Reason = models.OutcomeDiscarded, err.Error()
	a.record(ctx, d)
}

// respond runs selection for p and posts the winner as a reply to target.
func (a *Agent) respond(ctx context.Context, d models.Decision, target platform.Item, p prompt.Prompt) bool {
	d.Prompt = p.Text
	a.log.Debug("prompt", zap.String("prompt", p.Text))

	res := a.selector.Select(ctx, a.cfg.Generation.Selection, generate.Request{
		Prompt:      p.Text,
		Model:       a.cfg.Models.Reply,
		Params:      textgen.Params(a.cfg.Models.ReplyParams),
		Purpose:     models.SpendReplyPrompt,
		RankContext: p.Conversation.RankText(),
	})
	d.Cost = res.Spent
	a.reportStatus()
	if !a.concluded(ctx, &d, res) {
		return false
	}

	body := strings.TrimSpace(res.Candidate.Cleaned)
	ref, err := a.client.Reply(ctx, target, body)
	if err != nil {
		a.log.Warn("reply failed", zap.Error(err))
		d.Outcome, d.Reason = models.OutcomeFailed, err.Error()
		a.record(ctx, d)
		return false
	}

	a.targets.markAnswered(target.Ref().Fullname())
	a.counters.commentsMade.Add(1)
	a.log.Info("reply successful", zap.Stringer("ref", ref))
	a.reportStatus()
	d.Outcome, d.Output, d.Target = models.OutcomePosted, body, target.Ref().Fullname()
	a.record(ctx, d)
	return true
}

// concluded records a failed selection and reports whether a candidate is
// available.
func (a *Agent) concluded(ctx context.Context, d *models.Decision, res generate.Result) bool {
	switch {
	case res.Declined:
		a.log.Info("not enough characters left in budget", zap.String("action", string(d.Action)))
		d.Outcome = models.OutcomeDeclined
	case !res.Found:
		a.log.Info("no acceptable candidate", zap.String("action", string(d.Action)), zap.Int("attempts", res.Attempts))
		d.Outcome = models.OutcomeNoCandidate
	default:
		d.Output = res.Candidate.Cleaned
		return true
	}
	a.record(ctx, *d)
	return false
}

// worthReplying scores how much engagement a reply to c could draw and
// reports whether it clears the configured minimum.
func (a *Agent) worthReplying(ctx context.Context, parent platform.Item, c *platform.Comment) bool {
	a.log.Info("checking comment", zap.String("id", c.ID), zap.String("body", c.Body))
	d := models.Decision{Action: models.ActionScore, Target: c.Ref().Fullname(), Model: a.cfg.Models.ReplyScore}

	prior := platform.Body(parent)
	input := textgen.RankInput(prior, c.Body)
	if limit := a.cfg.Generation.MaxScoreWords; limit > 0 && prompt.WordCount(input) > limit {
		a.log.Info("comment thread too long to score, skipping")
		d.Outcome, d.Reason = models.OutcomeSkipped, prompt.ErrPromptTooLong.Error()
		a.record(ctx, d)
		return false
	}
	cost := utf8.RuneCountInString(input)
	if !a.ledger.AdmitFor(models.SpendReplyScore, cost) {
		a.log.Info("not enough characters left in budget to score comment")
		d.Outcome = models.OutcomeDeclined
		a.record(ctx, d)
		return false
	}
	d.Cost = int64(cost)
	a.reportStatus()

	if a.ranker == nil {
		d.Outcome, d.Reason = models.OutcomeFailed, "no ranker configured"
		a.record(ctx, d)
		return false
	}
	score, err := a.ranker.Rank(ctx, prior, c.Body, a.cfg.Models.ReplyScore)
	if err != nil {
		a.log.Warn("reply probability check failed", zap.Error(err))
		d.Outcome, d.Reason = models.OutcomeFailed, err.Error()
		a.record(ctx, d)
		return false
	}

	d.Output = formatScore(score)
	if score < a.cfg.Behavior.MinReplyScore {
		a.log.Info("comment not selected for reply", zap.Float64("score", score))
		d.Outcome = models.OutcomeSkipped
		a.record(ctx, d)
		return false
	}
	d.Outcome = models.OutcomeSelected
	a.record(ctx, d)
	return true
}

// replyChance is the configured reply probability raised by each trigger
// word found in text.
func (a *Agent) replyChance(text string) float64 {
	p := a.cfg.Behavior.ReplyChance
	lower := strings.ToLower(text)
	for _, w := range a.cfg.Behavior.TriggerWords {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			a.log.Debug("trigger word found", zap.String("word", w))
			p += a.cfg.Behavior.TriggerBoost
		}
	}
	return p
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 4, 64)
}
