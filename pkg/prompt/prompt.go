// Package prompt assembles generation prompts from a conversation thread.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pario-ai/persona/pkg/platform"
	"github.com/pario-ai/persona/pkg/vision"
)

var (
	// ErrContextIncomplete means the thread root was not reached within the
	// level bound. Replies must be anchored to the originating post.
	ErrContextIncomplete = errors.New("post not reached within level bound")
	// ErrPromptTooLong means the assembled prompt exceeds the word ceiling.
	ErrPromptTooLong = errors.New("prompt exceeds word ceiling")
	// ErrCaptionUnavailable means a link post's image could not be described.
	ErrCaptionUnavailable = errors.New("image caption unavailable")
)

// Role tells what kind of item a conversation turn came from.
type Role string

const (
	RolePost      Role = "post"
	RoleImagePost Role = "image_post"
	RoleComment   Role = "comment"
)

// Turn is one line of a conversation.
type Turn struct {
	Author string
	Body   string
	Role   Role
}

// Conversation is the thread behind a prompt, most recent turn last.
type Conversation []Turn

// RankText joins the turn bodies in the multi-turn form dialog ranking
// models expect.
func (c Conversation) RankText() string {
	bodies := make([]string, len(c))
	for i, t := range c {
		bodies[i] = t.Body
	}
	return strings.Join(bodies, "<|endoftext|>")
}

// Prompt is an assembled prompt and the conversation it was built from.
type Prompt struct {
	Text         string
	Conversation Conversation
}

// Thread walks a conversation upwards.
type Thread interface {
	Parent(ctx context.Context, c platform.ParentedItem) (platform.Item, error)
	Submission(ctx context.Context, ref platform.Ref) (*platform.Submission, error)
}

// Options configures a Builder.
type Options struct {
	Bot       string
	Backstory string
	MaxLevels int
	MaxWords  int
}

// Builder builds reply and comment prompts.
type Builder struct {
	thread    Thread
	captioner vision.Captioner
	opts      Options
}

// NewBuilder creates a Builder. A nil captioner makes link posts unusable as
// prompt roots.
func NewBuilder(thread Thread, captioner vision.Captioner, opts Options) *Builder {
	return &Builder{thread: thread, captioner: captioner, opts: opts}
}

// ForComment builds the prompt for a top-level comment on s.
func (b *Builder) ForComment(ctx context.Context, s *platform.Submission) (Prompt, error) {
	line, turn, err := b.root(ctx, s)
	if err != nil {
		return Prompt{}, err
	}
	lines := []string{line, fmt.Sprintf(`Comment by u/%s: "`, b.opts.Bot)}
	return b.finish(lines, Conversation{turn})
}

// ForReply builds the prompt for a reply to c, walking up to MaxLevels
// comments until the submission is reached.
func (b *Builder) ForReply(ctx context.Context, c *platform.Comment) (Prompt, error) {
	lines := []string{fmt.Sprintf(`Reply by u/%s: "`, b.opts.Bot)}
	var conv Conversation

	cur := c
	for level := 0; level < b.opts.MaxLevels; level++ {
		lines = append([]string{fmt.Sprintf(`Comment by u/%s: "%s"`, cur.AuthorName, cur.Body)}, lines...)
		conv = append(Conversation{{Author: cur.AuthorName, Body: cur.Body, Role: RoleComment}}, conv...)

		if cur.IsTopLevel() {
			sub, err := b.thread.Submission(ctx, cur.Parent)
			if err != nil {
				return Prompt{}, fmt.Errorf("fetch submission %s: %w", cur.Parent, err)
			}
			line, turn, err := b.root(ctx, sub)
			if err != nil {
				return Prompt{}, err
			}
			lines = append([]string{line}, lines...)
			conv = append(Conversation{turn}, conv...)
			return b.finish(lines, conv)
		}

		parent, err := b.thread.Parent(ctx, cur)
		if err != nil {
			return Prompt{}, fmt.Errorf("fetch parent of %s: %w", cur.Ref(), err)
		}
		pc, ok := parent.(*platform.Comment)
		if !ok {
			return Prompt{}, fmt.Errorf("parent of %s is %T, not a comment", cur.Ref(), parent)
		}
		cur = pc
	}
	return Prompt{}, ErrContextIncomplete
}

func (b *Builder) root(ctx context.Context, s *platform.Submission) (string, Turn, error) {
	if s.IsSelf {
		line := fmt.Sprintf(`Post by u/%s titled "%s": "%s"`, s.AuthorName, s.Title, s.SelfText)
		return line, Turn{Author: s.AuthorName, Body: s.Title + "\n" + s.SelfText, Role: RolePost}, nil
	}

	if b.captioner == nil {
		return "", Turn{}, ErrCaptionUnavailable
	}
	caption, err := b.captioner.Caption(ctx, s.URL)
	if err != nil {
		return "", Turn{}, fmt.Errorf("%w: %v", ErrCaptionUnavailable, err)
	}
	if strings.TrimSpace(caption) == "" {
		return "", Turn{}, ErrCaptionUnavailable
	}
	line := fmt.Sprintf(`Image post by u/%s titled "%s": %s`, s.AuthorName, s.Title, caption)
	return line, Turn{Author: s.AuthorName, Body: s.Title + "\n" + caption, Role: RoleImagePost}, nil
}

func (b *Builder) finish(lines []string, conv Conversation) (Prompt, error) {
	if b.opts.Backstory != "" {
		lines = append([]string{b.opts.Backstory}, lines...)
	}
	text := strings.Join(lines, "\n")
	if b.opts.MaxWords > 0 && WordCount(text) > b.opts.MaxWords {
		return Prompt{}, ErrPromptTooLong
	}
	return Prompt{Text: text, Conversation: conv}, nil
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
