// Package platform models the discussion platform the agent reads from and
// writes to.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the type prefix of a platform fullname.
type Kind string

const (
	KindComment    Kind = "t1"
	KindSubmission Kind = "t3"
	KindMessage    Kind = "t4"
)

// Ref identifies an item on the platform.
type Ref struct {
	Kind Kind
	ID   string
}

// Fullname renders the ref as "<kind>_<id>".
func (r Ref) Fullname() string {
	if r.ID == "" {
		return ""
	}
	return string(r.Kind) + "_" + r.ID
}

func (r Ref) String() string { return r.Fullname() }

// IsZero reports whether the ref is unset.
func (r Ref) IsZero() bool { return r.ID == "" }

// ParseFullname parses "t1_abc" style names.
func ParseFullname(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, "_")
	if !ok || id == "" {
		return Ref{}, fmt.Errorf("invalid fullname %q", s)
	}
	switch Kind(kind) {
	case KindComment, KindSubmission, KindMessage:
		return Ref{Kind: Kind(kind), ID: id}, nil
	default:
		return Ref{}, fmt.Errorf("unsupported fullname kind %q", kind)
	}
}

// Item is a Submission, Comment or Message.
type Item interface {
	Ref() Ref
	Author() string
	isItem()
}

// ParentedItem is an item that answers another item.
type ParentedItem interface {
	Item
	ParentRef() Ref
}

// Submission is a top-level post.
type Submission struct {
	ID         string
	AuthorName string
	Title      string
	SelfText   string
	URL        string
	IsSelf     bool
	Subreddit  string
	Created    time.Time
}

func (s *Submission) Ref() Ref       { return Ref{Kind: KindSubmission, ID: s.ID} }
func (s *Submission) Author() string { return s.AuthorName }
func (*Submission) isItem()          {}

// Comment is a reply to a submission or to another comment.
type Comment struct {
	ID         string
	AuthorName string
	Body       string
	Parent     Ref
	Submission Ref
	Created    time.Time
}

func (c *Comment) Ref() Ref       { return Ref{Kind: KindComment, ID: c.ID} }
func (c *Comment) Author() string { return c.AuthorName }
func (c *Comment) ParentRef() Ref { return c.Parent }
func (*Comment) isItem()          {}

// IsTopLevel reports whether the comment replies directly to the submission.
func (c *Comment) IsTopLevel() bool { return c.Parent.Kind == KindSubmission }

// Message is a private message delivered to the inbox.
type Message struct {
	ID         string
	AuthorName string
	Subject    string
	Body       string
	Parent     Ref
	Created    time.Time
}

func (m *Message) Ref() Ref       { return Ref{Kind: KindMessage, ID: m.ID} }
func (m *Message) Author() string { return m.AuthorName }
func (m *Message) ParentRef() Ref { return m.Parent }
func (*Message) isItem()          {}

// Body returns the text content of an item. Submissions return their title
// followed by the self text.
func Body(it Item) string {
	switch v := it.(type) {
	case *Submission:
		if v.IsSelf && v.SelfText != "" {
			return v.Title + "\n" + v.SelfText
		}
		return v.Title
	case *Comment:
		return v.Body
	case *Message:
		return v.Body
	}
	return ""
}

// StreamKind selects one of the platform's live feeds.
type StreamKind string

const (
	StreamSubmissions StreamKind = "submissions"
	StreamComments    StreamKind = "comments"
	StreamInbox       StreamKind = "inbox"
)

// ErrNotExpanded is returned by Replies when ExpandAllReplies has not been
// called for the target.
var ErrNotExpanded = errors.New("replies not expanded")

// Post is a new submission.
type Post struct {
	Title string
	Body  string
	URL   string
	Flair string
}

// IsLink reports whether the post links to a URL instead of carrying text.
func (p Post) IsLink() bool { return p.URL != "" }

// Stream yields new items. Items present when the stream starts are skipped.
type Stream interface {
	Next(ctx context.Context) (Item, error)
}

// Client is the platform surface used by the agent.
type Client interface {
	Me() string
	Stream(kind StreamKind) Stream
	Submit(ctx context.Context, p Post) (Ref, error)
	Reply(ctx context.Context, target Item, body string) (Ref, error)
	ExpandAllReplies(ctx context.Context, target Item) error
	Replies(ctx context.Context, target Item) ([]Item, error)
	Parent(ctx context.Context, c ParentedItem) (Item, error)
	Submission(ctx context.Context, ref Ref) (*Submission, error)
	MarkRead(ctx context.Context, items ...Item) error
}
