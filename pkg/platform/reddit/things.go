package reddit

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pario-ai/persona/pkg/platform"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []thing `json:"children"`
		After    string  `json:"after"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type thingData struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Author     string          `json:"author"`
	Title      string          `json:"title"`
	SelfText   string          `json:"selftext"`
	URL        string          `json:"url"`
	IsSelf     bool            `json:"is_self"`
	Subreddit  string          `json:"subreddit"`
	Body       string          `json:"body"`
	Subject    string          `json:"subject"`
	ParentID   string          `json:"parent_id"`
	LinkID     string          `json:"link_id"`
	Context    string          `json:"context"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
	Children   []string        `json:"children"`
}

// items decodes the listing's children. "more" placeholders are returned as
// the IDs they stand for.
func (l listing) items() ([]platform.Item, []string, error) {
	var (
		items []platform.Item
		more  []string
	)
	for _, t := range l.Data.Children {
		if t.Kind == "more" {
			var d thingData
			if err := json.Unmarshal(t.Data, &d); err != nil {
				return nil, nil, fmt.Errorf("decode more: %w", err)
			}
			more = append(more, d.Children...)
			continue
		}
		it, err := t.item()
		if err != nil {
			return nil, nil, err
		}
		items = append(items, it)
	}
	return items, more, nil
}

func (t thing) item() (platform.Item, error) {
	var d thingData
	if err := json.Unmarshal(t.Data, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.Kind, err)
	}
	created := timestamp(d.CreatedUTC)

	switch platform.Kind(t.Kind) {
	case platform.KindSubmission:
		return &platform.Submission{
			ID:         d.ID,
			AuthorName: d.Author,
			Title:      d.Title,
			SelfText:   d.SelfText,
			URL:        d.URL,
			IsSelf:     d.IsSelf,
			Subreddit:  d.Subreddit,
			Created:    created,
		}, nil
	case platform.KindComment:
		parent, err := optionalRef(d.ParentID)
		if err != nil {
			return nil, err
		}
		link := d.LinkID
		if link == "" {
			link = linkFromContext(d.Context)
		}
		sub, err := optionalRef(link)
		if err != nil {
			return nil, err
		}
		return &platform.Comment{
			ID:         d.ID,
			AuthorName: d.Author,
			Body:       d.Body,
			Parent:     parent,
			Submission: sub,
			Created:    created,
		}, nil
	case platform.KindMessage:
		parent, err := optionalRef(d.ParentID)
		if err != nil {
			return nil, err
		}
		return &platform.Message{
			ID:         d.ID,
			AuthorName: d.Author,
			Subject:    d.Subject,
			Body:       d.Body,
			Parent:     parent,
			Created:    created,
		}, nil
	}
	return nil, fmt.Errorf("unsupported thing kind %q", t.Kind)
}

// replyListing decodes the nested "replies" field, which is "" when a
// comment has none.
func (d thingData) replyListing() (*listing, error) {
	if len(d.Replies) == 0 || d.Replies[0] != '{' {
		return nil, nil
	}
	var l listing
	if err := json.Unmarshal(d.Replies, &l); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	return &l, nil
}

func optionalRef(name string) (platform.Ref, error) {
	if name == "" {
		return platform.Ref{}, nil
	}
	return platform.ParseFullname(name)
}

// linkFromContext extracts the submission from an inbox context path like
// /r/sub/comments/<link>/<slug>/<id>/?context=3.
func linkFromContext(ctx string) string {
	parts := strings.Split(strings.Trim(ctx, "/"), "/")
	for i, p := range parts {
		if p == "comments" && i+1 < len(parts) {
			return string(platform.KindSubmission) + "_" + parts[i+1]
		}
	}
	return ""
}

func timestamp(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
