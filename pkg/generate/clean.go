package generate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pario-ai/persona/pkg/platform"
)

// Clean cuts raw generated text at its first structural boundary: the first
// double quote, else after the last sentence terminator, else before the last
// whitespace. It returns "" when nothing usable remains.
func Clean(raw string) string {
	var out string
	switch {
	case strings.Contains(raw, `"`):
		out = raw[:strings.Index(raw, `"`)]
	case strings.ContainsAny(raw, ".!?"):
		out = raw[:strings.LastIndexAny(raw, ".!?")+1]
	default:
		i := strings.LastIndexFunc(raw, unicode.IsSpace)
		if i < 0 {
			return ""
		}
		out = raw[:i]
	}
	if strings.TrimSpace(out) == "" {
		return ""
	}
	return out
}

// Submission format tags.
const (
	tagTitleStart = "<|sot|>"
	tagTitleEnd   = "<|eot|>"
	tagTextStart  = "<|sost|>"
	tagTextEnd    = "<|eost|>"
	tagLinkStart  = "<|sol|>"
	tagLinkEnd    = "<|eol|>"

	maxTitleLen = 300
)

// Post generation prompts.
const (
	SelfPostPrompt = "<|soss"
	LinkPostPrompt = "<|sols"
)

// ExtractPost parses a submission from tagged generated text. The title is
// required and must be 1 to 299 characters; a body or link is optional.
func ExtractPost(raw string) (platform.Post, bool) {
	raw = strings.ReplaceAll(raw, "&amp;#x200B;\n", "")

	title, ok := between(raw, tagTitleStart, tagTitleEnd)
	if !ok {
		return platform.Post{}, false
	}
	if n := utf8.RuneCountInString(title); n == 0 || n >= maxTitleLen {
		return platform.Post{}, false
	}

	p := platform.Post{Title: title}
	if body, ok := between(raw, tagTextStart, tagTextEnd); ok {
		p.Body = body
	} else if link, ok := between(raw, tagLinkStart, tagLinkEnd); ok {
		p.URL = link
	}
	return p, true
}

// CleanPost is a cleaner for post generations. It returns the human-readable
// text of the extracted post so the safety gate sees no tags.
func CleanPost(raw string) string {
	p, ok := ExtractPost(raw)
	if !ok {
		return ""
	}
	if p.Body == "" {
		return p.Title
	}
	return p.Title + "\n" + p.Body
}

func between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}
