package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/persona/pkg/platform"
)

type fakeThread struct {
	items map[platform.Ref]platform.Item
}

func newFakeThread(items ...platform.Item) *fakeThread {
	ft := &fakeThread{items: map[platform.Ref]platform.Item{}}
	for _, it := range items {
		ft.items[it.Ref()] = it
	}
	return ft
}

func (f *fakeThread) Parent(_ context.Context, c platform.ParentedItem) (platform.Item, error) {
	it, ok := f.items[c.ParentRef()]
	if !ok {
		return nil, errors.New("not found")
	}
	return it, nil
}

func (f *fakeThread) Submission(_ context.Context, ref platform.Ref) (*platform.Submission, error) {
	it, ok := f.items[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return it.(*platform.Submission), nil
}

type fakeCaptioner struct {
	caption string
	err     error
}

func (f fakeCaptioner) Caption(context.Context, string) (string, error) { return f.caption, f.err }

var (
	selfPost = &platform.Submission{ID: "p1", AuthorName: "op", Title: "Best pizza?", SelfText: "Asking for a friend", IsSelf: true}
	linkPost = &platform.Submission{ID: "p2", AuthorName: "op", Title: "My cat", URL: "https://i.example/cat.jpg"}
	top      = &platform.Comment{ID: "c1", AuthorName: "alice", Body: "Margherita", Parent: selfPost.Ref(), Submission: selfPost.Ref()}
	mid      = &platform.Comment{ID: "c2", AuthorName: "bob", Body: "Boring", Parent: top.Ref(), Submission: selfPost.Ref()}
	leaf     = &platform.Comment{ID: "c3", AuthorName: "carol", Body: "Classic", Parent: mid.Ref(), Submission: selfPost.Ref()}
	onLink   = &platform.Comment{ID: "c4", AuthorName: "dave", Body: "Cute", Parent: linkPost.Ref(), Submission: linkPost.Ref()}
)

func opts() Options {
	return Options{Bot: "pizzabot", Backstory: "I am a pizza chef.", MaxLevels: 5, MaxWords: 500}
}

func TestForReplyWalksToRoot(t *testing.T) {
	b := NewBuilder(newFakeThread(selfPost, top, mid, leaf), nil, opts())

	p, err := b.ForReply(context.Background(), leaf)
	require.NoError(t, err)

	want := strings.Join([]string{
		"I am a pizza chef.",
		`Post by u/op titled "Best pizza?": "Asking for a friend"`,
		`Comment by u/alice: "Margherita"`,
		`Comment by u/bob: "Boring"`,
		`Comment by u/carol: "Classic"`,
		`Reply by u/pizzabot: "`,
	}, "\n")
	assert.Equal(t, want, p.Text)

	require.Len(t, p.Conversation, 4)
	assert.Equal(t, RolePost, p.Conversation[0].Role)
	assert.Equal(t, "carol", p.Conversation[3].Author)
	assert.Equal(t, "Best pizza?\nAsking for a friend<|endoftext|>Margherita<|endoftext|>Boring<|endoftext|>Classic", p.Conversation.RankText())
}

func TestForReplyLevelBound(t *testing.T) {
	o := opts()
	o.MaxLevels = 2
	b := NewBuilder(newFakeThread(selfPost, top, mid, leaf), nil, o)

	_, err := b.ForReply(context.Background(), leaf)
	assert.ErrorIs(t, err, ErrContextIncomplete)

	// two levels are enough from the middle comment
	_, err = b.ForReply(context.Background(), mid)
	assert.NoError(t, err)
}

func TestForReplyImagePost(t *testing.T) {
	b := NewBuilder(newFakeThread(linkPost, onLink), fakeCaptioner{caption: "A picture of a cat"}, opts())

	p, err := b.ForReply(context.Background(), onLink)
	require.NoError(t, err)
	assert.Contains(t, p.Text, `Image post by u/op titled "My cat": A picture of a cat`+"\n")
	assert.Equal(t, RoleImagePost, p.Conversation[0].Role)
}

func TestCaptionUnavailable(t *testing.T) {
	ctx := context.Background()
	thread := newFakeThread(linkPost, onLink)

	for name, c := range map[string]fakeCaptioner{
		"empty": {caption: "  "},
		"error": {err: errors.New("azure down")},
	} {
		b := NewBuilder(thread, c, opts())
		_, err := b.ForReply(ctx, onLink)
		assert.ErrorIs(t, err, ErrCaptionUnavailable, name)
	}

	_, err := NewBuilder(thread, nil, opts()).ForComment(ctx, linkPost)
	assert.ErrorIs(t, err, ErrCaptionUnavailable)
}

func TestForComment(t *testing.T) {
	o := opts()
	o.Backstory = ""
	b := NewBuilder(newFakeThread(), nil, o)

	p, err := b.ForComment(context.Background(), selfPost)
	require.NoError(t, err)
	assert.Equal(t, `Post by u/op titled "Best pizza?": "Asking for a friend"`+"\n"+`Comment by u/pizzabot: "`, p.Text)
	assert.Len(t, p.Conversation, 1)
}

func TestPromptTooLong(t *testing.T) {
	o := opts()
	o.MaxWords = 10
	b := NewBuilder(newFakeThread(), nil, o)

	long := &platform.Submission{ID: "p9", AuthorName: "op", Title: "t", SelfText: strings.Repeat("word ", 20), IsSelf: true}
	_, err := b.ForComment(context.Background(), long)
	assert.ErrorIs(t, err, ErrPromptTooLong)
}

func TestParentFetchError(t *testing.T) {
	b := NewBuilder(newFakeThread(), nil, opts())
	_, err := b.ForReply(context.Background(), leaf)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrContextIncomplete)
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("   "))
	assert.Equal(t, 3, WordCount("a  b\nc"))
}
