package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullname(t *testing.T) {
	ref, err := ParseFullname("t1_abc123")
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: KindComment, ID: "abc123"}, ref)
	assert.Equal(t, "t1_abc123", ref.Fullname())

	for _, bad := range []string{"", "abc", "t1_", "t5_xyz"} {
		_, err := ParseFullname(bad)
		assert.Error(t, err, bad)
	}
}

func TestItems(t *testing.T) {
	assert := assert.New(t)

	s := &Submission{ID: "p1", AuthorName: "op", Title: "Title", SelfText: "text", IsSelf: true}
	c := &Comment{ID: "c1", AuthorName: "someone", Body: "hi", Parent: s.Ref(), Submission: s.Ref()}
	m := &Message{ID: "m1", AuthorName: "admin", Body: "!shutdown"}

	var items []Item = []Item{s, c, m}
	assert.Equal("t3_p1", items[0].Ref().Fullname())
	assert.Equal("someone", items[1].Author())
	assert.True(c.IsTopLevel())
	assert.True(m.ParentRef().IsZero())

	assert.Equal("Title\ntext", Body(s))
	assert.Equal("hi", Body(c))
	assert.Equal("!shutdown", Body(m))

	link := &Submission{ID: "p2", Title: "Look", URL: "https://i.example/x.jpg"}
	assert.Equal("Look", Body(link))
}

func TestPostIsLink(t *testing.T) {
	assert.False(t, Post{Title: "t", Body: "b"}.IsLink())
	assert.True(t, Post{Title: "t", URL: "https://x"}.IsLink())
}
