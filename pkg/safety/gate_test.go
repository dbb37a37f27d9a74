package safety

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeToxicity struct {
	score float64
	err   error
	calls int
}

func (f *fakeToxicity) Toxicity(context.Context, string) (float64, error) {
	f.calls++
	return f.score, f.err
}

type fakeTopics struct {
	scores map[string]float64
	err    error
}

func (f *fakeTopics) Topics(context.Context, string, []string) (map[string]float64, error) {
	return f.scores, f.err
}

func TestCheckKeywordShortCircuits(t *testing.T) {
	tox := &fakeToxicity{score: 0}
	g := NewGate(NewKeywordSet(nil), tox, nil, Options{ToxicityThreshold: 0.5}, nil)

	v := g.Check(context.Background(), "Hitler was bad")
	assert.False(t, v.Admitted)
	assert.Equal(t, ReasonKeyword, v.Reason)
	assert.Equal(t, []string{"hitler"}, v.Keywords)
	assert.Zero(t, tox.calls)
}

func TestCheckToxicityThreshold(t *testing.T) {
	ctx := context.Background()
	tox := &fakeToxicity{}
	g := NewGate(NewKeywordSet(nil), tox, nil, Options{ToxicityThreshold: 0.5}, nil)

	tox.score = 0.49
	assert.True(t, g.Check(ctx, "fine text").Admitted)

	// at the threshold rejects
	tox.score = 0.5
	v := g.Check(ctx, "fine text")
	assert.False(t, v.Admitted)
	assert.Equal(t, ReasonToxic, v.Reason)
	assert.InDelta(t, 0.5, v.Score, 1e-9)
}

func TestCheckClassifierErrorRejects(t *testing.T) {
	g := NewGate(NewKeywordSet(nil), &fakeToxicity{err: errors.New("quota")}, nil, Options{ToxicityThreshold: 0.5}, nil)
	v := g.Check(context.Background(), "fine text")
	assert.False(t, v.Admitted)
	assert.Equal(t, ReasonClassifierError, v.Reason)
}

func TestCheckWithoutClassifier(t *testing.T) {
	g := NewGate(NewKeywordSet(nil), nil, nil, Options{}, nil)
	assert.True(t, g.Check(context.Background(), "fine text").Admitted)
}

func TestOnTopic(t *testing.T) {
	ctx := context.Background()
	topics := &fakeTopics{scores: map[string]float64{"cooking": 0.4, "baking": 0.7}}
	g := NewGate(NewKeywordSet(nil), nil, topics, Options{
		TopicLabels:    []string{"cooking", "baking"},
		TopicThreshold: 0.6,
	}, nil)
	assert.True(t, g.TopicsEnabled())
	assert.True(t, g.OnTopic(ctx, "bread").Admitted)

	topics.scores = map[string]float64{"cooking": 0.6, "baking": 0.1}
	v := g.OnTopic(ctx, "cars")
	assert.False(t, v.Admitted)
	assert.Equal(t, ReasonOffTopic, v.Reason)
	assert.InDelta(t, 0.6, v.Score, 1e-9)

	topics.err = errors.New("503")
	assert.Equal(t, ReasonClassifierError, g.OnTopic(ctx, "x").Reason)
}

func TestOnTopicWithoutLabels(t *testing.T) {
	g := NewGate(NewKeywordSet(nil), nil, &fakeTopics{err: errors.New("unused")}, Options{}, nil)
	assert.False(t, g.TopicsEnabled())
	assert.True(t, g.OnTopic(context.Background(), "anything").Admitted)
}
