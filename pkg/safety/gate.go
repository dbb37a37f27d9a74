package safety

import (
	"context"

	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/classify"
)

// Rejection reasons reported in a Verdict.
const (
	ReasonKeyword         = "keyword"
	ReasonToxic           = "toxic"
	ReasonOffTopic        = "off_topic"
	ReasonClassifierError = "classifier_error"
)

// Verdict is the outcome of a safety check.
type Verdict struct {
	Admitted bool
	Reason   string
	Keywords []string
	Score    float64
}

// Options configures a Gate.
type Options struct {
	ToxicityThreshold float64
	TopicLabels       []string
	TopicThreshold    float64
}

// Gate combines the keyword filter with the toxicity and topic classifiers.
// A nil toxicity classifier skips the toxicity check.
type Gate struct {
	keywords *KeywordSet
	toxicity classify.Classifier
	topics   classify.TopicClassifier
	opts     Options
	log      *zap.Logger
}

// NewGate creates a Gate. Nil classifiers skip their checks.
func NewGate(keywords *KeywordSet, toxicity classify.Classifier, topics classify.TopicClassifier, opts Options, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		keywords: keywords,
		toxicity: toxicity,
		topics:   topics,
		opts:     opts,
		log:      log.Named("safety"),
	}
}

// Keywords returns the blocked keywords found in text. It makes no remote calls.
func (g *Gate) Keywords(text string) []string {
	return g.keywords.Match(text)
}

// Check runs the keyword filter and then the toxicity classifier. The
// classifier is only called when no keyword matched. A classifier error
// rejects the text.
func (g *Gate) Check(ctx context.Context, text string) Verdict {
	if kws := g.keywords.Match(text); len(kws) > 0 {
		g.log.Info("rejected on keyword", zap.Strings("keywords", kws))
		return Verdict{Reason: ReasonKeyword, Keywords: kws}
	}
	if g.toxicity == nil {
		return Verdict{Admitted: true}
	}

	score, err := g.toxicity.Toxicity(ctx, text)
	if err != nil {
		g.log.Warn("toxicity check failed", zap.Error(err))
		return Verdict{Reason: ReasonClassifierError}
	}
	if score >= g.opts.ToxicityThreshold {
		g.log.Info("rejected as toxic", zap.Float64("score", score))
		return Verdict{Reason: ReasonToxic, Score: score}
	}
	return Verdict{Admitted: true, Score: score}
}

// TopicsEnabled reports whether OnTopic will call the topic classifier.
func (g *Gate) TopicsEnabled() bool {
	return g.topics != nil && len(g.opts.TopicLabels) > 0
}

// OnTopic admits text when any configured label scores above the topic
// threshold. With no labels configured everything is on topic.
func (g *Gate) OnTopic(ctx context.Context, text string) Verdict {
	if !g.TopicsEnabled() {
		return Verdict{Admitted: true}
	}

	scores, err := g.topics.Topics(ctx, text, g.opts.TopicLabels)
	if err != nil {
		g.log.Warn("topic check failed", zap.Error(err))
		return Verdict{Reason: ReasonClassifierError}
	}
	var best float64
	for _, label := range g.opts.TopicLabels {
		s := scores[label]
		if s > best {
			best = s
		}
		if s > g.opts.TopicThreshold {
			return Verdict{Admitted: true, Score: s}
		}
	}
	return Verdict{Reason: ReasonOffTopic, Score: best}
}
