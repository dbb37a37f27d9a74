// Package classify wraps the text classifiers used by the safety gate.
package classify

import "context"

// Classifier scores text for toxicity in [0,1].
type Classifier interface {
	Toxicity(ctx context.Context, text string) (float64, error)
}

// TopicClassifier scores text against a set of candidate labels.
type TopicClassifier interface {
	Topics(ctx context.Context, text string, labels []string) (map[string]float64, error)
}
