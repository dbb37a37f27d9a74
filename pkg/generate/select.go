// Package generate turns prompts into accepted candidates.
package generate

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/models"
	"github.com/pario-ai/persona/pkg/prompt"
	"github.com/pario-ai/persona/pkg/safety"
	"github.com/pario-ai/persona/pkg/textgen"
)

var candidatesSeen = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "persona_candidates_total",
	Help: "Generated candidates by strategy and outcome",
}, []string{"strategy", "outcome"})

// Candidate is one generated string and what the pipeline learned about it.
type Candidate struct {
	Raw            string
	Cleaned        string
	Toxic          bool
	ToxicityScored bool
	Rank           float64
	Ranked         bool
}

// Gate decides whether a cleaned candidate may be published.
type Gate interface {
	Check(ctx context.Context, text string) safety.Verdict
}

// Admitter charges the shared budget.
type Admitter interface {
	AdmitFor(purpose models.SpendPurpose, cost int) bool
}

// Request describes one generation.
type Request struct {
	Prompt  string
	Model   string
	Params  textgen.Params
	Purpose models.SpendPurpose
	// Clean turns raw output into a candidate; nil means Clean.
	Clean func(string) string
	// RankContext is the conversation best-of ranks candidates against.
	RankContext string
}

// Result is the outcome of a selection.
type Result struct {
	Candidate Candidate
	Found     bool
	// Declined is set when the budget refused a prompt charge.
	Declined bool
	Attempts int
	// Spent is the total characters charged.
	Spent int64
}

// Options configures a Selector.
type Options struct {
	MaxAttempts  int
	RankModel    string
	MaxRankWords int
}

// Selector runs the attempt loop shared by both selection strategies.
type Selector struct {
	gen    textgen.Generator
	ranker textgen.Ranker
	gate   Gate
	ledger Admitter
	opts   Options
	log    *zap.Logger
}

// NewSelector creates a Selector. MaxAttempts below one is treated as one.
func NewSelector(gen textgen.Generator, ranker textgen.Ranker, gate Gate, ledger Admitter, opts Options, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Selector{
		gen:    gen,
		ranker: ranker,
		gate:   gate,
		ledger: ledger,
		opts:   opts,
		log:    log.Named("generate"),
	}
}

// Select runs the named strategy.
func (s *Selector) Select(ctx context.Context, strategy string, req Request) Result {
	if strategy == config.SelectBestOf {
		return s.BestOf(ctx, req)
	}
	return s.FirstAcceptable(ctx, req)
}

// FirstAcceptable returns the first candidate, in backend order, that
// cleans to something and passes the gate.
func (s *Selector) FirstAcceptable(ctx context.Context, req Request) Result {
	var res Result
	for res.Attempts < s.opts.MaxAttempts {
		batch, ok := s.attempt(ctx, req, &res)
		if !ok {
			return res
		}
		for _, raw := range batch {
			c := Candidate{Raw: raw, Cleaned: cleaner(req)(raw)}
			if c.Cleaned == "" {
				candidatesSeen.WithLabelValues(config.SelectFirstAcceptable, "invalid").Inc()
				s.log.Debug("invalid generation, skipping")
				continue
			}
			v := s.gate.Check(ctx, c.Cleaned)
			c.ToxicityScored = true
			c.Toxic = !v.Admitted
			if c.Toxic {
				candidatesSeen.WithLabelValues(config.SelectFirstAcceptable, "rejected").Inc()
				s.log.Info("candidate rejected", zap.String("reason", v.Reason))
				continue
			}
			candidatesSeen.WithLabelValues(config.SelectFirstAcceptable, "accepted").Inc()
			res.Candidate = c
			res.Found = true
			return res
		}
	}
	s.log.Info("no acceptable candidate", zap.Int("attempts", res.Attempts))
	return res
}

// BestOf gates every candidate, ranks the admitted ones against the
// conversation and returns the highest ranked. Rejected candidates rank -Inf
// and are never selected. Each rank call is charged to the budget.
func (s *Selector) BestOf(ctx context.Context, req Request) Result {
	var res Result
	for res.Attempts < s.opts.MaxAttempts {
		batch, ok := s.attempt(ctx, req, &res)
		if !ok {
			return res
		}

		var best *Candidate
		for _, raw := range batch {
			c := Candidate{Raw: raw, Cleaned: cleaner(req)(raw)}
			if c.Cleaned == "" {
				candidatesSeen.WithLabelValues(config.SelectBestOf, "invalid").Inc()
				continue
			}
			v := s.gate.Check(ctx, c.Cleaned)
			c.ToxicityScored = true
			if !v.Admitted {
				c.Toxic = true
				c.Rank = math.Inf(-1)
				candidatesSeen.WithLabelValues(config.SelectBestOf, "rejected").Inc()
				s.log.Info("candidate rejected", zap.String("reason", v.Reason))
				continue
			}
			if !s.rank(ctx, req, &c, &res) {
				candidatesSeen.WithLabelValues(config.SelectBestOf, "unranked").Inc()
				continue
			}
			candidatesSeen.WithLabelValues(config.SelectBestOf, "ranked").Inc()
			if best == nil || c.Rank > best.Rank {
				cc := c
				best = &cc
			}
		}
		if best != nil {
			res.Candidate = *best
			res.Found = true
			return res
		}
	}
	s.log.Info("no rankable candidate", zap.Int("attempts", res.Attempts))
	return res
}

// attempt charges the prompt and requests one batch. It reports false when
// the loop must stop because the budget declined.
func (s *Selector) attempt(ctx context.Context, req Request, res *Result) ([]string, bool) {
	res.Attempts++
	cost := utf8.RuneCountInString(req.Prompt)
	if !s.ledger.AdmitFor(req.Purpose, cost) {
		s.log.Info("not enough budget left for prompt", zap.Int("cost", cost))
		res.Declined = true
		return nil, false
	}
	res.Spent += int64(cost)

	batch, err := s.gen.Generate(ctx, req.Prompt, req.Model, req.Params)
	if err != nil {
		s.log.Warn("generation failed", zap.String("model", req.Model), zap.Error(err))
		return nil, true
	}
	if len(batch) == 0 {
		s.log.Warn("generation returned nothing", zap.String("model", req.Model))
	}
	return batch, true
}

func (s *Selector) rank(ctx context.Context, req Request, c *Candidate, res *Result) bool {
	if s.ranker == nil {
		return false
	}
	input := textgen.RankInput(req.RankContext, c.Cleaned)
	if s.opts.MaxRankWords > 0 && prompt.WordCount(input) > s.opts.MaxRankWords {
		s.log.Info("text too big for re-ranking model")
		return false
	}
	cost := utf8.RuneCountInString(input)
	if !s.ledger.AdmitFor(models.SpendRerank, cost) {
		s.log.Info("not enough budget left to rank candidate", zap.Int("cost", cost))
		return false
	}
	res.Spent += int64(cost)

	score, err := s.ranker.Rank(ctx, req.RankContext, c.Cleaned, s.opts.RankModel)
	if err != nil {
		s.log.Warn("ranking failed", zap.Error(err))
		return false
	}
	c.Rank = score
	c.Ranked = true
	return true
}

func cleaner(req Request) func(string) string {
	if req.Clean != nil {
		return req.Clean
	}
	return Clean
}
