// Package agent runs the watchers, pipelines and scheduler of a persona.
package agent

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/generate"
	"github.com/pario-ai/persona/pkg/models"
	"github.com/pario-ai/persona/pkg/platform"
	"github.com/pario-ai/persona/pkg/prompt"
	"github.com/pario-ai/persona/pkg/safety"
	"github.com/pario-ai/persona/pkg/textgen"
	"github.com/pario-ai/persona/pkg/vision"
)

// ErrShutdown is returned by Run when an authorised kill message arrived.
var ErrShutdown = errors.New("shutdown requested")

// Gate is the safety surface the pipelines use.
type Gate interface {
	Keywords(text string) []string
	Check(ctx context.Context, text string) safety.Verdict
	OnTopic(ctx context.Context, text string) safety.Verdict
	TopicsEnabled() bool
}

// Ledger is the shared daily budget.
type Ledger interface {
	AdmitFor(purpose models.SpendPurpose, cost int) bool
	Status() models.BudgetStatus
}

// Auditor records pipeline decisions.
type Auditor interface {
	Log(ctx context.Context, d models.Decision) error
}

// Deps are the collaborators of an Agent. Captioner, Images and Audit may be
// nil.
type Deps struct {
	Client    platform.Client
	Generator textgen.Generator
	Ranker    textgen.Ranker
	Gate      Gate
	Ledger    Ledger
	Captioner vision.Captioner
	Images    vision.ImageGenerator
	Audit     Auditor
	Log       *zap.Logger
	// Roll returns a uniform number in [0,1). Defaults to math/rand.
	Roll func() float64
}

// Agent is one persona running against one subreddit.
type Agent struct {
	cfg      *config.Config
	client   platform.Client
	ranker   textgen.Ranker
	gate     Gate
	ledger   Ledger
	images   vision.ImageGenerator
	audit    Auditor
	selector *generate.Selector
	builder  *prompt.Builder
	counters Counters
	targets  *targets
	roll     func() float64
	log      *zap.Logger
}

// New creates an Agent for cfg. Nothing runs until Run is called.
func New(cfg *config.Config, d Deps) *Agent {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	roll := d.Roll
	if roll == nil {
		roll = rand.Float64
	}
	a := &Agent{
		cfg:     cfg,
		client:  d.Client,
		ranker:  d.Ranker,
		gate:    d.Gate,
		ledger:  d.Ledger,
		images:  d.Images,
		audit:   d.Audit,
		targets: newTargets(),
		roll:    roll,
		log:     log.Named("agent"),
	}
	a.selector = generate.NewSelector(d.Generator, d.Ranker, d.Gate, d.Ledger, generate.Options{
		MaxAttempts:  cfg.Generation.MaxAttempts,
		RankModel:    cfg.Models.Rerank,
		MaxRankWords: cfg.Generation.MaxRerankWords,
	}, log)
	a.builder = prompt.NewBuilder(d.Client, d.Captioner, prompt.Options{
		Bot:       cfg.Bot.Username,
		Backstory: cfg.Bot.Backstory,
		MaxLevels: cfg.Generation.MaxLevels,
		MaxWords:  cfg.Generation.MaxPromptWords,
	})
	return a
}

// Counters returns a snapshot of the activity counters.
func (a *Agent) Counters() models.CounterSnapshot {
	return a.counters.Snapshot()
}

// Status reports counters and budget for the status endpoint.
func (a *Agent) Status() models.AgentStatus {
	return models.AgentStatus{
		Username:  a.cfg.Bot.Username,
		Subreddit: a.cfg.Bot.Subreddit,
		Counters:  a.counters.Snapshot(),
		Budget:    a.ledger.Status(),
	}
}

func (a *Agent) reportStatus() {
	a.log.Info(StatusLine(a.counters.Snapshot(), a.ledger.Status()))
}

// Run starts every watcher and the scheduler and blocks until ctx ends or a
// kill message arrives, in which case it returns ErrShutdown.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("persona running",
		zap.String("username", a.cfg.Bot.Username),
		zap.String("subreddit", a.cfg.Bot.Subreddit))

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Behavior.FollowupOnly {
		a.log.Info("follow-up only, not reading submissions")
	} else {
		g.Go(func() error { return a.watch(gctx, platform.StreamSubmissions, a.handleSubmission) })
	}
	g.Go(func() error { return a.watch(gctx, platform.StreamComments, a.handleComment) })
	if a.cfg.Behavior.WatchInbox {
		g.Go(func() error { return a.watch(gctx, platform.StreamInbox, a.handleInbox) })
	}
	g.Go(func() error { return a.schedule(gctx) })

	err := g.Wait()
	if errors.Is(err, ErrShutdown) {
		a.log.Info("shutdown requested, stopping")
	}
	return err
}

type handler func(ctx context.Context, it platform.Item) error

// watch feeds stream items to handle until ctx ends. Stream errors back off
// and retry; only handler errors end the loop.
func (a *Agent) watch(ctx context.Context, kind platform.StreamKind, handle handler) error {
	log := a.log.With(zap.String("stream", string(kind)))
	log.Info("watcher started")
	stream := a.client.Stream(kind)
	for {
		it, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("error reading stream, are we connected?", zap.Error(err))
			if !sleep(ctx, a.cfg.Reddit.PollInterval) {
				return nil
			}
			continue
		}
		itemsSeen.WithLabelValues(string(kind)).Inc()
		if err := handle(ctx, it); err != nil {
			return err
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (a *Agent) record(ctx context.Context, d models.Decision) {
	decisions.WithLabelValues(string(d.Action), string(d.Outcome)).Inc()
	if a.audit == nil {
		return
	}
	if err := a.audit.Log(ctx, d); err != nil {
		a.log.Warn("failed to write audit entry", zap.Error(err))
	}
}
