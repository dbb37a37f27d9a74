package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/persona/pkg/agent"
	"github.com/pario-ai/persona/pkg/audit"
	"github.com/pario-ai/persona/pkg/budget"
	"github.com/pario-ai/persona/pkg/cache"
	"github.com/pario-ai/persona/pkg/classify"
	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/httputil"
	"github.com/pario-ai/persona/pkg/logging"
	"github.com/pario-ai/persona/pkg/platform/reddit"
	"github.com/pario-ai/persona/pkg/safety"
	"github.com/pario-ai/persona/pkg/status"
	"github.com/pario-ai/persona/pkg/textgen"
	"github.com/pario-ai/persona/pkg/tracker"
	"github.com/pario-ai/persona/pkg/vision"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the persona against its subreddit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = run(ctx, cfg, log)
			if errors.Is(err, agent.ErrShutdown) {
				log.Info("stopped by kill message")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	httpClient := httputil.RobustHTTPClient(log)

	tr, err := tracker.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init tracker: %w", err)
	}
	defer func() { _ = tr.Close() }()

	opts := []budget.Option{budget.WithLogger(log)}
	if cfg.Budget.Persist {
		opts = append(opts, budget.WithRecorder(tr))
	}
	ledger := budget.New(cfg.Budget.DailyCharacters, opts...)
	if cfg.Budget.Persist {
		if err := ledger.Restore(ctx, tr); err != nil {
			return err
		}
	}

	deps := agent.Deps{Ledger: ledger, Log: log}
	var decisions status.DecisionSource
	if cfg.Audit.Enabled {
		al, err := audit.New(cfg.Audit)
		if err != nil {
			return fmt.Errorf("init audit log: %w", err)
		}
		defer func() { _ = al.Close() }()
		deps.Audit = al
		decisions = al
	}

	gen, err := textgen.New(ctx, cfg, httpClient, log)
	if err != nil {
		return fmt.Errorf("init text generation: %w", err)
	}
	deps.Generator = gen
	deps.Ranker = gen

	var toxicity classify.Classifier
	if cfg.Safety.PerspectiveAPIKey != "" {
		toxicity = classify.NewPerspectiveClient(httpClient, cfg.Safety.PerspectiveURL, cfg.Safety.PerspectiveAPIKey)
	} else {
		log.Warn("no toxicity classifier configured, only keywords are checked")
	}
	var topics classify.TopicClassifier
	if len(cfg.Safety.Topic.Labels) > 0 {
		t := cfg.Safety.Topic
		topics = classify.NewZeroShotClient(httpClient, t.URL, t.APIKey, t.Model)
	}
	deps.Gate = safety.NewGate(safety.NewKeywordSet(cfg.Safety.NegativeKeywords), toxicity, topics, safety.Options{
		ToxicityThreshold: cfg.Safety.ToxicityThreshold,
		TopicLabels:       cfg.Safety.Topic.Labels,
		TopicThreshold:    cfg.Safety.Topic.Threshold,
	}, log)

	if cfg.Vision.CaptionURL != "" {
		var captioner vision.Captioner = vision.NewAzureCaptioner(httpClient, cfg.Vision.CaptionURL, cfg.Vision.CaptionAPIKey)
		if cfg.Cache.Enabled {
			store, closeStore, err := cache.Open(cache.Options{
				Backend:  cfg.Cache.Backend,
				DBPath:   cfg.DBPath,
				TTL:      cfg.Cache.TTL,
				Capacity: cfg.Cache.Capacity,
				RedisURL: cfg.Cache.RedisURL,
			})
			if err != nil {
				return fmt.Errorf("init cache: %w", err)
			}
			defer func() { _ = closeStore() }()
			captioner = vision.NewCachedCaptioner(captioner, store, log)
		}
		deps.Captioner = captioner
	}
	if cfg.Vision.ImageURL != "" {
		deps.Images = vision.NewDiffusionGenerator(httpClient, cfg.Vision.ImageURL, cfg.Vision.UpscaleURL, cfg.Vision.UpscaleAPIKey)
	}

	deps.Client = reddit.New(reddit.Options{
		ClientID:          cfg.Reddit.ClientID,
		ClientSecret:      cfg.Reddit.ClientSecret,
		Username:          cfg.Bot.Username,
		Password:          cfg.Reddit.Password,
		UserAgent:         cfg.Reddit.UserAgent,
		Subreddit:         cfg.Bot.Subreddit,
		AuthURL:           cfg.Reddit.AuthURL,
		APIURL:            cfg.Reddit.APIURL,
		PollInterval:      cfg.Reddit.PollInterval,
		RequestsPerMinute: cfg.Reddit.RequestsPerMinute,
	}, httpClient, log)

	a := agent.New(cfg, deps)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return a.Run(gctx)
	})
	if cfg.Status.Listen != "" {
		srv := status.New(cfg.Status.Listen, a, decisions, log)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}
	return g.Wait()
}
