package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/config"
)

// schedule runs the posting loop until ctx ends. Fixed daily times take
// precedence over an interval; with neither configured nothing is posted.
func (a *Agent) schedule(ctx context.Context) error {
	sc := a.cfg.Schedule
	switch {
	case len(sc.Times) > 0:
		return a.postAtTimes(ctx, sc)
	case sc.PostInterval > 0:
		a.postEvery(ctx, sc.PostInterval, sc.RetryDelay)
		return nil
	default:
		a.log.Info("no submissions scheduled")
		return nil
	}
}

// postEvery posts, waits interval after a success and retryDelay after a
// failure.
func (a *Agent) postEvery(ctx context.Context, interval, retryDelay time.Duration) {
	a.log.Info("posting on an interval", zap.Duration("interval", interval))
	for ctx.Err() == nil {
		wait := retryDelay
		if a.MakePost(ctx) {
			wait = interval
		}
		if !sleep(ctx, wait) {
			return
		}
	}
}

func (a *Agent) postAtTimes(ctx context.Context, sc config.ScheduleConfig) error {
	loc := time.Local
	if sc.Timezone != "" {
		l, err := time.LoadLocation(sc.Timezone)
		if err != nil {
			return fmt.Errorf("schedule timezone: %w", err)
		}
		loc = l
	}
	specs, err := cronSpecs(sc.Times)
	if err != nil {
		return err
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	for _, spec := range specs {
		if _, err := c.AddFunc(spec, func() { a.MakePost(ctx) }); err != nil {
			return fmt.Errorf("schedule %q: %w", spec, err)
		}
	}
	c.Start()
	a.log.Info("posting at fixed times", zap.Strings("times", sc.Times), zap.String("timezone", loc.String()))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronSpecs turns HH:MM times into daily cron expressions.
func cronSpecs(times []string) ([]string, error) {
	specs := make([]string, 0, len(times))
	for _, t := range times {
		h, m, err := config.ParseClock(t)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fmt.Sprintf("%d %d * * *", m, h))
	}
	return specs, nil
}
