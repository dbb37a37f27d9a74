package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pario-ai/persona/pkg/models"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 30,
		StorePrompts:  true,
		MaxBodySize:   64,
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleDecision() models.Decision {
	return models.Decision{
		Action:  models.ActionReply,
		Target:  "t1_abc",
		Model:   "persona-reply",
		Prompt:  `Comment by u/someone: "hi"`,
		Output:  "hello there.",
		Outcome: models.OutcomePosted,
		Cost:    27,
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleDecision()))

	got, err := l.Query(ctx, models.AuditQueryOpts{Action: models.ActionReply})
	require.NoError(t, err)
	require.Len(t, got, 1)

	d := got[0]
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "t1_abc", d.Target)
	assert.Equal(t, models.OutcomePosted, d.Outcome)
	assert.Equal(t, int64(27), d.Cost)
	assert.Equal(t, `Comment by u/someone: "hi"`, d.Prompt)
	assert.False(t, d.CreatedAt.IsZero())
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	posted := sampleDecision()
	posted.ID = "one"
	rejected := sampleDecision()
	rejected.ID = "two"
	rejected.Outcome = models.OutcomeRejected
	rejected.Reason = "keyword"
	old := sampleDecision()
	old.ID = "three"
	old.CreatedAt = time.Now().AddDate(0, 0, -10)

	for _, d := range []models.Decision{posted, rejected, old} {
		require.NoError(t, l.Log(ctx, d))
	}

	got, err := l.Query(ctx, models.AuditQueryOpts{Outcome: models.OutcomeRejected})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keyword", got[0].Reason)

	got, err = l.Query(ctx, models.AuditQueryOpts{ID: "one"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = l.Query(ctx, models.AuditQueryOpts{Since: time.Now().AddDate(0, 0, -1)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = l.Query(ctx, models.AuditQueryOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPromptsNotStoredWhenDisabled(t *testing.T) {
	cfg := tempCfg(t)
	cfg.StorePrompts = false
	l := mustNew(t, cfg)
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleDecision()))
	got, err := l.Query(ctx, models.AuditQueryOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Prompt)
	assert.Equal(t, "hello there.", got[0].Output)
}

func TestBodyTruncation(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	d := sampleDecision()
	d.Output = strings.Repeat("x", 500)
	require.NoError(t, l.Log(ctx, d))

	got, err := l.Query(ctx, models.AuditQueryOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Output, 64)
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	for range 3 {
		require.NoError(t, l.Log(ctx, sampleDecision()))
	}
	d := sampleDecision()
	d.Outcome = models.OutcomeDeclined
	require.NoError(t, l.Log(ctx, d))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	counts := map[models.Outcome]int{}
	for _, s := range stats {
		assert.Equal(t, models.ActionReply, s.Action)
		counts[s.Outcome] = s.Count
	}
	assert.Equal(t, 3, counts[models.OutcomePosted])
	assert.Equal(t, 1, counts[models.OutcomeDeclined])
}

func TestCleanup(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	old := sampleDecision()
	old.CreatedAt = time.Now().AddDate(0, 0, -60)
	require.NoError(t, l.Log(ctx, old))
	require.NoError(t, l.Log(ctx, sampleDecision()))

	deleted, err := l.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestNilLoggerDiscards(t *testing.T) {
	var l *Logger
	assert.NoError(t, l.Log(context.Background(), sampleDecision()))
}

func TestCloseStopsRetentionLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l, err := New(tempCfg(t))
	require.NoError(t, err)
	require.NoError(t, l.Close())
}
