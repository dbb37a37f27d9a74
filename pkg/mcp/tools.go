package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pario-ai/persona/pkg/budget"
	"github.com/pario-ai/persona/pkg/models"
)

type spendArgs struct {
	Days int `json:"days"`
}

type decisionArgs struct {
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	Since   string `json:"since"`
	Limit   int    `json:"limit"`
}

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"persona_budget":         handleBudget,
	"persona_spend":          handleSpend,
	"persona_decisions":      handleDecisions,
	"persona_decision_stats": handleDecisionStats,
	"persona_cache_stats":    handleCacheStats,
}

var allTools = []ToolDefinition{
	{
		Name:        "persona_budget",
		Description: "Show today's character spend against the daily budget.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "persona_spend",
		Description: "Show recorded spend grouped by day and purpose.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"days": map[string]any{
					"type":        "integer",
					"description": "How many days back to include (default 7)",
				},
			},
		},
	},
	{
		Name:        "persona_decisions",
		Description: "List recent post, comment and reply decisions with their outcome.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"description": "post, comment, reply or score (optional)",
				},
				"outcome": map[string]any{
					"type":        "string",
					"description": "posted, declined, rejected, no_candidate, discarded, failed, skipped or selected (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum entries to return (default 20)",
				},
			},
		},
	},
	{
		Name:        "persona_decision_stats",
		Description: "Count decisions by action, outcome and day.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "persona_cache_stats",
		Description: "Show caption cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.spend == nil {
		return textResult("Spend tracking is not configured.")
	}
	now := s.now()
	spent, err := s.spend.TotalSince(ctx, startOfDay(now).UTC())
	if err != nil {
		return errorResult("Error fetching budget status: " + err.Error())
	}
	return textResult(formatBudgetStatus(budget.StatusFor(now.Format("2006-01-02"), spent, s.dailyCap)))
}

func handleSpend(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.spend == nil {
		return textResult("Spend tracking is not configured.")
	}
	args := spendArgs{Days: 7}
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Days <= 0 {
		args.Days = 7
	}
	since := startOfDay(s.now()).AddDate(0, 0, -(args.Days - 1))
	rows, err := s.spend.Summary(ctx, since.UTC())
	if err != nil {
		return errorResult("Error fetching spend: " + err.Error())
	}
	return textResult(formatSpend(rows))
}

func handleDecisions(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.decisions == nil {
		return textResult("Audit logging is not configured.")
	}
	var args decisionArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	opts := models.AuditQueryOpts{
		Action:  models.Action(args.Action),
		Outcome: models.Outcome(args.Outcome),
		Limit:   args.Limit,
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	ds, err := s.decisions.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(formatDecisions(ds))
}

func handleDecisionStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.decisions == nil {
		return textResult("Audit logging is not configured.")
	}
	stats, err := s.decisions.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching decision stats: " + err.Error())
	}
	return textResult(formatDecisionStats(stats))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}
