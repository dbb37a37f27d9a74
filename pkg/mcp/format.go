package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/persona/pkg/models"
)

func formatBudgetStatus(s models.BudgetStatus) string {
	return fmt.Sprintf("Budget for %s\n"+
		"  Spent:     %d\n"+
		"  Cap:       %d\n"+
		"  Remaining: %d\n"+
		"  Usage:     %d%%\n",
		s.Day, s.Spent, s.Cap, s.Remaining, s.Percent)
}

func formatSpend(rows []models.SpendSummary) string {
	if len(rows) == 0 {
		return "No spend recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-14s %8s %10s\n", "Day", "Purpose", "Charges", "Characters")
	b.WriteString(strings.Repeat("-", 47) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-12s %-14s %8d %10d\n", r.Day, r.Purpose, r.Charges, r.Total)
	}
	return b.String()
}

func formatDecisions(ds []models.Decision) string {
	if len(ds) == 0 {
		return "No decisions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-8s %-13s %-12s %7s  %s\n", "Time", "Action", "Outcome", "Target", "Cost", "Output/Reason")
	b.WriteString(strings.Repeat("-", 100) + "\n")
	for _, d := range ds {
		detail := d.Output
		if d.Reason != "" {
			detail = d.Reason
		}
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		detail = strings.ReplaceAll(detail, "\n", " ")
		fmt.Fprintf(&b, "%-20s %-8s %-13s %-12s %7d  %s\n",
			d.CreatedAt.Format("2006-01-02 15:04:05"), d.Action, d.Outcome, d.Target, d.Cost, detail)
	}
	return b.String()
}

func formatDecisionStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No decisions recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-8s %-13s %8s\n", "Day", "Action", "Outcome", "Count")
	b.WriteString(strings.Repeat("-", 44) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-8s %-13s %8d\n", s.Day, s.Action, s.Outcome, s.Count)
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}
