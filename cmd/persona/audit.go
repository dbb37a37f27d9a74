package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/persona/pkg/audit"
	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the decision log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(),
		newAuditShowCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func newAuditSearchCmd() *cobra.Command {
	var (
		configPath string
		action     string
		outcome    string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search logged decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Action:  models.Action(action),
				Outcome: models.Outcome(outcome),
				Limit:   limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			ds, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatDecisions(ds))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to persona config file")
	cmd.Flags().StringVar(&action, "action", "", "filter by action (post, comment, reply, score)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newAuditShowCmd() *cobra.Command {
	var (
		configPath string
		id         string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single decision by ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}

			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ds, err := l.Query(context.Background(), models.AuditQueryOpts{ID: id, Limit: 1})
			if err != nil {
				return err
			}
			if len(ds) == 0 {
				fmt.Println("No decision found for that ID.")
				return nil
			}

			d := ds[0]
			fmt.Printf("ID:       %s\n", d.ID)
			fmt.Printf("Action:   %s\n", d.Action)
			fmt.Printf("Outcome:  %s\n", d.Outcome)
			fmt.Printf("Target:   %s\n", d.Target)
			fmt.Printf("Model:    %s\n", d.Model)
			fmt.Printf("Cost:     %d\n", d.Cost)
			fmt.Printf("Time:     %s\n", d.CreatedAt.Format(time.RFC3339))
			if d.Reason != "" {
				fmt.Printf("Reason:   %s\n", d.Reason)
			}
			if d.Prompt != "" {
				fmt.Printf("\n--- Prompt ---\n%s\n", d.Prompt)
			}
			if d.Output != "" {
				fmt.Printf("\n--- Output ---\n%s\n", d.Output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to persona config file")
	cmd.Flags().StringVar(&id, "id", "", "decision ID to show")

	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count decisions by action, outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatAuditStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to persona config file")
	return cmd
}

func newAuditCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete decisions older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d decisions.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to persona config file")
	return cmd
}

// openAuditLogger opens the decision log named by the config file, or the
// default database when no config is given.
func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
	}
	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = cfg.DBPath
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatDecisions(ds []models.Decision) string {
	if len(ds) == 0 {
		return "No decisions found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-8s %-13s %-12s %7s %-20s\n",
		"ID", "ACTION", "OUTCOME", "TARGET", "COST", "TIME")
	b.WriteString(strings.Repeat("-", 101) + "\n")
	for _, d := range ds {
		fmt.Fprintf(&b, "%-36s %-8s %-13s %-12s %7d %-20s\n",
			d.ID, d.Action, d.Outcome, d.Target, d.Cost,
			d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No decisions recorded.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-8s %-13s %8s\n", "DAY", "ACTION", "OUTCOME", "COUNT")
	b.WriteString(strings.Repeat("-", 44) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-8s %-13s %8d\n", s.Day, s.Action, s.Outcome, s.Count)
	}
	return b.String()
}
