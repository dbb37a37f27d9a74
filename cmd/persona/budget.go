package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/persona/pkg/budget"
	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/tracker"
)

func newBudgetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect the daily character budget",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's spend against the daily cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Budget.Persist {
				fmt.Println("Budget persistence is disabled; spend is only known to the running persona.")
				return nil
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			now := time.Now()
			start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			spent, err := tr.TotalSince(context.Background(), start.UTC())
			if err != nil {
				return err
			}
			s := budget.StatusFor(now.Format("2006-01-02"), spent, cfg.Budget.DailyCharacters)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tCAP\tSPENT\tREMAINING\tUSED")
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d%%\n", s.Day, s.Cap, s.Spent, s.Remaining, s.Percent)
			return w.Flush()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	cmd.AddCommand(statusCmd)
	return cmd
}
