package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded spend by day and purpose",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			now := time.Now()
			since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))
			summaries, err := tr.Summary(context.Background(), since.UTC())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No spend recorded.")
				return nil
			}

			var total int64
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tPURPOSE\tCHARGES\tCHARACTERS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", s.Day, s.Purpose, s.Charges, s.Total)
				total += s.Total
			}
			fmt.Fprintf(w, "\t\t\t%d\n", total)
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	cmd.Flags().IntVar(&days, "days", 7, "number of days to include")
	return cmd
}
