package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/persona/pkg/cache/sqlite"
	"github.com/pario-ai/persona/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the image caption cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openSQLiteCache(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openSQLiteCache(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Clear(expiredOnly); err != nil {
				return err
			}
			if expiredOnly {
				fmt.Println("Expired cache entries cleared.")
			} else {
				fmt.Println("All cache entries cleared.")
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

// openSQLiteCache opens the on-disk caption cache. Memory and redis caches
// are owned by the running persona and cannot be inspected from here.
func openSQLiteCache(configPath string) (*sqlite.Cache, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Backend != config.CacheSQLite {
		return nil, fmt.Errorf("cache backend %q cannot be inspected offline", cfg.Cache.Backend)
	}
	return sqlite.New(cfg.DBPath, cfg.Cache.TTL)
}
