package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/audit"
	"github.com/pario-ai/persona/pkg/cache/sqlite"
	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/mcp"
	"github.com/pario-ai/persona/pkg/tracker"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve spend, decisions and cache stats over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init tracker: %w", err)
			}
			defer func() { _ = tr.Close() }()

			opts := mcp.Options{
				Spend:    tr,
				DailyCap: cfg.Budget.DailyCharacters,
				Version:  versioninfo.Short(),
				// stdout carries the protocol
				Log: zap.NewNop(),
			}
			if cfg.Audit.Enabled {
				l, err := audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("open audit db: %w", err)
				}
				defer func() { _ = l.Close() }()
				opts.Decisions = l
			}
			if cfg.Cache.Enabled && cfg.Cache.Backend == config.CacheSQLite {
				c, err := sqlite.New(cfg.DBPath, cfg.Cache.TTL)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				defer func() { _ = c.Close() }()
				opts.Cache = c
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return mcp.New(opts).Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	return cmd
}
