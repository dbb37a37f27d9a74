package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/persona/pkg/config"
)

func newConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the persona configuration",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the config file and report every problem in it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("%s is valid: u/%s on r/%s, %d provider(s), selection %s\n",
				configPath, cfg.Bot.Username, cfg.Bot.Subreddit, len(cfg.Providers), cfg.Generation.Selection)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	cmd.AddCommand(validateCmd)
	return cmd
}
