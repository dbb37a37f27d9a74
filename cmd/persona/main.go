package main

import (
	"fmt"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
)

const defaultConfig = "persona.yaml"

func main() {
	root := &cobra.Command{
		Use:          "persona",
		Short:        "Persona - an autonomous subreddit persona driven by generated text",
		Version:      versioninfo.Short(),
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newConfigCmd(),
		newBudgetCmd(),
		newStatsCmd(),
		newAuditCmd(),
		newCacheCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
