package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/config"
)

var cfg *config.Config

// exitCode lets subcommands signal a non-failure exit status, such as
// the partial-result code from a run that missed its yield target.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Lead generation and outreach pipeline for UK tradespeople",
	Long:  "Discovers tradesperson businesses, crawls their sites for contact emails, classifies which are safe to contact, and sends templated outreach on a daily budget.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
