// Package cmd defines and implements the CLI commands for the mapleads executable.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapleads",
		Short: "A resumable map-listing crawler and contact enricher.",
		Long: `mapleads crawls map search results for local businesses and turns them
into contact-enriched lead lists. The pipeline runs in stages: generate
search queries, harvest place links, parse each place page, then visit
each business website for emails, phones and social links. Every stage
checkpoints its progress, so an interrupted run resumes where it stopped.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(
		newQueriesCmd(),
		newSearchCmd(),
		newPlacesCmd(),
		newEnrichCmd(),
		newRunCmd(),
	)
	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context; the stages checkpoint on every item, so interruption is safe.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
