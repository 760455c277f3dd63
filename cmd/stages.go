package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapleads/mapleads/internal/scrape"
)

// newQueriesCmd creates the 'queries' subcommand, which only regenerates the
// search-query artifact from the configured word lists.
func newQueriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queries",
		Short: "Generate the search-query list",
		Long: `Builds the cartesian product of the configured brand, category and
location word lists and writes it to the queries artifact. The later
stages consume this artifact in order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			p, err := rt.newPipeline()
			if err != nil {
				return err
			}
			count, err := p.GenerateQueries(cmd.Context())
			if err != nil {
				return err
			}
			rt.logger.Info("Query artifact written", zap.Int("queries", count))
			return nil
		},
	}
}

// newSearchCmd creates the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Harvest place links from map search results",
		Long: `Runs every generated query against the map search UI, scrolls the
result feed until it stops growing, and appends each newly discovered
place link to the links artifact.`,
		RunE: stageRunE(func(ctx context.Context, rt *runtime) (scrape.Summary, error) {
			p, err := rt.newPipeline()
			if err != nil {
				return scrape.Summary{}, err
			}
			return p.RunSearch(ctx)
		}),
	}
}

// newPlacesCmd creates the 'places' subcommand.
func newPlacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "places",
		Short: "Parse harvested place pages into records",
		Long: `Opens each harvested place link and parses the listing panel into a
structured record: name, category, address, rating, review count,
website and phone. Records are appended to the places artifact.`,
		RunE: stageRunE(func(ctx context.Context, rt *runtime) (scrape.Summary, error) {
			p, err := rt.newPipeline()
			if err != nil {
				return scrape.Summary{}, err
			}
			return p.RunPlaces(ctx)
		}),
	}
}

// newEnrichCmd creates the 'enrich' subcommand.
func newEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Scrape contact details from business websites",
		Long: `Visits each place's website, probes its likely contact pages, and
appends a record enriched with the best-scoring email, up to three
phone numbers and the first link found per social platform.`,
		RunE: stageRunE(func(ctx context.Context, rt *runtime) (scrape.Summary, error) {
			p, err := rt.newPipeline()
			if err != nil {
				return scrape.Summary{}, err
			}
			return p.RunEnrich(ctx)
		}),
	}
}

// stageRunE wraps a single-stage invocation with runtime setup and a final
// summary log line.
func stageRunE(fn func(ctx context.Context, rt *runtime) (scrape.Summary, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.close(cmd.Context())

		summary, err := fn(cmd.Context(), rt)
		if err != nil {
			return err
		}
		rt.logger.Info("Stage finished",
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
		return nil
	}
}
