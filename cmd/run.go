package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapleads/mapleads/internal/api"
)

// newRunCmd creates the 'run' subcommand, which executes the whole pipeline
// end to end and optionally serves the status API while it runs.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		Long: `Executes every stage in order: query generation, search harvesting,
place parsing and website enrichment. Stage checkpoints make the run
resumable; rerunning after an interruption picks up where it stopped.
With api.enabled set, a status and metrics HTTP server runs alongside.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if rt.cfg.API.Enabled {
				srv := api.NewServer(api.Config{
					Addr:   rt.cfg.API.Addr,
					APIKey: rt.cfg.API.APIKey,
				}, rt.tracker, rt.logger)
				go func() {
					if err := srv.ListenAndServe(ctx); err != nil {
						rt.logger.Error("Status server failed", zap.Error(err))
					}
				}()
			}

			p, err := rt.newPipeline()
			if err != nil {
				return err
			}
			return p.Run(ctx)
		},
	}
}
