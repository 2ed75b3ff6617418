package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand: one discover-and-archive pass.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one archive pass",
		Long: `Fetches the listing page once, archives every matching document that
has not been processed before, and saves the processed set. Per-document
failures are logged and retried on the next run.`,
		Args: cobra.NoArgs,
		RunE: runArchiveCommand,
	}
}

func runArchiveCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer a.Close()

	summary, err := a.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "candidates=%d skipped=%d archived=%d failed=%d\n",
		summary.Candidates, summary.Skipped, summary.Archived, summary.Failed)
	rt.logger.Info("run command finished", zap.String("run_id", summary.RunID))
	return nil
}
