package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/drhp-archiver/internal/app"
	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// openState is the state factory. It's a variable so tests can replace it.
var openState = app.OpenState

// newStateCmd groups commands that inspect or edit the processed set.
func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or edit the set of processed URLs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every processed URL, sorted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withState(cmd, func(ctx context.Context, store archiver.StateStore, _ *zap.Logger) error {
				set, err := store.Load(ctx)
				if err != nil {
					return fmt.Errorf("load state: %w", err)
				}
				for _, u := range set.Sorted() {
					fmt.Fprintln(cmd.OutOrStdout(), u)
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget URL...",
		Short: "Remove URLs so the next run archives them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, func(ctx context.Context, store archiver.StateStore, logger *zap.Logger) error {
				set, err := store.Load(ctx)
				if err != nil {
					return fmt.Errorf("load state: %w", err)
				}
				removed := 0
				for _, u := range args {
					if set.Remove(u) {
						removed++
					} else {
						logger.Warn("url not in processed set", zap.String("url", u))
					}
				}
				if removed == 0 {
					return nil
				}
				if err := store.Save(ctx, set); err != nil {
					return fmt.Errorf("save state: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d url(s)\n", removed)
				return nil
			})
		},
	})
	return cmd
}

func withState(cmd *cobra.Command, fn func(context.Context, archiver.StateStore, *zap.Logger) error) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	store, closeState, err := openState(cmd.Context(), rt.cfg.State)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer func() {
		if err := closeState(); err != nil {
			rt.logger.Warn("error closing state store", zap.Error(err))
		}
	}()
	return fn(cmd.Context(), store, rt.logger)
}

