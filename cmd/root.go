// Package cmd defines and implements the CLI commands for the drhp-archiver executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/drhp-archiver/internal/app"
	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	"github.com/JakeFAU/drhp-archiver/internal/config"
	"github.com/JakeFAU/drhp-archiver/internal/logging"
	"github.com/JakeFAU/drhp-archiver/internal/metrics"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime carries what PersistentPreRunE loaded for the subcommands.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// App is the part of *app.App the commands use. Tests inject a fake.
type App interface {
	RunOnce(ctx context.Context) (archiver.Summary, error)
	State() archiver.StateStore
	Metrics() *metrics.Recorder
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "drhp-archiver",
		Short: "Archives newly published offer-document filings.",
		Long: `drhp-archiver watches a public disclosure page for draft red herring
prospectus filings, downloads the ones it has not seen before, archives them
to remote storage, and remembers which URLs it has processed.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs before every subcommand: load config, build the logger.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveRuntime(cmd.Context()); err == nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); DRHP_* environment variables override it")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newStateCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// No-op until PersistentPreRunE has replaced the global logger.
		zap.L().Error("command failed", zap.Error(err))
		_ = zap.L().Sync()
		fmt.Fprintf(os.Stderr, "drhp-archiver: %v\n", err)
		os.Exit(1)
	}
}
