package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/drhp-archiver/internal/api"
)

// newScheduleCmd creates the 'schedule' subcommand, which repeats runs on a cron
// expression until the process is signalled.
func newScheduleCmd() *cobra.Command {
	var (
		expr   string
		listen string
		runNow bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run archive passes on a cron schedule",
		Long: `Keeps the process alive and starts an archive pass on every tick of
schedule.cron (standard five-field syntax or descriptors such as "@every 6h").
A tick that arrives while a pass is still running is skipped.

When server.listen (or --listen) is set, a status server exposes /healthz,
/readyz, /metrics, /v1/state, /v1/runs/last, and POST /v1/runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if expr == "" {
				expr = rt.cfg.Schedule.Cron
			}
			if listen == "" {
				listen = rt.cfg.Server.Listen
			}

			a, err := newApp(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			defer a.Close()

			opts := scheduleOptions{expr: expr, runNow: runNow}
			if listen != "" {
				ln, err := net.Listen("tcp", listen)
				if err != nil {
					return fmt.Errorf("listen on %s: %w", listen, err)
				}
				opts.listener = ln
			}
			return runSchedule(cmd.Context(), opts, a, rt.logger)
		},
	}
	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (overrides schedule.cron)")
	cmd.Flags().StringVar(&listen, "listen", "", "status server address, e.g. :8080 (overrides server.listen)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "start a pass immediately instead of waiting for the first tick")
	return cmd
}

type scheduleOptions struct {
	expr   string
	runNow bool
	// listener, when non-nil, serves the status API until ctx is done.
	listener net.Listener
}

func runSchedule(ctx context.Context, opts scheduleOptions, a App, logger *zap.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	cronLog := cronLogger{logger: logger.Sugar()}
	c := cron.New(cron.WithLogger(cronLog))
	tracker := newRunTracker(ctx, a, logger)

	job := cron.NewChain(cron.Recover(cronLog)).Then(cron.FuncJob(func() {
		tracker.RunIfIdle()
	}))
	if _, err := c.AddJob(opts.expr, job); err != nil {
		if opts.listener != nil {
			_ = opts.listener.Close()
		}
		return fmt.Errorf("parse schedule %q: %w", opts.expr, err)
	}

	var srv *http.Server
	serveErr := make(chan error, 1)
	if opts.listener != nil {
		recorder := a.Metrics()
		handler := api.NewServer(tracker, a.State(), recorder.Registry(), recorder, logger).Handler()
		srv = &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server started", zap.String("addr", opts.listener.Addr().String()))
			if err := srv.Serve(opts.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", zap.Error(err))
				serveErr <- fmt.Errorf("status server: %w", err)
				stop()
			}
		}()
	}

	logger.Info("scheduler started", zap.String("cron", opts.expr))
	c.Start()
	if opts.runNow {
		tracker.Trigger()
	}

	<-ctx.Done()
	logger.Info("scheduler stopping; waiting for the current run")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", zap.Error(err))
		}
		cancel()
	}
	<-c.Stop().Done()
	tracker.Wait()
	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
