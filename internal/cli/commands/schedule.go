package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/leapstack-labs/leapreport/internal/cli/config"
	"github.com/spf13/cobra"
)

// ScheduleOptions holds options for the schedule command.
type ScheduleOptions struct {
	Cron string
	Now  bool
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand() *cobra.Command {
	opts := &ScheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the report refresh on a cron schedule",
		Long: `Keep running and refresh the report on a cron schedule.

Runs never overlap: a tick that arrives while a run is in progress is
skipped. Each tick builds a fresh pipeline from the configuration, so a
warehouse or mail outage only affects the runs that hit it.

leapreport.yaml is watched while the scheduler runs. Edits are picked up
by the next tick; an edit that does not validate is logged and ignored.

The schedule comes from schedule.cron in leapreport.yaml and is evaluated
in schedule.timezone. Changing the schedule itself needs a restart.
Stop with Ctrl-C.`,
		Example: `  # Use the configured schedule
  leapreport schedule

  # Weekday mornings at 06:30, plus one run right away
  leapreport schedule --cron "30 6 * * 1-5" --now`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchedule(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Cron, "cron", "", "Cron expression (overrides schedule.cron)")
	cmd.Flags().BoolVar(&opts.Now, "now", false, "Run once immediately before waiting for the schedule")

	return cmd
}

func runSchedule(cmd *cobra.Command, opts *ScheduleOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	expr := cfg.Schedule.Cron
	if opts.Cron != "" {
		expr = opts.Cron
	}
	if expr == "" {
		return fmt.Errorf("no schedule configured\nHint: Set schedule.cron in leapreport.yaml or pass --cron")
	}

	// Fail fast on configuration problems instead of at the first tick.
	if err := cfg.ValidateRun(); err != nil {
		return fmt.Errorf("configuration incomplete: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := cmd.Root().PersistentFlags()
	live := newLiveConfig(cfg, func() (*config.Config, error) {
		return config.LoadConfig(config.GetConfigFileUsed(), flags)
	}, logger)
	if path := config.GetConfigFileUsed(); path != "" {
		if err := live.watch(ctx, path); err != nil {
			logger.Warn("config changes will not be picked up", slog.String("error", err.Error()))
		}
	}

	s, err := newScheduler(ctx, live, expr, logger)
	if err != nil {
		return err
	}

	if opts.Now {
		runScheduled(ctx, live.Get(), logger)
	}

	s.StartAsync()
	_, next := s.NextRun()
	cmdCtx.Renderer.Success(fmt.Sprintf("Scheduled %q (%s), next run at %s", expr, cfg.Location(), next.Format(time.RFC3339)))

	<-ctx.Done()
	logger.Info("stopping scheduler")
	s.Stop()
	return nil
}

// newScheduler registers the report job. Runs are singletons and each one
// reads the configuration current at its tick.
func newScheduler(ctx context.Context, live *liveConfig, expr string, logger *slog.Logger) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(live.Get().Location())
	s.SingletonModeAll()

	job := func() { runScheduled(ctx, live.Get(), logger) }
	if _, err := s.Cron(expr).Do(job); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}

// runScheduled runs the pipeline once. Errors are logged; the scheduler keeps going.
func runScheduled(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	p, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("scheduled run not started", slog.String("error", err.Error()))
		return
	}
	defer cleanup()

	run, err := p.Run(ctx)
	if err != nil {
		logger.Error("scheduled run could not notify", slog.String("error", err.Error()))
		return
	}
	logger.Info("scheduled run finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)))
}
