package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/leapreport/internal/archive"
	"github.com/leapstack-labs/leapreport/internal/cli/config"
	"github.com/leapstack-labs/leapreport/internal/cli/output"
	"github.com/leapstack-labs/leapreport/internal/mail"
	"github.com/leapstack-labs/leapreport/internal/pipeline"
	"github.com/leapstack-labs/leapreport/internal/queries"
	"github.com/leapstack-labs/leapreport/internal/report"
	"github.com/leapstack-labs/leapreport/internal/spreadsheet"
	"github.com/leapstack-labs/leapreport/internal/state"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the current configuration, or defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		OutputDir:    config.DefaultOutputDir,
		StatePath:    config.DefaultStateFile,
		OutputFormat: config.DefaultOutput,
		LogFormat:    config.DefaultLogFormat,
		Warehouse:    &config.WarehouseConfig{},
	}
}

// connectWarehouse creates and connects the configured warehouse.
func connectWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) (warehouse.Warehouse, error) {
	wh, err := warehouse.New(*cfg.Warehouse, logger)
	if err != nil {
		return nil, err
	}
	if err := wh.Connect(ctx, *cfg.Warehouse); err != nil {
		return nil, fmt.Errorf("failed to connect to %s warehouse: %w", cfg.Warehouse.Type, err)
	}
	return wh, nil
}

// openStore opens and migrates the run history database.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, nil
}

// newRefresher builds the spreadsheet refresher for the configured backend.
func newRefresher(cfg *config.Config, logger *slog.Logger) (*spreadsheet.Refresher, error) {
	sc := cfg.Spreadsheet
	start, err := spreadsheet.NewAppFactory(sc.Backend, sc.Sources)
	if err != nil {
		return nil, err
	}
	policy, err := spreadsheet.ParsePolicy(sc.OnError)
	if err != nil {
		return nil, err
	}

	var reaper spreadsheet.Reaper = spreadsheet.NopReaper{}
	if sc.Backend == spreadsheet.BackendExcel {
		reaper = spreadsheet.ProcessReaper{Name: sc.Process}
	}

	var waiter spreadsheet.Waiter = spreadsheet.PollWaiter{
		Settle:   sc.Settle,
		Interval: sc.PollInterval,
		Timeout:  sc.Timeout,
	}
	if sc.FixedDelay > 0 {
		waiter = spreadsheet.FixedDelay(sc.FixedDelay)
	}

	return spreadsheet.NewRefresher(start, reaper, waiter, spreadsheet.Options{
		Dir:      cfg.OutputDir,
		Template: sc.Template,
		Sheet:    sc.Sheet,
		Cell:     sc.Cell,
		Prefix:   sc.Prefix,
		OnError:  policy,
	}, logger), nil
}

// pipelineConfig maps the CLI configuration onto a pipeline run.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		OutputDir:     cfg.OutputDir,
		MarketingFile: cfg.MarketingFile,
		SearchFile:    cfg.SearchFile,
		Recipients:    cfg.Recipients,
		StampLayout:   cfg.Spreadsheet.StampLayout,
		SubjectPrefix: cfg.Mail.SubjectPrefix,
		Tables: queries.Tables{
			Marketing: cfg.Tables.Marketing,
			Search:    cfg.Tables.Search,
		},
		Queries: queries.Options{
			TopN:         cfg.Queries.TopN,
			SummaryLimit: cfg.Queries.SummaryLimit,
			WindowDays:   cfg.Queries.WindowDays,
		},
		Report: report.Options{
			Greeting:  cfg.Report.Greeting,
			Signature: cfg.Report.Signature,
			Currency:  cfg.Report.Currency,
			Language:  cfg.LanguageTag(),
		},
	}
}

func smtpConfig(cfg *config.Config) mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		SSL:      cfg.Mail.SSL,
	}
}

// buildPipeline wires a pipeline from configuration. The returned cleanup
// closes the warehouse and the state store and must always be called.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	if err := cfg.ValidateRun(); err != nil {
		return nil, nil, fmt.Errorf("configuration incomplete: %w", err)
	}
	if err := cfg.ValidateDirectories(); err != nil {
		return nil, nil, err
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", slog.String("error", err.Error()))
			}
		}
	}

	wh, err := connectWarehouse(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, wh.Close)

	refresher, err := newRefresher(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	deps := pipeline.Deps{
		Warehouse: wh,
		Refresher: refresher,
		Mailer:    mail.NewSMTPMailer(smtpConfig(cfg), logger),
		Logger:    logger,
	}

	if cfg.Archive.Enabled() {
		arch, err := archive.NewS3Archiver(ctx, archive.S3Config{
			Bucket:   cfg.Archive.S3Bucket,
			Prefix:   cfg.Archive.Prefix,
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.Archiver = arch
	}

	// Run history is best effort.
	if store, err := openStore(cfg, logger); err != nil {
		logger.Warn("run history disabled", slog.String("error", err.Error()))
	} else {
		deps.Store = store
		closers = append(closers, store.Close)
	}

	p, err := pipeline.New(pipelineConfig(cfg), deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

// relPath shortens p relative to the project root for display.
func relPath(root, p string) string {
	if root == "" || p == "" {
		return p
	}
	if rel, err := filepath.Rel(root, p); err == nil {
		return rel
	}
	return p
}
