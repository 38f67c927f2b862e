// Package pipeline runs one report refresh from extraction to email.
//
// A run moves through the steps in order and stops at the first error. A
// failed run sends a single plaintext failure notification in place of the
// summary; there is no partial success and no resumption.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapreport/internal/archive"
	"github.com/leapstack-labs/leapreport/internal/export"
	"github.com/leapstack-labs/leapreport/internal/mail"
	"github.com/leapstack-labs/leapreport/internal/queries"
	"github.com/leapstack-labs/leapreport/internal/report"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
)

// Defaults for Config fields left empty.
const (
	DefaultStampLayout   = "2006-01-02 15:04:05"
	DefaultMarketingFile = "marketing_data.csv"
	DefaultSearchFile    = "search_data.csv"
	DefaultSubjectPrefix = "Auto-email: "

	notifyTimeout = time.Minute
)

// Config is the per-run configuration.
type Config struct {
	OutputDir     string
	MarketingFile string
	SearchFile    string
	Recipients    []string
	StampLayout   string
	SubjectPrefix string

	// Tables are unquoted source table names; the warehouse quotes them.
	Tables  queries.Tables
	Queries queries.Options
	Report  report.Options
}

func (c Config) withDefaults() Config {
	if c.MarketingFile == "" {
		c.MarketingFile = DefaultMarketingFile
	}
	if c.SearchFile == "" {
		c.SearchFile = DefaultSearchFile
	}
	if c.StampLayout == "" {
		c.StampLayout = DefaultStampLayout
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	return c
}

// Refresher regenerates the report workbook and returns its path. An empty
// path with a nil error means the refresh was skipped.
type Refresher interface {
	Refresh(ctx context.Context, stamp string) (string, error)
}

// Deps are the collaborators of a run. Archiver and Store are optional.
type Deps struct {
	Warehouse warehouse.Warehouse
	Refresher Refresher
	Mailer    mail.Mailer
	Archiver  archive.Archiver
	Store     core.Store
	Now       func() time.Time
	Logger    *slog.Logger
}

// Pipeline runs report refreshes.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// New validates deps and creates a Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Warehouse == nil:
		return nil, fmt.Errorf("pipeline requires a warehouse")
	case deps.Refresher == nil:
		return nil, fmt.Errorf("pipeline requires a spreadsheet refresher")
	case deps.Mailer == nil:
		return nil, fmt.Errorf("pipeline requires a mailer")
	case len(cfg.Recipients) == 0:
		return nil, fmt.Errorf("pipeline requires at least one recipient")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg.withDefaults(), deps: deps, logger: deps.Logger}, nil
}

// Run executes one refresh. The returned run describes the outcome; a failed
// run is not an error as long as its failure notification was delivered.
// When the notification itself fails, the returned error joins the run
// error with the delivery error.
func (p *Pipeline) Run(ctx context.Context) (*core.Run, error) {
	run := p.startRun()
	p.logger.Info("run started", slog.String("run_id", run.ID))

	err := p.execute(ctx, run)

	done := p.deps.Now()
	run.CompletedAt = &done
	if err == nil {
		run.Status = core.RunStatusSucceeded
		p.finishRun(run)
		p.logger.Info("run succeeded", slog.String("run_id", run.ID), slog.Duration("duration", run.Duration()))
		return run, nil
	}

	run.Status = core.RunStatusFailed
	run.Error = err.Error()
	p.finishRun(run)
	p.logger.Error("run failed",
		slog.String("run_id", run.ID),
		slog.String("step", core.StepOf(err)),
		slog.String("error", err.Error()))

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if nerr := p.notifyFailure(nctx, done, err); nerr != nil {
		p.logger.Error("failure notification not delivered", slog.String("error", nerr.Error()))
		return run, errors.Join(err, nerr)
	}
	return run, nil
}

func (p *Pipeline) execute(ctx context.Context, run *core.Run) error {
	plan := queries.NewPlan(p.deps.Now(), queries.Tables{
		Marketing: p.deps.Warehouse.QuoteTable(p.cfg.Tables.Marketing),
		Search:    p.deps.Warehouse.QuoteTable(p.cfg.Tables.Search),
	}, p.cfg.Queries)

	files := map[string]string{
		queries.Marketing: p.cfg.MarketingFile,
		queries.Search:    p.cfg.SearchFile,
	}
	for _, q := range plan.Extracts() {
		tbl, err := warehouse.Fetch(ctx, p.deps.Warehouse, q.Name, q.SQL)
		if err != nil {
			return err
		}
		path := filepath.Join(p.cfg.OutputDir, files[q.Name])
		if err := export.WriteCSV(path, tbl); err != nil {
			return err
		}
		p.logger.Info("exported", slog.String("query", q.Name), slog.String("path", path), slog.Int("rows", tbl.Len()))

		switch q.Name {
		case queries.Marketing:
			run.MarketingRows = tbl.Len()
		case queries.Search:
			run.SearchRows = tbl.Len()
		}
	}

	stamp := p.deps.Now().Format(p.cfg.StampLayout)
	run.CompletionStamp = stamp

	reportPath, err := p.deps.Refresher.Refresh(ctx, stamp)
	if err != nil {
		return err
	}
	run.ReportPath = reportPath

	if p.deps.Archiver != nil && reportPath != "" {
		uri, err := p.deps.Archiver.Archive(ctx, reportPath)
		if err != nil {
			return err
		}
		run.ArchiveURI = uri
	}

	summary, err := report.NewReporter(p.deps.Warehouse, plan, p.cfg.Report, p.logger).Build(ctx, stamp)
	if err != nil {
		return err
	}

	return p.deps.Mailer.Send(ctx, mail.Message{
		To:      p.cfg.Recipients,
		Subject: p.cfg.SubjectPrefix + "Data update completed " + stamp,
		HTML:    summary.HTML,
		Text:    summary.Text,
	})
}

func (p *Pipeline) notifyFailure(ctx context.Context, at time.Time, runErr error) error {
	stamp := at.Format(p.cfg.StampLayout)
	return p.deps.Mailer.Send(ctx, mail.Message{
		To:      p.cfg.Recipients,
		Subject: p.cfg.SubjectPrefix + "Data update FAILED " + stamp,
		Text:    FailureBody(stamp, runErr),
	})
}

// FailureBody is the plaintext body of a failure notification.
func FailureBody(stamp string, err error) string {
	return fmt.Sprintf("Script failed at %s with error:\n\n%s\n\nFailed step: %s\n", stamp, err, core.StepOf(err))
}

// startRun records the start of a run. History is bookkeeping only, so a
// store failure leaves the run with a local id and is logged.
func (p *Pipeline) startRun() *core.Run {
	started := p.deps.Now()
	if p.deps.Store != nil {
		run, err := p.deps.Store.CreateRun(started)
		if err == nil {
			return run
		}
		p.logger.Warn("failed to record run start", slog.String("error", err.Error()))
	}
	return &core.Run{Status: core.RunStatusRunning, StartedAt: started}
}

func (p *Pipeline) finishRun(run *core.Run) {
	if p.deps.Store == nil || run.ID == "" {
		return
	}
	if err := p.deps.Store.CompleteRun(run); err != nil {
		p.logger.Warn("failed to record run result", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}
}
