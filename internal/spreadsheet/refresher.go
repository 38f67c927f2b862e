package spreadsheet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapreport/pkg/core"
)

// Extension of every workbook the refresher reads or writes.
const Extension = ".xlsx"

// Options configures a Refresher.
type Options struct {
	// Dir is the output directory holding the template and the reports.
	Dir string
	// Template is the template file name inside Dir.
	Template string
	// Sheet and Cell locate the completion timestamp. An empty sheet is the
	// first sheet.
	Sheet string
	Cell  string
	// Prefix is prepended to the stamp to form the report file name.
	Prefix string
	// OnError decides whether failures reach the caller.
	OnError Policy
}

// Refresher drives one template refresh per call.
type Refresher struct {
	start  AppFactory
	reaper Reaper
	waiter Waiter
	opts   Options
	logger *slog.Logger
}

// NewRefresher creates a Refresher. start launches the application for each
// refresh. Nil reaper and waiter fall back to NopReaper and PollWaiter
// defaults; a nil logger discards output.
func NewRefresher(start AppFactory, reaper Reaper, waiter Waiter, opts Options, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if reaper == nil {
		reaper = NopReaper{}
	}
	if waiter == nil {
		waiter = PollWaiter{}
	}
	if opts.Cell == "" {
		opts.Cell = "B4"
	}
	if opts.OnError == "" {
		opts.OnError = Propagate
	}
	return &Refresher{start: start, reaper: reaper, waiter: waiter, opts: opts, logger: logger}
}

// ReportName returns the report file name for stamp.
func (r *Refresher) ReportName(stamp string) string {
	return r.opts.Prefix + stamp + Extension
}

// Refresh opens the template, stamps it, refreshes its data, saves it as a
// new report and prunes older reports. It returns the report path.
//
// Stray application processes are reaped before the application is started
// and again after it has quit. With the Suppress policy a failure is logged
// and Refresh returns "" and nil.
func (r *Refresher) Refresh(ctx context.Context, stamp string) (string, error) {
	path, err := r.refresh(ctx, stamp)
	if err == nil {
		return path, nil
	}
	if r.opts.OnError == Suppress {
		r.logger.Error("spreadsheet refresh failed, continuing", slog.String("error", err.Error()))
		return "", nil
	}
	return "", err
}

func (r *Refresher) refresh(ctx context.Context, stamp string) (string, error) {
	r.reap(ctx, "before")
	defer r.reap(context.WithoutCancel(ctx), "after")

	app, err := r.start()
	if err != nil {
		return "", &core.SpreadsheetError{Step: "start", Err: err}
	}
	defer func() {
		if qerr := app.Quit(); qerr != nil {
			r.logger.Warn("failed to quit spreadsheet application", slog.String("error", qerr.Error()))
		}
	}()

	templatePath := filepath.Join(r.opts.Dir, r.opts.Template)
	reportPath := filepath.Join(r.opts.Dir, r.ReportName(stamp))

	wb, err := app.Open(ctx, templatePath)
	if err != nil {
		return "", &core.SpreadsheetError{Step: "open", Err: err}
	}
	closed := false
	defer func() {
		if !closed {
			_ = wb.Close()
		}
	}()

	if err := wb.SetCell(r.opts.Sheet, r.opts.Cell, stamp); err != nil {
		return "", &core.SpreadsheetError{Step: "set_cell", Err: err}
	}

	r.logger.Info("refreshing workbook", slog.String("template", templatePath))
	if err := wb.RefreshAll(ctx); err != nil {
		return "", &core.SpreadsheetError{Step: "refresh", Err: err}
	}
	if err := r.waiter.Wait(ctx, wb); err != nil {
		return "", &core.SpreadsheetError{Step: "wait", Err: err}
	}
	if err := wb.SaveAs(reportPath); err != nil {
		return "", &core.SpreadsheetError{Step: "save", Err: err}
	}
	closed = true
	if err := wb.Close(); err != nil {
		return "", &core.SpreadsheetError{Step: "close", Err: err}
	}

	if _, err := Prune(r.opts.Dir, r.logger, r.opts.Template, filepath.Base(reportPath)); err != nil {
		return "", &core.SpreadsheetError{Step: "prune", Err: err}
	}

	r.logger.Info("workbook saved", slog.String("path", reportPath))
	return reportPath, nil
}

func (r *Refresher) reap(ctx context.Context, when string) {
	n, err := r.reaper.Reap(ctx)
	if err != nil {
		r.logger.Warn("failed to reap spreadsheet processes", slog.String("when", when), slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		r.logger.Info("reaped spreadsheet processes", slog.String("when", when), slog.Int("count", n))
	}
}

// Prune deletes every workbook in dir whose name is not in keep. A failure to
// delete an individual file is logged and skipped; only a failure to list
// dir is returned. The names of deleted files are returned.
func Prune(dir string, logger *slog.Logger, keep ...string) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}

	var deleted []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), Extension) || kept[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			logger.Warn("failed to delete old report", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		logger.Info("deleted old report", slog.String("file", name))
		deleted = append(deleted, name)
	}
	return deleted, nil
}
