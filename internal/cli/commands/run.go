package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapreport/internal/cli/output"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	ExitCode bool
}

// ErrRunFailed is returned by run --exit-code when the run failed but its
// failure notification was delivered.
var ErrRunFailed = errors.New("report run failed")

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Refresh the report once and email the summary",
		Long: `Run the full report refresh once.

The run extracts the marketing and search datasets to CSV, refreshes the
template workbook, optionally archives it, and emails the summary tables to
the configured recipients. Any failure sends a single failure email instead.

The command exits non-zero only when an email could not be delivered. Use
--exit-code to also exit non-zero when the run failed.`,
		Example: `  # Run once with ./leapreport.yaml
  leapreport run

  # Fail the shell when the run fails (for cron and CI)
  leapreport run --exit-code

  # Use a different output directory
  leapreport run --output-dir /srv/reports`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ExitCode, "exit-code", false, "Exit with status 1 when the run fails")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	p, cleanup, err := buildPipeline(ctx, cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	run, runErr := p.Run(ctx)
	if run != nil {
		if err := renderRun(cmdCtx.Renderer, cmdCtx.Cfg.ProjectRoot, run); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if opts.ExitCode && run != nil && run.Status == core.RunStatusFailed {
		return ErrRunFailed
	}
	return nil
}

// runOutput is the JSON form of a run.
type runOutput struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Stamp         string     `json:"stamp,omitempty"`
	ReportPath    string     `json:"report_path,omitempty"`
	ArchiveURI    string     `json:"archive_uri,omitempty"`
	MarketingRows int        `json:"marketing_rows"`
	SearchRows    int        `json:"search_rows"`
	Error         string     `json:"error,omitempty"`
}

func toRunOutput(r *core.Run) runOutput {
	return runOutput{
		ID:            r.ID,
		Status:        string(r.Status),
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		Stamp:         r.CompletionStamp,
		ReportPath:    r.ReportPath,
		ArchiveURI:    r.ArchiveURI,
		MarketingRows: r.MarketingRows,
		SearchRows:    r.SearchRows,
		Error:         r.Error,
	}
}

func renderRun(r *output.Renderer, root string, run *core.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(toRunOutput(run))
	}

	if run.Status == core.RunStatusSucceeded {
		r.Success(fmt.Sprintf("Run %s succeeded in %s", shortID(run.ID), run.Duration().Round(time.Millisecond)))
	} else {
		r.Error(fmt.Sprintf("Run %s failed: %s", shortID(run.ID), run.Error))
	}
	r.StatusLine("marketing rows", "success", fmt.Sprint(run.MarketingRows))
	r.StatusLine("search rows", "success", fmt.Sprint(run.SearchRows))
	if run.ReportPath != "" {
		r.StatusLine("report", "success", relPath(root, run.ReportPath))
	}
	if run.ArchiveURI != "" {
		r.StatusLine("archive", "success", run.ArchiveURI)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
