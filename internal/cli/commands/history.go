package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/leapreport/internal/cli/output"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent report runs",
		Long: `List recent report runs from the state database, newest first.

Each run shows its status, completion stamp, row counts and the error
that ended it, if any.`,
		Example: `  # Last 10 runs
  leapreport history

  # Everything, as JSON
  leapreport history --limit 0 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			return renderHistory(cmdCtx.Renderer, runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 for all)")

	return cmd
}

func renderHistory(r *output.Renderer, runs []*core.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]runOutput, 0, len(runs))
		for _, run := range runs {
			out = append(out, toRunOutput(run))
		}
		return r.JSON(out)
	}

	if len(runs) == 0 {
		r.Muted("No runs recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			string(run.Status),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(run.Duration()),
			fmt.Sprint(run.MarketingRows),
			fmt.Sprint(run.SearchRows),
			run.Error,
		})
	}
	r.Table([]string{"Run", "Status", "Started", "Duration", "Marketing", "Search", "Error"}, rows)
	return nil
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
