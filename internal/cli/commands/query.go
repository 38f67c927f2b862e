package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/leapstack-labs/leapreport/internal/cli/config"
	"github.com/leapstack-labs/leapreport/internal/queries"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
	Report string
	Date   string
	Print  bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the configured warehouse",
		Long: `Run SQL against the configured warehouse and print the result.

Use --report to run one of the statements a report run issues
(marketing, search, sales_summary, search_summary), optionally as of another
day with --date. Add --print to show the SQL without running it.

SQL is read from the arguments, from --input, or from stdin when piped.`,
		Example: `  # Ad hoc SQL
  leapreport query "SELECT COUNT(*) FROM acme.marketing.daily"

  # Preview the sales summary the next email will contain
  leapreport query --report sales_summary

  # Show the ranked search query as of a given day
  leapreport query --report search --date 2024-03-05 --print

  # Output as CSV
  leapreport query --report search_summary --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md (default follows --output)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringVarP(&opts.Report, "report", "r", "", "Run a report statement: marketing, search, sales_summary, search_summary")
	cmd.Flags().StringVar(&opts.Date, "date", "", "Run day for --report (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&opts.Print, "print", false, "Print the SQL instead of running it")

	_ = cmd.RegisterFlagCompletionFunc("report", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{queries.Marketing, queries.Search, queries.SalesSummary, queries.SearchSummary}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	sqlQuery, err := resolveSQL(cmd, cfg, args, opts)
	if err != nil {
		return err
	}

	if opts.Print {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(sqlQuery))
		return nil
	}

	ctx := cmd.Context()
	wh, err := connectWarehouse(ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	tbl, err := wh.Query(ctx, sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	format := opts.Format
	if format == "" {
		format = string(cmdCtx.Renderer.EffectiveMode())
	}
	return renderTable(cmd.OutOrStdout(), tbl, format)
}

func resolveSQL(cmd *cobra.Command, cfg *config.Config, args []string, opts *QueryOptions) (string, error) {
	switch {
	case opts.Report != "":
		return reportSQL(cfg, opts.Report, opts.Date, time.Now())
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), nil
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(content), nil
	default:
		return "", fmt.Errorf("no SQL given\nHint: Pass SQL as an argument, use --input, or pick a statement with --report")
	}
}

// reportSQL builds a named report statement. Table names are left unquoted
// since no warehouse is connected yet.
func reportSQL(cfg *config.Config, name, date string, now time.Time) (string, error) {
	today := now
	if date != "" {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return "", fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", date)
		}
		today = d
	}

	plan := queries.NewPlan(today, queries.Tables{
		Marketing: cfg.Tables.Marketing,
		Search:    cfg.Tables.Search,
	}, queries.Options{
		TopN:         cfg.Queries.TopN,
		SummaryLimit: cfg.Queries.SummaryLimit,
		WindowDays:   cfg.Queries.WindowDays,
	})
	q, ok := plan.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown report statement %q (expected %s, %s, %s or %s)",
			name, queries.Marketing, queries.Search, queries.SalesSummary, queries.SearchSummary)
	}
	return q.SQL, nil
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
