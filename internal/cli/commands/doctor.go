package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/leapreport/internal/cli/config"
	"github.com/leapstack-labs/leapreport/internal/cli/output"
	"github.com/leapstack-labs/leapreport/internal/mail"
	"github.com/leapstack-labs/leapreport/internal/spreadsheet"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format  string // Output format: text, json
	Offline bool
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that a report run can succeed",
		Long: `Check the configuration and every external dependency of a report run.

The doctor command verifies:
- Configuration (recipients, tables, warehouse settings)
- Filesystem (output directory, template workbook, state database)
- Connectivity (warehouse connection, SMTP login)

Use --offline to skip the network checks.`,
		Example: `  # Run all checks
  leapreport doctor

  # Configuration and filesystem only
  leapreport doctor --offline

  # Output as JSON
  leapreport doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Skip warehouse and SMTP checks")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	HealthChecks []HealthCheck `json:"health_checks"`
	Score        int           `json:"score"`
	IssueCount   int           `json:"issue_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name   string `json:"name"`
	Group  string `json:"group"`
	Status string `json:"status"` // "pass", "warn", "error"
	Detail string `json:"detail,omitempty"`
}

// ErrUnhealthy is returned when at least one check failed.
var ErrUnhealthy = errors.New("doctor found problems")

type doctorCheck struct {
	name    string
	group   string
	network bool
	run     func(ctx context.Context, cfg *config.Config) (status, detail string)
}

func doctorChecks() []doctorCheck {
	return []doctorCheck{
		{name: "Config file", group: "configuration", run: checkConfigFile},
		{name: "Recipients", group: "configuration", run: checkRecipients},
		{name: "Source tables", group: "configuration", run: checkTables},
		{name: "Warehouse settings", group: "configuration", run: checkWarehouseSettings},
		{name: "Output directory", group: "filesystem", run: checkOutputDir},
		{name: "Template workbook", group: "filesystem", run: checkTemplate},
		{name: "Spreadsheet backend", group: "filesystem", run: checkBackend},
		{name: "State database", group: "filesystem", run: checkStateDB},
		{name: "Warehouse connection", group: "connectivity", network: true, run: checkWarehouse},
		{name: "SMTP login", group: "connectivity", network: true, run: checkSMTP},
	}
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	out := diagnose(cmd.Context(), cmdCtx.Cfg, doctorChecks(), opts.Offline)

	var err error
	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = r.JSON(out)
	default:
		renderDoctor(r, out)
	}
	if err != nil {
		return err
	}
	if hasErrors(out.HealthChecks) {
		return ErrUnhealthy
	}
	return nil
}

func diagnose(ctx context.Context, cfg *config.Config, checks []doctorCheck, offline bool) *DoctorOutput {
	results := make([]HealthCheck, len(checks))

	// Local checks run in order on this goroutine; the COM backend is bound
	// to its thread. Network checks only wait on I/O, so they overlap.
	eg, egctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		hc := HealthCheck{Name: c.name, Group: c.group}
		switch {
		case c.network && offline:
			hc.Status, hc.Detail = "warn", "skipped (offline)"
		case c.network:
			eg.Go(func() error {
				hc.Status, hc.Detail = c.run(egctx, cfg)
				results[i] = hc
				return nil
			})
			continue
		default:
			hc.Status, hc.Detail = c.run(ctx, cfg)
		}
		results[i] = hc
	}
	_ = eg.Wait()

	out := &DoctorOutput{HealthChecks: results}
	for _, hc := range results {
		if hc.Status != "pass" {
			out.IssueCount++
		}
	}
	out.Score = calculateHealthScore(out.HealthChecks)
	return out
}

// calculateHealthScore computes a health score from 0-100.
// Errors cost 20 points, warnings 5.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= 20
		case "warn":
			score -= 5
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

func hasErrors(checks []HealthCheck) bool {
	for _, c := range checks {
		if c.Status == "error" {
			return true
		}
	}
	return false
}

func checkConfigFile(_ context.Context, _ *config.Config) (string, string) {
	if f := config.GetConfigFileUsed(); f != "" {
		return "pass", f
	}
	return "warn", "no leapreport.yaml found, using defaults and environment"
}

func checkRecipients(_ context.Context, cfg *config.Config) (string, string) {
	if len(cfg.Recipients) == 0 {
		return "error", "recipients is empty"
	}
	return "pass", strings.Join(cfg.Recipients, ", ")
}

func checkTables(_ context.Context, cfg *config.Config) (string, string) {
	var missing []string
	if cfg.Tables.Marketing == "" {
		missing = append(missing, "tables.marketing")
	}
	if cfg.Tables.Search == "" {
		missing = append(missing, "tables.search")
	}
	if len(missing) > 0 {
		return "error", strings.Join(missing, ", ") + " not set"
	}
	return "pass", cfg.Tables.Marketing + ", " + cfg.Tables.Search
}

func checkWarehouseSettings(_ context.Context, cfg *config.Config) (string, string) {
	w := cfg.Warehouse
	if w.Type == "bigquery" {
		if w.Project == "" {
			return "error", "warehouse.project is required for bigquery"
		}
		if w.CredentialsFile == "" {
			return "warn", "no credentials_file, using application default credentials"
		}
		if _, err := os.Stat(w.CredentialsFile); err != nil {
			return "error", "credentials file not readable: " + w.CredentialsFile
		}
	}
	return "pass", w.Type
}

func checkOutputDir(_ context.Context, cfg *config.Config) (string, string) {
	info, err := os.Stat(cfg.OutputDir)
	if err != nil {
		return "error", "missing: " + cfg.OutputDir
	}
	if !info.IsDir() {
		return "error", "not a directory: " + cfg.OutputDir
	}
	return "pass", relPath(cfg.ProjectRoot, cfg.OutputDir)
}

func checkTemplate(_ context.Context, cfg *config.Config) (string, string) {
	if _, err := os.Stat(cfg.TemplatePath()); err != nil {
		return "error", "missing: " + relPath(cfg.ProjectRoot, cfg.TemplatePath())
	}
	return "pass", relPath(cfg.ProjectRoot, cfg.TemplatePath())
}

func checkBackend(_ context.Context, cfg *config.Config) (string, string) {
	app, err := spreadsheet.NewApplication(cfg.Spreadsheet.Backend, cfg.Spreadsheet.Sources)
	if err != nil {
		return "error", err.Error()
	}
	_ = app.Quit()
	if cfg.Spreadsheet.Backend == spreadsheet.BackendXLSX && len(cfg.Spreadsheet.Sources) == 0 {
		return "warn", "xlsx backend with no sources only stamps the workbook"
	}
	return "pass", cfg.Spreadsheet.Backend
}

func checkStateDB(_ context.Context, cfg *config.Config) (string, string) {
	store, err := openStore(cfg, nil)
	if err != nil {
		return "warn", err.Error()
	}
	defer func() { _ = store.Close() }()
	latest, err := store.LatestRun()
	if err != nil {
		return "warn", err.Error()
	}
	if latest == nil {
		return "pass", "no runs yet"
	}
	return "pass", fmt.Sprintf("last run %s %s", latest.StartedAt.Local().Format("2006-01-02 15:04"), latest.Status)
}

func checkWarehouse(ctx context.Context, cfg *config.Config) (string, string) {
	wh, err := connectWarehouse(ctx, cfg, nil)
	if err != nil {
		return "error", err.Error()
	}
	_ = wh.Close()
	return "pass", "connected"
}

func checkSMTP(ctx context.Context, cfg *config.Config) (string, string) {
	if cfg.Mail.Host == "" {
		return "error", "mail.host not set"
	}
	if err := mail.NewSMTPMailer(smtpConfig(cfg), nil).Check(ctx); err != nil {
		return "error", err.Error()
	}
	return "pass", fmt.Sprintf("%s:%d", cfg.Mail.Host, cfg.Mail.Port)
}

func renderDoctor(r *output.Renderer, out *DoctorOutput) {
	r.Header("LeapReport Health Report")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("")
			r.Println(titleCaser.String(currentGroup))
		}
		r.StatusLine(check.Name, check.Status, check.Detail)
	}
	r.Println("")
	r.Printf("Health Score: %d/100\n", out.Score)
}
