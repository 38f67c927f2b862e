package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapreport/internal/cli/config"
	"github.com/leapstack-labs/leapreport/internal/cli/output"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
	"github.com/leapstack-labs/leapreport/pkg/warehouses/duckdb"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

const exampleDatabase = "demo.duckdb"

// scaffold is the leapreport.yaml written by init.
type scaffold struct {
	OutputDir   string            `yaml:"output_dir"`
	StatePath   string            `yaml:"state_path"`
	Recipients  []string          `yaml:"recipients"`
	Warehouse   scaffoldWarehouse `yaml:"warehouse"`
	Tables      scaffoldTables    `yaml:"tables"`
	Spreadsheet scaffoldSheet     `yaml:"spreadsheet"`
	Mail        scaffoldMail      `yaml:"mail"`
	Schedule    scaffoldSchedule  `yaml:"schedule"`
}

type scaffoldWarehouse struct {
	Type            string `yaml:"type"`
	Project         string `yaml:"project,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	Path            string `yaml:"path,omitempty"`
}

type scaffoldTables struct {
	Marketing string `yaml:"marketing"`
	Search    string `yaml:"search"`
}

type scaffoldSource struct {
	Sheet string `yaml:"sheet"`
	CSV   string `yaml:"csv"`
}

type scaffoldSheet struct {
	Backend  string           `yaml:"backend"`
	Template string           `yaml:"template"`
	Cell     string           `yaml:"cell"`
	OnError  string           `yaml:"on_error"`
	Sources  []scaffoldSource `yaml:"sources,omitempty"`
}

type scaffoldMail struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type scaffoldSchedule struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

func newScaffold(example bool) scaffold {
	s := scaffold{
		OutputDir:  config.DefaultOutputDir,
		StatePath:  config.DefaultStateFile,
		Recipients: []string{"team@example.com"},
		Warehouse: scaffoldWarehouse{
			Type:            "bigquery",
			Project:         "${GCP_PROJECT}",
			CredentialsFile: "service_account.json",
		},
		Tables: scaffoldTables{
			Marketing: "analytics.marketing.daily_sales",
			Search:    "analytics.search.term_volume",
		},
		Spreadsheet: scaffoldSheet{
			Backend:  "xlsx",
			Template: config.DefaultTemplate,
			Cell:     config.DefaultCell,
			OnError:  "propagate",
			Sources: []scaffoldSource{
				{Sheet: "Marketing", CSV: "marketing_data.csv"},
				{Sheet: "Search", CSV: "search_data.csv"},
			},
		},
		Mail: scaffoldMail{
			Host:     "smtp.example.com",
			Port:     587,
			Username: "reports@example.com",
			Password: "${SMTP_PASSWORD}",
		},
		Schedule: scaffoldSchedule{Cron: config.DefaultCron, Timezone: "UTC"},
	}
	if example {
		s.Warehouse = scaffoldWarehouse{Type: "duckdb", Path: exampleDatabase}
		s.Tables = scaffoldTables{Marketing: "marketing", Search: "search_terms"}
	}
	return s
}

const scaffoldHeader = `# LeapReport configuration.
# Values like ${SMTP_PASSWORD} are read from the environment. Any key can also
# be set with a LEAPREPORT_ variable, e.g. LEAPREPORT_MAIL__HOST.
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new LeapReport project",
		Long: `Initialize a new LeapReport project.

This creates:
  - leapreport.yaml configuration file
  - output/ directory with a starter template workbook

Use --example to point the configuration at a local DuckDB database filled
with sample marketing and search data, so every command works offline.`,
		Example: `  # Initialize in current directory
  leapreport init

  # Initialize with a local demo warehouse
  leapreport init --example

  # Initialize in a new directory
  leapreport init my-report --example

  # Force overwrite existing config
  leapreport init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(cmd.Context(), r, dir, force, example)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create a local DuckDB demo warehouse with sample data")

	return cmd
}

func runInit(ctx context.Context, r *output.Renderer, dir string, force, example bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.DefaultConfigFile)
	}

	var buf bytes.Buffer
	buf.WriteString(scaffoldHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(newScaffold(example)); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	r.StatusLine(config.DefaultConfigFile, "success", "")

	outDir := filepath.Join(dir, config.DefaultOutputDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	templatePath := filepath.Join(outDir, config.DefaultTemplate)
	if _, err := os.Stat(templatePath); os.IsNotExist(err) || force {
		if err := writeStarterTemplate(templatePath); err != nil {
			return err
		}
	}
	r.StatusLine(filepath.Join(config.DefaultOutputDir, config.DefaultTemplate), "success", "")

	if example {
		if err := seedExampleWarehouse(ctx, filepath.Join(dir, exampleDatabase)); err != nil {
			return err
		}
		r.StatusLine(exampleDatabase, "success", "sample marketing and search data")
	}

	r.Println("")
	r.Success("LeapReport project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if !example {
		r.Println("  1. Set warehouse, tables and mail in leapreport.yaml")
	} else {
		r.Println("  1. Set mail and recipients in leapreport.yaml")
	}
	r.Println("  2. Run 'leapreport doctor' to check the setup")
	r.Println("  3. Run 'leapreport query --report sales_summary' to preview the email")
	r.Println("  4. Run 'leapreport run' to send the first report")

	return nil
}

// writeStarterTemplate creates a workbook with a stamp cell and one sheet
// per data source.
func writeStarterTemplate(path string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	if err := f.SetCellValue("Summary", "A4", "Last refreshed"); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	for _, sheet := range []string{"Marketing", "Search"} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// seedExampleWarehouse fills a DuckDB file with sample data dated around
// today, so the generated queries return rows.
func seedExampleWarehouse(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w := duckdb.New(nil)
	if err := w.Connect(ctx, warehouse.Config{Type: "duckdb", Path: abs}); err != nil {
		return fmt.Errorf("failed to create example database: %w", err)
	}
	defer func() { _ = w.Close() }()

	stmts := []string{
		`CREATE OR REPLACE TABLE marketing AS
SELECT
    CAST(EXTRACT(YEAR FROM d) AS INTEGER) AS Year,
    'Week ' || CAST(EXTRACT(WEEK FROM d) AS VARCHAR) AS Time_Period,
    CAST(date_trunc('week', d) AS DATE) AS Start_Date,
    CAST(date_trunc('week', d) + INTERVAL 6 DAY AS DATE) AS End_Date,
    CAST(d AS DATE) AS Date,
    ch.Channel,
    ROUND(500 + (hash(d, ch.Channel) % 100000) / 100.0, 2) AS Sales
FROM generate_series(current_date - INTERVAL 400 DAY, current_date, INTERVAL 1 DAY) AS t(d)
CROSS JOIN (VALUES ('Online'), ('Retail')) AS ch(Channel)`,
		`CREATE OR REPLACE TABLE search_terms AS
SELECT
    ty.Search_Term_Type,
    term.Search_Term,
    strftime(d, '%b') AS Month,
    CAST(d AS DATE) AS Date,
    CAST(hash(d, term.Search_Term) % 1000 AS DOUBLE) AS TY_Search_Vol,
    CAST(hash(term.Search_Term, d) % 900 AS DOUBLE) AS LY_Search_Vol,
    CAST(hash(d) % 800 AS DOUBLE) AS TY_LM_Search_Vol
FROM generate_series(current_date - INTERVAL 400 DAY, current_date, INTERVAL 1 DAY) AS t(d)
CROSS JOIN (VALUES ('running shoes'), ('trail boots'), ('rain jacket'), ('acme')) AS term(Search_Term)
CROSS JOIN (VALUES ('Brand'), ('Generic')) AS ty(Search_Term_Type)`,
	}
	for _, s := range stmts {
		if err := w.Exec(ctx, s); err != nil {
			return fmt.Errorf("failed to seed example database: %w", err)
		}
	}
	return nil
}
