// Package config provides configuration management for the LeapReport CLI.
//
// Configuration is layered with koanf: built-in defaults, then
// leapreport.yaml, then LEAPREPORT_ environment variables, then flags that
// were set explicitly on the command line.
package config

import (
	"time"

	"github.com/leapstack-labs/leapreport/internal/spreadsheet"
	"github.com/leapstack-labs/leapreport/pkg/core"
)

// WarehouseConfig is an alias for the shared warehouse configuration.
type WarehouseConfig = core.WarehouseConfig

// Config holds all CLI configuration options.
type Config struct {
	ProjectRoot  string `koanf:"-"`
	OutputDir    string `koanf:"output_dir"`
	StatePath    string `koanf:"state_path"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
	LogFormat    string `koanf:"log_format"`

	MarketingFile string `koanf:"marketing_file"`
	SearchFile    string `koanf:"search_file"`

	Recipients  []string          `koanf:"recipients"`
	Warehouse   *WarehouseConfig  `koanf:"warehouse"`
	Tables      TablesConfig      `koanf:"tables"`
	Queries     QueriesConfig     `koanf:"queries"`
	Spreadsheet SpreadsheetConfig `koanf:"spreadsheet"`
	Mail        MailConfig        `koanf:"mail"`
	Report      ReportConfig      `koanf:"report"`
	Archive     ArchiveConfig     `koanf:"archive"`
	Schedule    ScheduleConfig    `koanf:"schedule"`
}

// TablesConfig names the source tables.
type TablesConfig struct {
	Marketing string `koanf:"marketing"`
	Search    string `koanf:"search"`
}

// QueriesConfig tunes result sizes.
type QueriesConfig struct {
	TopN         int `koanf:"top_n"`
	SummaryLimit int `koanf:"summary_limit"`
	WindowDays   int `koanf:"window_days"`
}

// SpreadsheetConfig configures the workbook refresh.
type SpreadsheetConfig struct {
	Backend      string                   `koanf:"backend"`
	Template     string                   `koanf:"template"`
	Sheet        string                   `koanf:"sheet"`
	Cell         string                   `koanf:"cell"`
	Prefix       string                   `koanf:"prefix"`
	StampLayout  string                   `koanf:"stamp_layout"`
	OnError      string                   `koanf:"on_error"`
	Process      string                   `koanf:"process"`
	Settle       time.Duration            `koanf:"settle"`
	PollInterval time.Duration            `koanf:"poll_interval"`
	Timeout      time.Duration            `koanf:"timeout"`
	FixedDelay   time.Duration            `koanf:"fixed_delay"`
	Sources      []spreadsheet.DataSource `koanf:"sources"`
}

// MailConfig holds the SMTP account.
type MailConfig struct {
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	Username      string `koanf:"username"`
	Password      string `koanf:"password"`
	From          string `koanf:"from"`
	SSL           bool   `koanf:"ssl"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ReportConfig controls the summary email wording.
type ReportConfig struct {
	Greeting  string `koanf:"greeting"`
	Signature string `koanf:"signature"`
	Currency  string `koanf:"currency"`
	Language  string `koanf:"language"`
}

// ArchiveConfig enables copying reports to S3.
type ArchiveConfig struct {
	S3Bucket string `koanf:"s3_bucket"`
	Prefix   string `koanf:"prefix"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
}

// Enabled reports whether a bucket is configured.
func (a ArchiveConfig) Enabled() bool { return a.S3Bucket != "" }

// ScheduleConfig configures the schedule command.
type ScheduleConfig struct {
	Cron     string `koanf:"cron"`
	Timezone string `koanf:"timezone"`
}

// Default configuration values.
const (
	DefaultConfigFile   = "leapreport.yaml"
	DefaultOutputDir    = "output"
	DefaultStateFile    = ".leapreport/state.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat    = "text"
	DefaultTemplate     = "template.xlsx"
	DefaultCell         = "B4"
	DefaultReportPrefix = "Data Report "
	DefaultStampLayout  = "2006-01-02 15:04:05"
	DefaultCron         = "0 7 * * *"
	DefaultEnvPrefix    = "LEAPREPORT_"
)
