package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapreport/internal/spreadsheet"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
	"golang.org/x/text/language"
)

// Validate checks if the configuration is valid.
// Warehouse types are checked against the registry, so the warehouse
// packages must be imported by the binary.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.Warehouse == nil || c.Warehouse.Type == "" {
		return fmt.Errorf("warehouse.type is required")
	}
	if !warehouse.IsRegistered(c.Warehouse.Type) {
		return &warehouse.UnknownWarehouseError{Type: c.Warehouse.Type, Available: warehouse.List()}
	}
	switch c.Spreadsheet.Backend {
	case spreadsheet.BackendXLSX, spreadsheet.BackendExcel:
	default:
		return fmt.Errorf("unknown spreadsheet.backend %q (expected %s or %s)",
			c.Spreadsheet.Backend, spreadsheet.BackendXLSX, spreadsheet.BackendExcel)
	}
	if _, err := spreadsheet.ParsePolicy(c.Spreadsheet.OnError); err != nil {
		return fmt.Errorf("invalid spreadsheet.on_error: %w", err)
	}
	if c.Spreadsheet.Template == "" {
		return fmt.Errorf("spreadsheet.template is required")
	}
	if filepath.Ext(c.Spreadsheet.Template) != spreadsheet.Extension {
		return fmt.Errorf("spreadsheet.template must be an %s file: %s", spreadsheet.Extension, c.Spreadsheet.Template)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (expected text or json)", c.LogFormat)
	}
	if c.Report.Language != "" {
		if _, err := language.Parse(c.Report.Language); err != nil {
			return fmt.Errorf("invalid report.language %q: %w", c.Report.Language, err)
		}
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("invalid schedule.timezone: %w", err)
		}
	}
	return nil
}

// ValidateRun checks the settings a pipeline run needs beyond Validate.
func (c *Config) ValidateRun() error {
	var errs []error
	if len(c.Recipients) == 0 {
		errs = append(errs, errors.New("recipients: at least one address is required"))
	}
	if c.Mail.Host == "" {
		errs = append(errs, errors.New("mail.host is required"))
	}
	if c.Tables.Marketing == "" {
		errs = append(errs, errors.New("tables.marketing is required"))
	}
	if c.Tables.Search == "" {
		errs = append(errs, errors.New("tables.search is required"))
	}
	if c.Warehouse.Type == "bigquery" && c.Warehouse.Project == "" {
		errs = append(errs, errors.New("warehouse.project is required for bigquery"))
	}
	return errors.Join(errs...)
}

// ValidateDirectories checks that the output directory and template exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.OutputDir); os.IsNotExist(err) {
		return fmt.Errorf("output directory does not exist: %s\nHint: Create the directory or use --output-dir to specify a different path", c.OutputDir)
	}
	if _, err := os.Stat(c.TemplatePath()); os.IsNotExist(err) {
		return fmt.Errorf("template workbook does not exist: %s\nHint: Set spreadsheet.template in leapreport.yaml", c.TemplatePath())
	}
	return nil
}

// TemplatePath returns the absolute template location.
func (c *Config) TemplatePath() string {
	return filepath.Join(c.OutputDir, c.Spreadsheet.Template)
}

// Location returns the schedule time zone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c.Schedule.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LanguageTag returns the report language, British English when unset.
func (c *Config) LanguageTag() language.Tag {
	if c.Report.Language == "" {
		return language.BritishEnglish
	}
	tag, err := language.Parse(c.Report.Language)
	if err != nil {
		return language.BritishEnglish
	}
	return tag
}
