// Package duckdb provides a DuckDB warehouse for LeapReport.
//
// DuckDB is mostly used for local development and tests: it speaks the same
// standard SQL the report queries are written in, so a small seeded file can
// stand in for the production warehouse.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Params holds DuckDB-specific settings parsed from Config.Params.
type Params struct {
	// Extensions to INSTALL and LOAD after connecting.
	Extensions []string `mapstructure:"extensions"`

	// Settings applied with SET key = 'value'.
	Settings map[string]string `mapstructure:"settings"`
}

// ParseParams decodes the free-form params block of a warehouse config.
func ParseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if len(params) == 0 {
		return p, nil
	}
	if err := mapstructure.Decode(params, p); err != nil {
		return nil, fmt.Errorf("failed to parse duckdb params: %w", err)
	}
	return p, nil
}

// Warehouse implements warehouse.Warehouse for DuckDB.
type Warehouse struct {
	warehouse.BaseSQLWarehouse
}

// New creates a new DuckDB warehouse. A nil logger discards output.
func New(logger *slog.Logger) *Warehouse {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Warehouse{BaseSQLWarehouse: warehouse.BaseSQLWarehouse{Logger: logger}}
}

// Connect opens the database file. An empty path opens an in-memory database.
func (w *Warehouse) Connect(ctx context.Context, cfg warehouse.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	} else if path != ":memory:" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	w.DB = db
	w.Cfg = cfg

	for _, ext := range params.Extensions {
		if err := w.Exec(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	for k, v := range params.Settings {
		if err := w.Exec(ctx, fmt.Sprintf("SET %s = '%s'", k, v)); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}

	w.Logger.Debug("connected to duckdb", slog.String("path", path))
	return nil
}

var _ warehouse.Warehouse = (*Warehouse)(nil)
