// Package warehouse provides the analytics warehouse contract used by the
// reporting pipeline.
//
// Concrete warehouse implementations live in pkg/warehouses/ subdirectories
// and register themselves by name in their init() functions.
package warehouse

import (
	"context"

	"github.com/leapstack-labs/leapreport/pkg/core"
)

// Type aliases so callers can stay within this package for the common types.
type (
	// Config is an alias for core.WarehouseConfig.
	Config = core.WarehouseConfig

	// Table is an alias for core.Table.
	Table = core.Table
)

// Warehouse defines the interface that all warehouse clients must implement.
type Warehouse interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Query executes a SQL statement and materializes every returned row.
	Query(ctx context.Context, sql string) (*Table, error)

	// QuoteTable quotes a possibly qualified table name (project.dataset.table)
	// for use in a FROM clause.
	QuoteTable(name string) string
}

// Fetch runs a named query and wraps any failure in a *core.QueryError.
func Fetch(ctx context.Context, w Warehouse, name, sql string) (*Table, error) {
	tbl, err := w.Query(ctx, sql)
	if err != nil {
		return nil, &core.QueryError{Query: name, Err: err}
	}
	return tbl, nil
}
