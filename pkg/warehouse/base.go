package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapreport/pkg/core"
)

// BaseSQLWarehouse provides common database/sql functionality for warehouses.
// Embed this struct in concrete implementations to get standard
// Close, Exec, Query and QuoteTable implementations.
type BaseSQLWarehouse struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLWarehouse) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing warehouse connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLWarehouse) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("warehouse connection not established")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement and scans every row into a Table.
func (b *BaseSQLWarehouse) Query(ctx context.Context, sqlStr string) (*core.Table, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("warehouse connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return ScanTable(rows)
}

// QuoteTable double-quotes each part of a dotted table name.
func (b *BaseSQLWarehouse) QuoteTable(name string) string {
	return QuoteParts(name, `"`)
}

// ScanTable drains rows into a Table. []byte values are converted to strings.
func ScanTable(rows *sql.Rows) (*core.Table, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	tbl := &core.Table{Columns: make([]core.Column, len(types))}
	for i, ct := range types {
		tbl.Columns[i] = core.Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		tbl.Rows = append(tbl.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tbl, nil
}

// QuoteParts splits a dotted identifier and wraps every part in quote,
// doubling any embedded quote characters.
func QuoteParts(name, quote string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		p = strings.Trim(p, quote)
		parts[i] = quote + strings.ReplaceAll(p, quote, quote+quote) + quote
	}
	return strings.Join(parts, ".")
}
