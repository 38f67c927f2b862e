package core

// WarehouseConfig holds configuration for connecting to an analytics warehouse.
type WarehouseConfig struct {
	Type string `koanf:"type"` // duckdb, postgres, bigquery

	// Cloud warehouses (BigQuery)
	Project         string `koanf:"project"`
	CredentialsFile string `koanf:"credentials_file"`

	// File-based and network databases (DuckDB, PostgreSQL)
	Path     string `koanf:"path"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	Options map[string]string `koanf:"options"`
	Params  map[string]any    `koanf:"params"`
}

// Column represents a column in a query result.
type Column struct {
	Name string
	Type string
}

// Table is a fully materialized query result.
// Rows are stored in column order; each value is whatever the driver
// produced (string, int64, float64, bool, time.Time, civil dates, nil).
type Table struct {
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the result's column names in order.
func (t *Table) ColumnNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
