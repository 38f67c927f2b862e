package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapreport/pkg/warehouse"
)

func init() {
	warehouse.Register("duckdb", func(logger *slog.Logger) warehouse.Warehouse { return New(logger) })
}
