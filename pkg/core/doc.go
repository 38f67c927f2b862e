// Package core defines the shared language of the LeapReport system.
//
// This package contains:
//   - Tabular results returned by warehouses (Table, Column)
//   - Run bookkeeping entities (Run, RunStatus) and the Store contract
//   - Warehouse connection configuration (WarehouseConfig)
//   - The error taxonomy shared by every pipeline step
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
