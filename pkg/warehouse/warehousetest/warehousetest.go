// Package warehousetest provides an in-memory Warehouse for tests.
package warehousetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
)

// Response is returned for any query containing Match.
type Response struct {
	Match string
	Table *core.Table
	Err   error
}

// Warehouse answers queries from a list of canned responses, first match wins.
type Warehouse struct {
	mu        sync.Mutex
	responses []Response
	queries   []string
	closed    bool
}

var _ warehouse.Warehouse = (*Warehouse)(nil)

// New returns a Warehouse answering with the given responses.
func New(responses ...Response) *Warehouse {
	return &Warehouse{responses: responses}
}

// Connect implements warehouse.Warehouse.
func (w *Warehouse) Connect(context.Context, warehouse.Config) error { return nil }

// Close implements warehouse.Warehouse.
func (w *Warehouse) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Query implements warehouse.Warehouse.
func (w *Warehouse) Query(_ context.Context, sql string) (*core.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, sql)
	for _, r := range w.responses {
		if strings.Contains(sql, r.Match) {
			if r.Err != nil {
				return nil, r.Err
			}
			return r.Table, nil
		}
	}
	return nil, fmt.Errorf("no canned response for query: %s", sql)
}

// QuoteTable implements warehouse.Warehouse.
func (w *Warehouse) QuoteTable(name string) string {
	return warehouse.QuoteParts(name, "`")
}

// Queries returns every SQL string received so far.
func (w *Warehouse) Queries() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.queries...)
}

// Closed reports whether Close was called.
func (w *Warehouse) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
