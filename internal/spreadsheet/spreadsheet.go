// Package spreadsheet regenerates the report workbook from its template.
//
// The spreadsheet application is reached through small capability
// interfaces so the refresh protocol can run against Excel over COM, a
// pure-Go xlsx backend, or a fake in tests.
package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Application is a running spreadsheet program.
type Application interface {
	// Open loads the workbook at path.
	Open(ctx context.Context, path string) (Workbook, error)
	// Quit shuts the application down. It must be safe to call more than once.
	Quit() error
}

// Workbook is an open workbook.
type Workbook interface {
	// SetCell writes value to address on sheet. An empty sheet name means
	// the first sheet.
	SetCell(sheet, address string, value any) error
	// RefreshAll re-runs every data connection in the workbook.
	RefreshAll(ctx context.Context) error
	// Refreshing reports whether a refresh is still in flight.
	Refreshing(ctx context.Context) (bool, error)
	SaveAs(path string) error
	Close() error
}

// Reaper terminates stray spreadsheet application processes.
type Reaper interface {
	Reap(ctx context.Context) (int, error)
}

// Waiter blocks until a refresh started with RefreshAll has settled.
type Waiter interface {
	Wait(ctx context.Context, wb Workbook) error
}

// Policy decides what a refresh failure does to the run.
type Policy string

const (
	// Propagate returns refresh failures to the caller.
	Propagate Policy = "propagate"
	// Suppress logs refresh failures and carries on without a report.
	Suppress Policy = "suppress"
)

// ParsePolicy parses an on_error setting. Empty means Propagate.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Propagate:
		return Propagate, nil
	case Suppress:
		return Suppress, nil
	default:
		return "", fmt.Errorf("invalid spreadsheet on_error %q (expected propagate or suppress)", s)
	}
}

// Backend names accepted by NewApplication.
const (
	BackendXLSX  = "xlsx"
	BackendExcel = "excel"
)

// ErrUnsupportedPlatform is returned by backends that need a specific OS.
var ErrUnsupportedPlatform = errors.New("spreadsheet backend not supported on this platform")

// AppFactory starts a spreadsheet application. The refresher calls it once
// per refresh, after stray processes have been reaped.
type AppFactory func() (Application, error)

// NewAppFactory returns the factory for the named backend without starting
// anything. sources is only used by the xlsx backend.
func NewAppFactory(backend string, sources []DataSource) (AppFactory, error) {
	switch strings.ToLower(backend) {
	case "", BackendXLSX:
		return func() (Application, error) { return NewXLSXApp(sources), nil }, nil
	case BackendExcel:
		return NewExcelApp, nil
	default:
		return nil, fmt.Errorf("unknown spreadsheet backend %q (expected %s or %s)", backend, BackendXLSX, BackendExcel)
	}
}

// NewApplication builds and starts the named backend.
func NewApplication(backend string, sources []DataSource) (Application, error) {
	start, err := NewAppFactory(backend, sources)
	if err != nil {
		return nil, err
	}
	return start()
}
