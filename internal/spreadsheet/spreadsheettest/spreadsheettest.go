// Package spreadsheettest provides in-memory spreadsheet fakes.
package spreadsheettest

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/leapstack-labs/leapreport/internal/spreadsheet"
)

// ErrTerminated is returned by an App whose process was reaped.
var ErrTerminated = errors.New("RPC server is unavailable (process was terminated)")

// App is a fake spreadsheet.Application. Every call is appended to Calls.
// SaveAs writes a small placeholder file so retention can be observed on
// disk.
type App struct {
	mu       sync.Mutex
	calls    []string
	cells    map[string]any
	live     bool
	killed   bool
	launches int

	// FailOn makes the call with this name return Err.
	// Names: start, open, set_cell, refresh, refreshing, save, close, quit.
	FailOn string
	Err    error

	// BusyPolls is how many Refreshing calls report true before settling.
	BusyPolls int
}

// NewApp creates an empty fake.
func NewApp() *App {
	return &App{cells: make(map[string]any)}
}

// Factory returns a spreadsheet.AppFactory that starts this fake. Starting
// is not recorded in Calls.
func (a *App) Factory() spreadsheet.AppFactory {
	return func() (spreadsheet.Application, error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.launches++
		if a.FailOn == "start" {
			return nil, a.Err
		}
		a.live, a.killed = true, false
		return a, nil
	}
}

// Launches returns how many times the fake was started.
func (a *App) Launches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launches
}

// Live reports whether the fake is started and has not quit or been killed.
func (a *App) Live() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

func (a *App) kill() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.live {
		return false
	}
	a.live, a.killed = false, true
	return true
}

func (a *App) record(call string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
	if a.FailOn == call {
		return a.Err
	}
	if a.killed && call != "quit" {
		return ErrTerminated
	}
	return nil
}

// Calls returns the recorded call names in order.
func (a *App) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// Cell returns the value written to sheet!address.
func (a *App) Cell(sheet, address string) any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cells[sheet+"!"+address]
}

func (a *App) Open(_ context.Context, path string) (spreadsheet.Workbook, error) {
	if err := a.record("open"); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &workbook{app: a}, nil
}

func (a *App) Quit() error {
	err := a.record("quit")
	a.mu.Lock()
	a.live = false
	a.mu.Unlock()
	return err
}

type workbook struct {
	app *App
}

func (w *workbook) SetCell(sheet, address string, value any) error {
	if err := w.app.record("set_cell"); err != nil {
		return err
	}
	w.app.mu.Lock()
	w.app.cells[sheet+"!"+address] = value
	w.app.mu.Unlock()
	return nil
}

func (w *workbook) RefreshAll(context.Context) error { return w.app.record("refresh") }

func (w *workbook) Refreshing(context.Context) (bool, error) {
	if err := w.app.record("refreshing"); err != nil {
		return false, err
	}
	w.app.mu.Lock()
	defer w.app.mu.Unlock()
	if w.app.BusyPolls > 0 {
		w.app.BusyPolls--
		return true, nil
	}
	return false, nil
}

func (w *workbook) SaveAs(path string) error {
	if err := w.app.record("save"); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("report"), 0o644)
}

func (w *workbook) Close() error { return w.app.record("close") }

// Reaper counts Reap calls. Like a process reaper it terminates every
// live App listed in Apps.
type Reaper struct {
	mu    sync.Mutex
	count int
	Apps  []*App
	Err   error
}

func (r *Reaper) Reap(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	n := 0
	for _, a := range r.Apps {
		if a.kill() {
			n++
		}
	}
	return n, r.Err
}

// Count returns how many times Reap was called.
func (r *Reaper) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

var (
	_ spreadsheet.Application = (*App)(nil)
	_ spreadsheet.Reaper      = (*Reaper)(nil)
)
