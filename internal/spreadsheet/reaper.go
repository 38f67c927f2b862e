package spreadsheet

import (
	"context"
	"errors"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// DefaultProcessName is the Excel executable on Windows.
const DefaultProcessName = "EXCEL.EXE"

// ProcessReaper terminates every process whose executable name matches Name,
// compared case-insensitively.
type ProcessReaper struct {
	Name string
}

// Reap terminates matching processes and returns how many were signalled.
// Processes that exit while being inspected are skipped.
func (r ProcessReaper) Reap(ctx context.Context) (int, error) {
	if r.Name == "" {
		return 0, nil
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	n := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !strings.EqualFold(name, r.Name) {
			continue
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			if kerr := p.KillWithContext(ctx); kerr != nil {
				errs = append(errs, err)
				continue
			}
		}
		n++
	}
	return n, errors.Join(errs...)
}

// NopReaper never finds anything to reap.
type NopReaper struct{}

// Reap returns zero.
func (NopReaper) Reap(context.Context) (int, error) { return 0, nil }
