//go:build windows

package spreadsheet

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// xlCalculationState values; anything other than xlDone means Excel is busy.
const xlDone = 0

// ExcelApp drives Excel.Application over COM. COM objects are bound to the
// OS thread that created them, so the calling goroutine is locked to its
// thread from NewExcelApp until Quit.
type ExcelApp struct {
	mu    sync.Mutex
	excel *ole.IDispatch
}

// NewExcelApp starts a hidden Excel instance with alerts and screen
// updating turned off.
func NewExcelApp() (Application, error) {
	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to initialise COM: %w", err)
	}

	unknown, err := oleutil.CreateObject("Excel.Application")
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to start Excel: %w", err)
	}
	excel, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to query Excel dispatch: %w", err)
	}

	for _, prop := range []string{"Visible", "DisplayAlerts", "ScreenUpdating", "Interactive"} {
		if _, err := oleutil.PutProperty(excel, prop, false); err != nil {
			excel.Release()
			ole.CoUninitialize()
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("failed to set Excel.%s: %w", prop, err)
		}
	}
	return &ExcelApp{excel: excel}, nil
}

// Open opens path in Excel. Relative paths are made absolute first because
// Excel resolves them against its own working directory.
func (a *ExcelApp) Open(_ context.Context, path string) (Workbook, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.excel == nil {
		return nil, fmt.Errorf("excel application already quit")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	books, err := oleutil.GetProperty(a.excel, "Workbooks")
	if err != nil {
		return nil, fmt.Errorf("failed to get Workbooks: %w", err)
	}
	defer func() { _ = books.Clear() }()

	wb, err := oleutil.CallMethod(books.ToIDispatch(), "Open", abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &excelWorkbook{app: a.excel, wb: wb.ToIDispatch()}, nil
}

// Quit closes Excel and releases COM.
func (a *ExcelApp) Quit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.excel == nil {
		return nil
	}
	_, err := oleutil.CallMethod(a.excel, "Quit")
	a.excel.Release()
	a.excel = nil
	ole.CoUninitialize()
	runtime.UnlockOSThread()
	return err
}

type excelWorkbook struct {
	app *ole.IDispatch
	wb  *ole.IDispatch
}

func (w *excelWorkbook) SetCell(sheet, address string, value any) error {
	var key any = 1
	if sheet != "" {
		key = sheet
	}
	ws, err := oleutil.GetProperty(w.wb, "Sheets", key)
	if err != nil {
		return fmt.Errorf("failed to get sheet: %w", err)
	}
	defer func() { _ = ws.Clear() }()

	rng, err := oleutil.GetProperty(ws.ToIDispatch(), "Range", address)
	if err != nil {
		return fmt.Errorf("failed to get range %s: %w", address, err)
	}
	defer func() { _ = rng.Clear() }()

	_, err = oleutil.PutProperty(rng.ToIDispatch(), "Value", value)
	return err
}

func (w *excelWorkbook) RefreshAll(context.Context) error {
	_, err := oleutil.CallMethod(w.wb, "RefreshAll")
	return err
}

func (w *excelWorkbook) Refreshing(context.Context) (bool, error) {
	v, err := oleutil.GetProperty(w.app, "CalculationState")
	if err != nil {
		return false, err
	}
	defer func() { _ = v.Clear() }()
	return v.Val != xlDone, nil
}

func (w *excelWorkbook) SaveAs(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	_, err = oleutil.CallMethod(w.wb, "SaveAs", abs)
	return err
}

func (w *excelWorkbook) Close() error {
	if w.wb == nil {
		return nil
	}
	_, err := oleutil.CallMethod(w.wb, "Close", false)
	w.wb.Release()
	w.wb = nil
	return err
}
