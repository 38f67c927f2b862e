package spreadsheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// DataSource binds a worksheet to the CSV file it is loaded from.
type DataSource struct {
	Sheet string `koanf:"sheet"`
	CSV   string `koanf:"csv"`
}

// XLSXApp is a pure-Go Application backed by excelize. Refreshing a
// workbook reloads each data source sheet from its CSV file and clears the
// cached formula results, so formulas are recalculated the next time the
// report is opened.
type XLSXApp struct {
	sources []DataSource
}

// NewXLSXApp creates an XLSXApp for the given data sources.
func NewXLSXApp(sources []DataSource) *XLSXApp {
	return &XLSXApp{sources: sources}
}

// Open reads the workbook at path.
func (a *XLSXApp) Open(_ context.Context, path string) (Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &xlsxWorkbook{f: f, sources: a.sources}, nil
}

// Quit is a no-op; there is no external process.
func (a *XLSXApp) Quit() error { return nil }

type xlsxWorkbook struct {
	f       *excelize.File
	sources []DataSource
}

func (w *xlsxWorkbook) sheet(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	sheets := w.f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	return sheets[0], nil
}

func (w *xlsxWorkbook) SetCell(sheet, address string, value any) error {
	name, err := w.sheet(sheet)
	if err != nil {
		return err
	}
	return w.f.SetCellValue(name, address, value)
}

func (w *xlsxWorkbook) RefreshAll(ctx context.Context) error {
	for _, src := range w.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.load(src); err != nil {
			return fmt.Errorf("failed to load %s into sheet %s: %w", src.CSV, src.Sheet, err)
		}
	}
	// Drop cached formula results so the next application to open the
	// report recalculates against the new rows.
	return w.f.UpdateLinkedValue()
}

// load replaces the contents of the source sheet with the CSV records.
func (w *xlsxWorkbook) load(src DataSource) error {
	file, err := os.Open(src.CSV)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return err
	}

	idx, err := w.f.GetSheetIndex(src.Sheet)
	if err != nil {
		return err
	}
	if idx == -1 {
		if _, err := w.f.NewSheet(src.Sheet); err != nil {
			return err
		}
	}

	old, err := w.f.GetRows(src.Sheet)
	if err != nil {
		return err
	}

	for i, rec := range records {
		width := len(rec)
		if i < len(old) && len(old[i]) > width {
			width = len(old[i])
		}
		row := make([]any, width)
		for j, v := range rec {
			row[j] = cellValue(v, i == 0)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(src.Sheet, cell, &row); err != nil {
			return err
		}
	}
	for r := len(old); r > len(records); r-- {
		if err := w.f.RemoveRow(src.Sheet, r); err != nil {
			return err
		}
	}
	return nil
}

// cellValue stores numeric CSV fields as numbers so pivots can aggregate
// them. Header fields always stay text.
func cellValue(s string, header bool) any {
	if header || s == "" {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func (w *xlsxWorkbook) Refreshing(context.Context) (bool, error) { return false, nil }

func (w *xlsxWorkbook) SaveAs(path string) error { return w.f.SaveAs(path) }

func (w *xlsxWorkbook) Close() error { return w.f.Close() }
