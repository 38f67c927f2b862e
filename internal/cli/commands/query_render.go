package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/leapreport/internal/export"
	"github.com/leapstack-labs/leapreport/pkg/core"
)

func renderTable(w io.Writer, tbl *core.Table, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return renderJSON(w, tbl)
	case "csv":
		return renderCSV(w, tbl)
	case "md", "markdown":
		return renderPretty(w, tbl, true)
	default:
		return renderPretty(w, tbl, false)
	}
}

func renderPretty(w io.Writer, tbl *core.Table, markdown bool) error {
	if len(tbl.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)

	cols := tbl.ColumnNames()
	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, values := range tbl.Rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	if markdown {
		t.RenderMarkdown()
		return nil
	}
	t.SetStyle(table.StyleLight)
	// Column names are data; keep their case.
	t.Style().Format.Header = text.FormatDefault
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(tbl.Rows))
	return nil
}

func renderJSON(w io.Writer, tbl *core.Table) error {
	cols := tbl.ColumnNames()
	results := make([]map[string]any, 0, len(tbl.Rows))
	for _, values := range tbl.Rows {
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderCSV(w io.Writer, tbl *core.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.ColumnNames()); err != nil {
		return err
	}
	for _, values := range tbl.Rows {
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = export.FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return export.FormatValue(v)
}
