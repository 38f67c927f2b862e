package report

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/leapreport/internal/export"
	"github.com/leapstack-labs/leapreport/pkg/core"
)

// TableClass is the CSS class set on rendered tables.
const TableClass = "dataframe"

// RenderHTMLTable renders tbl as an HTML table fragment. Column names are
// kept as-is and cell text is escaped. format, when non-nil, overrides the
// text of individual cells.
func RenderHTMLTable(tbl *core.Table, format func(col int, v any) string) string {
	t := table.NewWriter()
	t.Style().Format.Header = text.FormatDefault
	t.Style().HTML = table.HTMLOptions{
		CSSClass:    TableClass,
		EmptyColumn: "&nbsp;",
		EscapeText:  true,
		Newline:     "<br/>",
	}

	names := tbl.ColumnNames()
	header := make(table.Row, len(names))
	for i, n := range names {
		header[i] = n
	}
	t.AppendHeader(header)

	if tbl != nil {
		for _, r := range tbl.Rows {
			row := make(table.Row, len(r))
			for i, v := range r {
				if format != nil {
					row[i] = format(i, v)
				} else {
					row[i] = export.FormatValue(v)
				}
			}
			t.AppendRow(row)
		}
	}
	return t.RenderHTML()
}
