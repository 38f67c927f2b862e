package report

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapreport/internal/queries"
	"github.com/leapstack-labs/leapreport/internal/testutil"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/leapstack-labs/leapreport/pkg/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestCurrencyFormatter(t *testing.T) {
	c := NewCurrencyFormatter("£", language.BritishEnglish)

	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"float", 1234.5, "£1,234.50", true},
		{"millions", 1234567.891, "£1,234,567.89", true},
		{"int", int64(12), "£12.00", true},
		{"rat", big.NewRat(1, 4), "£0.25", true},
		{"numeric string", "99.9", "£99.90", true},
		{"text", "n/a", "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Format(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderHTMLTable(t *testing.T) {
	tbl := &core.Table{
		Columns: []core.Column{{Name: "Time_Period"}, {Name: "Note"}},
		Rows:    [][]any{{"Week 9", "<b>bold</b>"}},
	}

	html := RenderHTMLTable(tbl, nil)
	assert.Contains(t, html, `<table class="dataframe">`)
	assert.Contains(t, html, "Time_Period", "headers keep their case")
	assert.Contains(t, html, "Week 9")
	assert.Contains(t, html, "&lt;b&gt;bold&lt;/b&gt;")
	assert.NotContains(t, html, "<b>bold</b>")
}

func salesTable() *core.Table {
	return &core.Table{
		Columns: []core.Column{{Name: "Time_Period"}, {Name: "Start_Date"}, {Name: "End_Date"}, {Name: "Sales"}},
		Rows: [][]any{
			{"Week 9", time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), 1234.5},
		},
	}
}

func searchTable() *core.Table {
	return &core.Table{
		Columns: []core.Column{{Name: "Date"}, {Name: "TY_Search_Vol"}, {Name: "LY_Search_Vol"}, {Name: "TY_LM_Search_Vol"}},
		Rows: [][]any{
			{time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), int64(310), int64(280), int64(295)},
		},
	}
}

func TestReporter_Build(t *testing.T) {
	plan := queries.NewPlan(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), queries.Tables{Marketing: "m", Search: "s"}, queries.Options{})
	wh := warehousetest.New(
		warehousetest.Response{Match: "SUM(Sales)", Table: salesTable()},
		warehousetest.Response{Match: "GROUP BY Date", Table: searchTable()},
	)
	r := NewReporter(wh, plan, Options{}, testutil.NewTestLogger(t))

	s, err := r.Build(context.Background(), "2024-03-05 07:15:00")
	require.NoError(t, err)

	assert.Equal(t, []string{plan.SalesSummary.SQL, plan.SearchSummary.SQL}, wh.Queries())
	assert.Contains(t, s.HTML, "<p>Hi team,</p>")
	assert.Contains(t, s.HTML, "Data update completed at 2024-03-05 07:15:00.")
	assert.Contains(t, s.HTML, "Marketing Summary:")
	assert.Contains(t, s.HTML, "Search Summary:")
	assert.Contains(t, s.HTML, "£1,234.50")
	assert.Contains(t, s.HTML, "2024-02-26")
	assert.Contains(t, s.HTML, "310")
	assert.Contains(t, s.HTML, "Data Bot")
	assert.Equal(t, 2, strings.Count(s.HTML, "<table"))

	assert.Contains(t, s.Text, "Data update completed at 2024-03-05 07:15:00.")
	assert.NotContains(t, s.Text, "<table")
}

func TestReporter_BuildQueryError(t *testing.T) {
	plan := queries.NewPlan(time.Now(), queries.Tables{Marketing: "m", Search: "s"}, queries.Options{})
	wh := warehousetest.New(
		warehousetest.Response{Match: "SUM(Sales)", Table: salesTable()},
		warehousetest.Response{Match: "GROUP BY Date", Err: errors.New("quota exceeded")},
	)

	_, err := NewReporter(wh, plan, Options{}, nil).Build(context.Background(), "stamp")
	require.Error(t, err)

	var qErr *core.QueryError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, queries.SearchSummary, qErr.Query)
}

func TestReporter_ComposeLowercaseColumns(t *testing.T) {
	sales := salesTable()
	sales.Columns[3].Name = "sales"
	sales.Rows[0][3] = "1000"

	s, err := NewReporter(nil, nil, Options{Currency: "$", Language: language.AmericanEnglish}, nil).
		Compose("2024-03-05 07:15:00", sales, searchTable())
	require.NoError(t, err)
	assert.Contains(t, s.HTML, "$1,000.00")
}
