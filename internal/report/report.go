// Package report builds the summary email sent after a successful run.
package report

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/leapstack-labs/leapreport/internal/export"
	"github.com/leapstack-labs/leapreport/internal/queries"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
	"golang.org/x/text/language"
)

// SalesColumn is the summary column rendered as currency.
const SalesColumn = "Sales"

var bodyTemplate = template.Must(template.New("summary").Parse(`<html>
  <body>
    <p>{{.Greeting}}</p>
    <p>Data update completed at {{.Stamp}}.</p>
    <div><strong>Marketing Summary:</strong><br>{{.Marketing}}</div>
    <div><strong>Search Summary:</strong><br>{{.Search}}</div>
    <p>Regards,<br>{{.Signature}}</p>
  </body>
</html>
`))

// Options controls the wording and currency of the summary.
type Options struct {
	Greeting  string
	Signature string
	Currency  string
	Language  language.Tag
}

func (o Options) withDefaults() Options {
	if o.Greeting == "" {
		o.Greeting = "Hi team,"
	}
	if o.Signature == "" {
		o.Signature = "Data Bot"
	}
	if o.Currency == "" {
		o.Currency = "£"
	}
	if o.Language == language.Und {
		o.Language = language.BritishEnglish
	}
	return o
}

// Summary is a composed summary email body.
type Summary struct {
	Stamp  string
	Sales  *core.Table
	Search *core.Table
	HTML   string
	Text   string
}

// Reporter runs the summary queries and composes the email body.
type Reporter struct {
	wh       warehouse.Warehouse
	plan     *queries.Plan
	opts     Options
	currency *CurrencyFormatter
	logger   *slog.Logger
}

// NewReporter creates a Reporter. A nil logger discards output.
func NewReporter(wh warehouse.Warehouse, plan *queries.Plan, opts Options, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts = opts.withDefaults()
	return &Reporter{
		wh:       wh,
		plan:     plan,
		opts:     opts,
		currency: NewCurrencyFormatter(opts.Currency, opts.Language),
		logger:   logger,
	}
}

// Build runs both summary queries and renders the email for stamp.
func (r *Reporter) Build(ctx context.Context, stamp string) (*Summary, error) {
	sales, err := warehouse.Fetch(ctx, r.wh, r.plan.SalesSummary.Name, r.plan.SalesSummary.SQL)
	if err != nil {
		return nil, err
	}
	search, err := warehouse.Fetch(ctx, r.wh, r.plan.SearchSummary.Name, r.plan.SearchSummary.SQL)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("summary queries finished", slog.Int("sales_rows", sales.Len()), slog.Int("search_rows", search.Len()))

	return r.Compose(stamp, sales, search)
}

// Compose renders already fetched summary tables.
func (r *Reporter) Compose(stamp string, sales, search *core.Table) (*Summary, error) {
	salesCol := columnFold(sales, SalesColumn)
	salesHTML := RenderHTMLTable(sales, func(col int, v any) string {
		if col == salesCol {
			if s, ok := r.currency.Format(v); ok {
				return s
			}
		}
		return export.FormatValue(v)
	})
	searchHTML := RenderHTMLTable(search, nil)

	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, map[string]any{
		"Greeting":  r.opts.Greeting,
		"Stamp":     stamp,
		"Marketing": template.HTML(salesHTML), //nolint:gosec // cell text is escaped by the table renderer
		"Search":    template.HTML(searchHTML), //nolint:gosec // cell text is escaped by the table renderer
		"Signature": r.opts.Signature,
	})
	if err != nil {
		return nil, &core.RenderError{Part: "email body", Err: err}
	}

	text, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return nil, &core.RenderError{Part: "plaintext body", Err: err}
	}

	return &Summary{
		Stamp:  stamp,
		Sales:  sales,
		Search: search,
		HTML:   buf.String(),
		Text:   text,
	}, nil
}

func columnFold(tbl *core.Table, name string) int {
	for i, n := range tbl.ColumnNames() {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
