// Package queries builds the SQL issued by a report run.
//
// All dates are computed from the reference day handed to NewPlan and inlined
// as DATE literals, which keeps the statements portable across BigQuery,
// DuckDB and PostgreSQL.
package queries

import (
	"fmt"
	"time"
)

// Query names used in logs and errors.
const (
	Marketing     = "marketing"
	Search        = "search"
	SalesSummary  = "sales_summary"
	SearchSummary = "search_summary"
)

// Defaults for Options fields left at zero.
const (
	DefaultTopN         = 500
	DefaultSummaryLimit = 10
	DefaultWindowDays   = 10
)

// Tables holds the already-quoted source table identifiers.
type Tables struct {
	Marketing string
	Search    string
}

// Options tunes result sizes.
type Options struct {
	// TopN is the number of search terms kept per (type, month) partition.
	TopN int
	// SummaryLimit caps the rows of the sales summary.
	SummaryLimit int
	// WindowDays is the trailing window of the search volume summary.
	WindowDays int
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.SummaryLimit <= 0 {
		o.SummaryLimit = DefaultSummaryLimit
	}
	if o.WindowDays <= 0 {
		o.WindowDays = DefaultWindowDays
	}
	return o
}

// Query is a named SQL statement.
type Query struct {
	Name string
	SQL  string
}

// Plan is the full set of statements for one run.
type Plan struct {
	// Reference is the day before today; its year scopes the queries.
	Reference time.Time
	Year      int

	Marketing     Query
	Search        Query
	SalesSummary  Query
	SearchSummary Query
}

// NewPlan builds the statements for a run happening on today. The calendar
// date is read in today's own location, so a clock in the schedule's zone
// decides which day is yesterday.
func NewPlan(today time.Time, tables Tables, opts Options) *Plan {
	opts = opts.withDefaults()
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	ref := day.AddDate(0, 0, -1)
	year := ref.Year()

	return &Plan{
		Reference:     ref,
		Year:          year,
		Marketing:     Query{Name: Marketing, SQL: marketingSQL(tables.Marketing, year)},
		Search:        Query{Name: Search, SQL: searchSQL(tables.Search, year, opts.TopN)},
		SalesSummary:  Query{Name: SalesSummary, SQL: salesSummarySQL(tables.Marketing, year, opts.SummaryLimit)},
		SearchSummary: Query{Name: SearchSummary, SQL: searchSummarySQL(tables.Search, day.AddDate(0, 0, -opts.WindowDays), ref)},
	}
}

// Extracts returns the queries whose results are exported to CSV, in order.
func (p *Plan) Extracts() []Query {
	return []Query{p.Marketing, p.Search}
}

// All returns every statement in execution order.
func (p *Plan) All() []Query {
	return []Query{p.Marketing, p.Search, p.SalesSummary, p.SearchSummary}
}

// Lookup finds a statement by name.
func (p *Plan) Lookup(name string) (Query, bool) {
	for _, q := range p.All() {
		if q.Name == name {
			return q, true
		}
	}
	return Query{}, false
}

func marketingSQL(table string, year int) string {
	return fmt.Sprintf(`SELECT *
FROM %s
WHERE Year >= %d`, table, year-1)
}

func searchSQL(table string, year, topN int) string {
	return fmt.Sprintf(`SELECT
    Search_Term_Type,
    Search_Term,
    Month,
    TY_Search_Vol,
    LY_Search_Vol,
    TY_LM_Search_Vol
FROM (
    SELECT
        Search_Term_Type,
        Search_Term,
        Month,
        SUM(TY_Search_Vol) AS TY_Search_Vol,
        SUM(LY_Search_Vol) AS LY_Search_Vol,
        SUM(TY_LM_Search_Vol) AS TY_LM_Search_Vol,
        ROW_NUMBER() OVER (
            PARTITION BY Search_Term_Type, Month
            ORDER BY SUM(TY_Search_Vol) DESC, Search_Term
        ) AS rn
    FROM %s
    WHERE EXTRACT(YEAR FROM Date) = %d
    GROUP BY Search_Term_Type, Search_Term, Month
) AS ranked
WHERE rn <= %d
ORDER BY Search_Term_Type, Month, TY_Search_Vol DESC, Search_Term`, table, year, topN)
}

func salesSummarySQL(table string, year, limit int) string {
	return fmt.Sprintf(`SELECT Time_Period, Start_Date, End_Date, SUM(Sales) AS Sales
FROM %s
WHERE Year = %d
GROUP BY Time_Period, Start_Date, End_Date
ORDER BY End_Date DESC
LIMIT %d`, table, year, limit)
}

func searchSummarySQL(table string, from, to time.Time) string {
	return fmt.Sprintf(`SELECT Date,
    SUM(TY_Search_Vol) AS TY_Search_Vol,
    SUM(LY_Search_Vol) AS LY_Search_Vol,
    SUM(TY_LM_Search_Vol) AS TY_LM_Search_Vol
FROM %s
WHERE Date BETWEEN %s AND %s
GROUP BY Date
ORDER BY Date DESC`, table, dateLiteral(from), dateLiteral(to))
}

func dateLiteral(t time.Time) string {
	return "DATE '" + t.Format(time.DateOnly) + "'"
}
