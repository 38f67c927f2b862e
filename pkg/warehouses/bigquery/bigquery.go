// Package bigquery provides a Google BigQuery warehouse for LeapReport.
//
// The production report tables live in BigQuery. Queries run as standard SQL
// and results are drained through a RowIterator into a core.Table.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Params holds BigQuery-specific settings parsed from Config.Params.
type Params struct {
	// Location pins query jobs to a region, e.g. "EU".
	Location string `mapstructure:"location"`

	// MaxBytesBilled fails jobs that would scan more than this many bytes.
	MaxBytesBilled int64 `mapstructure:"max_bytes_billed"`

	// Labels are attached to every query job.
	Labels map[string]string `mapstructure:"labels"`
}

// ParseParams decodes the free-form params block of a warehouse config.
func ParseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if len(params) == 0 {
		return p, nil
	}
	if err := mapstructure.Decode(params, p); err != nil {
		return nil, fmt.Errorf("failed to parse bigquery params: %w", err)
	}
	return p, nil
}

// Warehouse implements warehouse.Warehouse for BigQuery.
type Warehouse struct {
	client *bigquery.Client
	params *Params
	logger *slog.Logger
}

// New creates a new BigQuery warehouse. A nil logger discards output.
func New(logger *slog.Logger) *Warehouse {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Warehouse{logger: logger, params: &Params{}}
}

// Connect creates the BigQuery client for cfg.Project. When
// cfg.CredentialsFile is empty, application default credentials are used.
func (w *Warehouse) Connect(ctx context.Context, cfg warehouse.Config) error {
	if cfg.Project == "" {
		return fmt.Errorf("bigquery warehouse requires a project")
	}
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return fmt.Errorf("failed to create bigquery client: %w", err)
	}
	if params.Location != "" {
		client.Location = params.Location
	}

	w.client = client
	w.params = params
	w.logger.Debug("connected to bigquery", slog.String("project", cfg.Project))
	return nil
}

// Close releases the client.
func (w *Warehouse) Close() error {
	if w.client == nil {
		return nil
	}
	err := w.client.Close()
	w.client = nil
	return err
}

// Query runs sql as a standard SQL job and reads every row.
func (w *Warehouse) Query(ctx context.Context, sql string) (*core.Table, error) {
	if w.client == nil {
		return nil, fmt.Errorf("warehouse connection not established")
	}

	q := w.client.Query(sql)
	q.UseLegacySQL = false
	if w.params.MaxBytesBilled > 0 {
		q.MaxBytesBilled = w.params.MaxBytesBilled
	}
	if len(w.params.Labels) > 0 {
		q.Labels = w.params.Labels
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	tbl := &core.Table{}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = convertValue(v)
		}
		tbl.Rows = append(tbl.Rows, values)
	}

	// The schema is only populated once the iterator has fetched a page.
	tbl.Columns = columnsFromSchema(it.Schema)
	w.logger.Debug("bigquery query finished", slog.Int("rows", tbl.Len()))
	return tbl, nil
}

// QuoteTable wraps each part of a dotted name in backticks.
func (w *Warehouse) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.Trim(p, "`") + "`"
	}
	return strings.Join(parts, ".")
}

func columnsFromSchema(schema bigquery.Schema) []core.Column {
	cols := make([]core.Column, len(schema))
	for i, f := range schema {
		cols[i] = core.Column{Name: f.Name, Type: string(f.Type)}
	}
	return cols
}

// convertValue maps BigQuery client types onto plain Go values.
// civil dates and datetimes expose In, which is used to get a time.Time.
func convertValue(v bigquery.Value) any {
	switch x := v.(type) {
	case *big.Rat:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	case interface{ In(*time.Location) time.Time }:
		return x.In(time.UTC)
	default:
		return v
	}
}

var _ warehouse.Warehouse = (*Warehouse)(nil)
