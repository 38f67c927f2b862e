package bigquery

import (
	"context"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{name: "nil params", input: nil, want: &Params{}},
		{
			name: "all fields",
			input: map[string]any{
				"location":         "EU",
				"max_bytes_billed": 1 << 30,
				"labels":           map[string]any{"team": "data"},
			},
			want: &Params{
				Location:       "EU",
				MaxBytesBilled: 1 << 30,
				Labels:         map[string]string{"team": "data"},
			},
		},
		{
			name:    "bad type",
			input:   map[string]any{"max_bytes_billed": "lots"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeDate struct{ y, m, d int }

func (f fakeDate) In(loc *time.Location) time.Time {
	return time.Date(f.y, time.Month(f.m), f.d, 0, 0, 0, 0, loc)
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name string
		in   bigquery.Value
		want any
	}{
		{name: "numeric", in: big.NewRat(5, 2), want: 2.5},
		{name: "nil numeric", in: (*big.Rat)(nil), want: nil},
		{name: "date", in: fakeDate{2024, 3, 1}, want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "string passthrough", in: "Paid Search", want: "Paid Search"},
		{name: "int passthrough", in: int64(7), want: int64(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertValue(tt.in))
		})
	}
}

func TestColumnsFromSchema(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "Month", Type: bigquery.StringFieldType},
		{Name: "TY_Search_Vol", Type: bigquery.IntegerFieldType},
	}
	assert.Equal(t, []core.Column{
		{Name: "Month", Type: "STRING"},
		{Name: "TY_Search_Vol", Type: "INTEGER"},
	}, columnsFromSchema(schema))
}

func TestWarehouse_QuoteTable(t *testing.T) {
	w := New(nil)
	assert.Equal(t, "`proj`.`ds`.`search`", w.QuoteTable("proj.ds.search"))
	assert.Equal(t, "`ds`.`t`", w.QuoteTable("`ds`.t"))
}

func TestWarehouse_ConnectRequiresProject(t *testing.T) {
	w := New(nil)
	err := w.Connect(context.Background(), warehouse.Config{Type: "bigquery"})
	assert.ErrorContains(t, err, "requires a project")
}

func TestWarehouse_NotConnected(t *testing.T) {
	w := New(nil)
	_, err := w.Query(context.Background(), "SELECT 1")
	assert.ErrorContains(t, err, "not established")
	assert.NoError(t, w.Close())
}
