package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapreport/internal/cli/config"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *core.Table {
	return &core.Table{
		Columns: []core.Column{{Name: "Date"}, {Name: "Term"}, {Name: "Volume"}},
		Rows: [][]any{
			{time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "running, shoes", int64(120)},
			{time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), nil, 9.5},
		},
	}
}

func TestRenderTable_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   []string
	}{
		{
			name:   "text",
			format: "text",
			want:   []string{"Date", "Volume", "2024-03-04", "running, shoes", "NULL", "(2 rows)"},
		},
		{
			name:   "markdown",
			format: "markdown",
			want:   []string{"| Date | Term | Volume |", "| 2024-03-05 | NULL | 9.5 |"},
		},
		{
			name:   "csv quotes separators",
			format: "csv",
			want:   []string{"Date,Term,Volume\n", `2024-03-04,"running, shoes",120`, "2024-03-05,,9.5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, renderTable(&buf, sampleTable(), tt.format))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRenderTable_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, sampleTable(), "json"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "running, shoes", rows[0]["Term"])
	assert.Nil(t, rows[1]["Term"])
}

func TestRenderTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, &core.Table{Columns: []core.Column{{Name: "a"}}}, "text"))
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestReportSQL(t *testing.T) {
	cfg := &config.Config{
		Tables:  config.TablesConfig{Marketing: "ds.marketing", Search: "ds.search"},
		Queries: config.QueriesConfig{TopN: 25},
	}
	now := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	sql, err := reportSQL(cfg, "search", "", now)
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM ds.search")
	assert.Contains(t, sql, "rn <= 25")

	sql, err = reportSQL(cfg, "search_summary", "2025-01-01", now)
	require.NoError(t, err)
	assert.Contains(t, sql, "DATE '2024-12-31'")

	_, err = reportSQL(cfg, "nope", "", now)
	assert.ErrorContains(t, err, "unknown report statement")

	_, err = reportSQL(cfg, "search", "05/03/2024", now)
	assert.ErrorContains(t, err, "invalid --date")
}

func TestResolveSQL(t *testing.T) {
	cfg := &config.Config{Tables: config.TablesConfig{Marketing: "m", Search: "s"}}
	newCmd := func(stdin string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.SetIn(strings.NewReader(stdin))
		return cmd
	}

	got, err := resolveSQL(newCmd(""), cfg, []string{"SELECT", "1"}, &QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)

	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 2"), 0600))
	got, err = resolveSQL(newCmd(""), cfg, nil, &QueryOptions{Input: path})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", got)

	got, err = resolveSQL(newCmd("SELECT 3"), cfg, nil, &QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3", got)

	got, err = resolveSQL(newCmd(""), cfg, nil, &QueryOptions{Report: "marketing"})
	require.NoError(t, err)
	assert.Contains(t, got, "FROM m")
}

func TestQueryCommand_Print(t *testing.T) {
	config.ResetConfig()
	cmd := NewQueryCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--report", "sales_summary", "--date", "2024-03-05", "--print"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "SUM(Sales) AS Sales")
	assert.Contains(t, buf.String(), "WHERE Year = 2024")
}
