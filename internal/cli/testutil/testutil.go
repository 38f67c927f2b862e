// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapreport/internal/cli/output"
	"github.com/leapstack-labs/leapreport/internal/spreadsheet"
	"github.com/xuri/excelize/v2"
)

// SetupTestProject creates a temporary project with an output directory,
// a template workbook and sample CSV extracts.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	outDir := filepath.Join(tmpDir, "output")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", outDir, err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		t.Fatalf("failed to name sheet: %v", err)
	}
	for _, sheet := range []string{"Marketing", "Search"} {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("failed to create sheet %s: %v", sheet, err)
		}
	}
	if err := f.SaveAs(filepath.Join(outDir, "template.xlsx")); err != nil {
		t.Fatalf("failed to create template.xlsx: %v", err)
	}
	_ = f.Close()

	marketing := `Year,Time_Period,Start_Date,End_Date,Sales
2024,Week 10,2024-03-04,2024-03-10,1250.5
2024,Week 9,2024-02-26,2024-03-03,980`
	if err := os.WriteFile(filepath.Join(outDir, "marketing_data.csv"), []byte(marketing), 0644); err != nil {
		t.Fatalf("failed to create marketing_data.csv: %v", err)
	}

	search := `Search_Term_Type,Search_Term,Month,TY_Search_Vol,LY_Search_Vol,TY_LM_Search_Vol
Brand,acme,Mar,120,80,95`
	if err := os.WriteFile(filepath.Join(outDir, "search_data.csv"), []byte(search), 0644); err != nil {
		t.Fatalf("failed to create search_data.csv: %v", err)
	}

	return tmpDir
}

// DefaultSources maps the sample CSV extracts of a test project to their sheets.
func DefaultSources(projectDir string) []spreadsheet.DataSource {
	outDir := filepath.Join(projectDir, "output")
	return []spreadsheet.DataSource{
		{Sheet: "Marketing", CSV: filepath.Join(outDir, "marketing_data.csv")},
		{Sheet: "Search", CSV: filepath.Join(outDir, "search_data.csv")},
	}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a test renderer with the given mode and TTY state.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a test renderer in text mode on a simulated TTY.
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertValidMarkdown checks for unclosed code fences, empty headers and
// table rows whose cell count differs from the header row.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}

	cells := -1
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
		if !strings.HasPrefix(trimmed, "|") {
			cells = -1
			continue
		}
		n := strings.Count(trimmed, "|")
		if cells == -1 {
			cells = n
		} else if n != cells {
			t.Errorf("table row at line %d has %d separators, header has %d", i+1, n, cells)
		}
	}
}

// AssertOutputMode checks that captured output fits the mode: no ANSI codes
// outside text mode, and a single JSON document on stdout in JSON mode.
func AssertOutputMode(t *testing.T, tr *TestRenderer, expectedMode output.OutputMode) {
	t.Helper()

	switch expectedMode {
	case output.ModeMarkdown:
		AssertNoANSI(t, tr.Output()+tr.ErrOut.String())
	case output.ModeJSON:
		AssertNoANSI(t, tr.Output()+tr.ErrOut.String())
		if !json.Valid(tr.Out.Bytes()) {
			t.Errorf("JSON mode output is not valid JSON: %q", tr.Output())
		}
	}
}
