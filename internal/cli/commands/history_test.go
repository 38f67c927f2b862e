package commands

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leapstack-labs/leapreport/internal/cli/output"
	"github.com/leapstack-labs/leapreport/internal/cli/testutil"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRuns() []*core.Run {
	started := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	done := started.Add(95 * time.Second)
	return []*core.Run{
		{
			ID:              "5f0c2a9e-1b7d-4a53-9f4e-0c1d2e3f4a5b",
			Status:          core.RunStatusSucceeded,
			StartedAt:       started,
			CompletedAt:     &done,
			CompletionStamp: "2026-03-02 07:01:35",
			MarketingRows:   12,
			SearchRows:      40,
		},
		{
			ID:        "9a8b7c6d-0000-4000-8000-111122223333",
			Status:    core.RunStatusFailed,
			StartedAt: started.Add(-24 * time.Hour),
			Error:     "query failed: table not found",
		},
	}
}

func TestRenderHistory(t *testing.T) {
	tests := []struct {
		name     string
		renderer func() *testutil.TestRenderer
		runs     []*core.Run
		contains []string
	}{
		{
			name:     "markdown table",
			renderer: testutil.NewTestRendererMarkdown,
			runs:     sampleRuns(),
			contains: []string{"| Run", "5f0c2a9e", "succeeded", "1m35s", "failed", "table not found"},
		},
		{
			name:     "text table",
			renderer: testutil.NewTestRendererText,
			runs:     sampleRuns(),
			contains: []string{"│ Run", "│ Status", "Marketing", "9a8b7c6d", "-"},
		},
		{
			name:     "no runs",
			renderer: testutil.NewTestRendererMarkdown,
			runs:     nil,
			contains: []string{"No runs recorded yet"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tt.renderer()
			require.NoError(t, renderHistory(tr.Renderer, tt.runs))

			for _, want := range tt.contains {
				testutil.AssertContains(t, tr.Output(), want)
			}
			if tr.EffectiveMode() == output.ModeMarkdown {
				testutil.AssertOutputMode(t, tr, output.ModeMarkdown)
				testutil.AssertValidMarkdown(t, tr.Output())
			}
		})
	}
}

func TestRenderHistory_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	require.NoError(t, renderHistory(tr.Renderer, sampleRuns()))

	var got []runOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "succeeded", got[0].Status)
	assert.Equal(t, 40, got[0].SearchRows)
	assert.Nil(t, got[1].CompletedAt)
	assert.Equal(t, "query failed: table not found", got[1].Error)

	tr = testutil.NewTestRendererJSON()
	require.NoError(t, renderHistory(tr.Renderer, nil))
	assert.JSONEq(t, "[]", tr.Output())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2ms", formatDuration(2100*time.Microsecond))
}
