package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapreport/internal/testutil"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate())
	require.NoError(t, store.Migrate(), "migrations are idempotent")

	v, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.FileExists(t, path)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"migrate", store.Migrate},
		{"create", func() error { _, err := store.CreateRun(time.Now()); return err }},
		{"complete", func() error { return store.CompleteRun(&core.Run{ID: "x"}) }},
		{"get", func() error { _, err := store.GetRun("x"); return err }},
		{"latest", func() error { _, err := store.LatestRun(); return err }},
		{"list", func() error { _, err := store.ListRuns(5); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.fn(), "database not opened")
		})
	}
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	start := time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		finish   func(run *core.Run)
		validate func(t *testing.T, got *core.Run)
	}{
		{
			name: "succeeded",
			finish: func(run *core.Run) {
				done := start.Add(90 * time.Second)
				run.Status = core.RunStatusSucceeded
				run.CompletedAt = &done
				run.CompletionStamp = "2024-03-05 07:01:00"
				run.ReportPath = "/out/Data Report 2024-03-05 07:01:00.xlsx"
				run.ArchiveURI = "s3://reports/Data Report 2024-03-05 07:01:00.xlsx"
				run.MarketingRows = 120
				run.SearchRows = 4000
			},
			validate: func(t *testing.T, got *core.Run) {
				assert.Equal(t, core.RunStatusSucceeded, got.Status)
				assert.Equal(t, 90*time.Second, got.Duration())
				assert.Equal(t, "2024-03-05 07:01:00", got.CompletionStamp)
				assert.Equal(t, 120, got.MarketingRows)
				assert.Equal(t, 4000, got.SearchRows)
				assert.Equal(t, "s3://reports/Data Report 2024-03-05 07:01:00.xlsx", got.ArchiveURI)
				assert.Empty(t, got.Error)
			},
		},
		{
			name: "failed",
			finish: func(run *core.Run) {
				done := start.Add(time.Second)
				run.Status = core.RunStatusFailed
				run.CompletedAt = &done
				run.Error = "query marketing failed: 403 Forbidden"
			},
			validate: func(t *testing.T, got *core.Run) {
				assert.Equal(t, core.RunStatusFailed, got.Status)
				assert.Equal(t, "query marketing failed: 403 Forbidden", got.Error)
				assert.Empty(t, got.ReportPath)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			run, err := store.CreateRun(start)
			require.NoError(t, err)
			assert.Equal(t, core.RunStatusRunning, run.Status)
			assert.NotEmpty(t, run.ID)

			running, err := store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Nil(t, running.CompletedAt)
			assert.True(t, start.Equal(running.StartedAt))

			tt.finish(run)
			require.NoError(t, store.CompleteRun(run))

			got, err := store.GetRun(run.ID)
			require.NoError(t, err)
			tt.validate(t, got)
		})
	}
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorContains(t, err, "run not found")

	err = store.CompleteRun(&core.Run{ID: "missing", Status: core.RunStatusFailed})
	assert.ErrorContains(t, err, "run not found")
}

func TestSQLiteStore_ListAndLatest(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.LatestRun()
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 4 {
		run, err := store.CreateRun(base.Add(time.Duration(i) * 24 * time.Hour).Add(time.Duration(i) * time.Millisecond))
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	latest, err = store.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, ids[3], latest.ID)

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Equal(t, ids[2], runs[1].ID)

	all, err := store.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
