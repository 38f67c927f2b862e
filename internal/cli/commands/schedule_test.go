package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapreport/internal/cli/config"
	logtest "github.com/leapstack-labs/leapreport/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		tz      string
		wantErr bool
	}{
		{name: "daily in UTC", expr: "0 7 * * *", tz: "UTC"},
		{name: "weekdays, default zone", expr: "30 6 * * 1-5"},
		{name: "invalid expression", expr: "every morning", tz: "UTC", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Schedule: config.ScheduleConfig{Cron: tt.expr, Timezone: tt.tz}}
			logger := logtest.NewTestLogger(t)

			s, err := newScheduler(context.Background(), newLiveConfig(cfg, nil, logger), tt.expr, logger)
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid cron expression")
				return
			}
			require.NoError(t, err)

			s.StartAsync()
			defer s.Stop()

			_, next := s.NextRun()
			assert.True(t, next.After(time.Now()), "next run %s should be in the future", next)
		})
	}
}

func TestRunScheduled_InvalidConfigIsLogged(t *testing.T) {
	logger, logs := logtest.NewRecordingLogger(t)
	cfg := &config.Config{Warehouse: &config.WarehouseConfig{Type: "duckdb"}}

	runScheduled(context.Background(), cfg, logger)

	assert.Equal(t, []string{"scheduled run not started"}, logs.Messages(slog.LevelError))
	v, ok := logs.Attr("scheduled run not started", "error")
	require.True(t, ok)
	assert.Contains(t, v.String(), "recipients")
}

func TestRunScheduled_CancelledContext(t *testing.T) {
	logger, logs := logtest.NewRecordingLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runScheduled(ctx, &config.Config{}, logger)

	assert.Empty(t, logs.Messages(slog.LevelDebug))
}

func runnableConfig(recipient string) *config.Config {
	return &config.Config{
		Recipients: []string{recipient},
		Warehouse:  &config.WarehouseConfig{Type: "duckdb"},
		Tables:     config.TablesConfig{Marketing: "marketing", Search: "search"},
		Mail:       config.MailConfig{Host: "smtp.example.com"},
		Schedule:   config.ScheduleConfig{Cron: "0 7 * * *"},
	}
}

func TestLiveConfig_Reload(t *testing.T) {
	withCron := runnableConfig("b@example.com")
	withCron.Schedule.Cron = "0 9 * * *"

	tests := []struct {
		name    string
		next    *config.Config
		loadErr error
		want    string
		wantLog string
		level   slog.Level
	}{
		{name: "valid edit", next: runnableConfig("b@example.com"), want: "b@example.com", wantLog: "configuration reloaded", level: slog.LevelInfo},
		{name: "incomplete edit", next: &config.Config{Warehouse: &config.WarehouseConfig{Type: "duckdb"}}, want: "a@example.com", wantLog: "config reload rejected, keeping previous configuration", level: slog.LevelError},
		{name: "unreadable file", loadErr: errors.New("yaml: line 3: did not find expected key"), want: "a@example.com", wantLog: "config reload rejected, keeping previous configuration", level: slog.LevelError},
		{name: "schedule edit needs restart", next: withCron, want: "b@example.com", wantLog: "schedule changed on disk, restart to apply it", level: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := logtest.NewRecordingLogger(t)
			live := newLiveConfig(runnableConfig("a@example.com"), func() (*config.Config, error) {
				return tt.next, tt.loadErr
			}, logger)

			live.reload()

			assert.Equal(t, []string{tt.want}, live.Get().Recipients)
			assert.Contains(t, logs.Messages(tt.level), tt.wantLog)
		})
	}
}

func TestLiveConfig_WatchPicksUpEdits(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	path := filepath.Join(t.TempDir(), "leapreport.yaml")
	write := func(recipient string) {
		content := `warehouse:
  type: duckdb
  path: ":memory:"
tables:
  marketing: marketing
  search: search
mail:
  host: smtp.example.com
recipients:
  - ` + recipient + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write("a@example.com")

	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	logger, logs := logtest.NewRecordingLogger(t)
	live := newLiveConfig(cfg, func() (*config.Config, error) {
		return config.LoadConfig(path, nil)
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, live.watch(ctx, path))

	write("b@example.com")
	require.Eventually(t, func() bool {
		return live.Get().Recipients[0] == "b@example.com"
	}, 5*time.Second, 20*time.Millisecond)

	// A broken edit leaves the last good configuration in place.
	require.NoError(t, os.WriteFile(path, []byte("recipients: []\n"), 0o600))
	require.Eventually(t, func() bool {
		return len(logs.Messages(slog.LevelError)) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"b@example.com"}, live.Get().Recipients)
}
