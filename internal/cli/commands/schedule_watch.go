package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapreport/internal/cli/config"
)

// reloadDebounce collapses the burst of events an editor save produces.
const reloadDebounce = 250 * time.Millisecond

// liveConfig is the configuration scheduled runs read at each tick. It is
// replaced when the config file changes and the new version loads cleanly.
type liveConfig struct {
	mu     sync.RWMutex
	cfg    *config.Config
	load   func() (*config.Config, error)
	logger *slog.Logger
}

func newLiveConfig(cfg *config.Config, load func() (*config.Config, error), logger *slog.Logger) *liveConfig {
	return &liveConfig{cfg: cfg, load: load, logger: logger}
}

// Get returns the current configuration.
func (c *liveConfig) Get() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// reload loads the config again and swaps it in. A config that fails to
// load or validate is rejected and the previous one stays active.
func (c *liveConfig) reload() bool {
	next, err := c.load()
	if err == nil {
		err = next.ValidateRun()
	}
	if err != nil {
		c.logger.Error("config reload rejected, keeping previous configuration", slog.String("error", err.Error()))
		return false
	}

	c.mu.Lock()
	prev := c.cfg
	c.cfg = next
	c.mu.Unlock()

	if prev.Schedule != next.Schedule {
		c.logger.Warn("schedule changed on disk, restart to apply it",
			slog.String("cron", next.Schedule.Cron),
			slog.String("timezone", next.Schedule.Timezone))
	}
	c.logger.Info("configuration reloaded")
	return true
}

// watch reloads the configuration whenever path is written until ctx is
// done. The parent directory is watched so files replaced by rename are
// still seen.
func (c *liveConfig) watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go c.watchLoop(ctx, watcher, abs)
	return nil
}

func (c *liveConfig) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer func() { _ = watcher.Close() }()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != path {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() == nil {
					c.reload()
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}
