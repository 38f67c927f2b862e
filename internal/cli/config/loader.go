package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/leapreport/internal/pipeline"
	"github.com/leapstack-labs/leapreport/internal/queries"
	"github.com/leapstack-labs/leapreport/internal/spreadsheet"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"leapreport.yaml", "leapreport.yml"}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Package-level koanf instance and config file tracking, guarded by mu.
var (
	mu             sync.Mutex
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configExistsIn checks if a leapreport config file exists in the directory.
func configExistsIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a leapreport config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit --config file
//  2. Search upward from CWD for leapreport.yaml
//  3. Current working directory
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"output_dir":                DefaultOutputDir,
		"state_path":                DefaultStateFile,
		"verbose":                   false,
		"output":                    DefaultOutput,
		"log_format":                DefaultLogFormat,
		"marketing_file":            pipeline.DefaultMarketingFile,
		"search_file":               pipeline.DefaultSearchFile,
		"warehouse.type":            "bigquery",
		"queries.top_n":             queries.DefaultTopN,
		"queries.summary_limit":     queries.DefaultSummaryLimit,
		"queries.window_days":       queries.DefaultWindowDays,
		"spreadsheet.backend":       spreadsheet.BackendXLSX,
		"spreadsheet.template":      DefaultTemplate,
		"spreadsheet.cell":          DefaultCell,
		"spreadsheet.prefix":        DefaultReportPrefix,
		"spreadsheet.stamp_layout":  DefaultStampLayout,
		"spreadsheet.on_error":      string(spreadsheet.Propagate),
		"spreadsheet.process":       spreadsheet.DefaultProcessName,
		"spreadsheet.poll_interval": spreadsheet.DefaultPollInterval.String(),
		"spreadsheet.timeout":       spreadsheet.DefaultPollTimeout.String(),
		"mail.port":                 587,
		"mail.subject_prefix":       pipeline.DefaultSubjectPrefix,
		"schedule.cron":             DefaultCron,
		"schedule.timezone":         "UTC",
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
// It is safe to call while the scheduler reloads the file in the background.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	k = koanf.New(".")

	projectRoot := inferProjectRoot(cfgFile)

	// Paths given as flags are relative to CWD, not the project root.
	var flagOutputDir, flagStatePath string
	if flags != nil {
		if flags.Lookup("output-dir") != nil && flags.Changed("output-dir") {
			if v, _ := flags.GetString("output-dir"); v != "" {
				flagOutputDir, _ = filepath.Abs(v)
			}
		}
		if flags.Lookup("state") != nil && flags.Changed("state") {
			if v, _ := flags.GetString("state"); v != "" {
				flagStatePath, _ = filepath.Abs(v)
			}
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = configExistsIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (LEAPREPORT_ prefix)
	// Transform: LEAPREPORT_MAIL__HOST -> mail.host
	if err := k.Load(env.Provider(DefaultEnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, DefaultEnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")

			// --state is short for state_path
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			// --config only selects the file
			if key == "config" {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve paths against the project root
	cfg.ProjectRoot = projectRoot
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	} else {
		cfg.OutputDir = resolvePathRelativeTo(cfg.OutputDir, projectRoot)
	}
	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}
	for i := range cfg.Spreadsheet.Sources {
		cfg.Spreadsheet.Sources[i].CSV = resolvePathRelativeTo(cfg.Spreadsheet.Sources[i].CSV, cfg.OutputDir)
	}

	if cfg.Warehouse == nil {
		cfg.Warehouse = &WarehouseConfig{Type: "bigquery"}
	}
	expandSecrets(&cfg)
	if cfg.Warehouse.CredentialsFile != "" {
		cfg.Warehouse.CredentialsFile = resolvePathRelativeTo(cfg.Warehouse.CredentialsFile, projectRoot)
	}
	if cfg.Warehouse.Type == "duckdb" && cfg.Warehouse.Path != "" && cfg.Warehouse.Path != ":memory:" {
		cfg.Warehouse.Path = resolvePathRelativeTo(cfg.Warehouse.Path, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	mu.Lock()
	defer mu.Unlock()
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	mu.Lock()
	defer mu.Unlock()
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// expandSecrets expands environment variables in credential-like fields.
func expandSecrets(c *Config) {
	w := c.Warehouse
	w.Project = expandEnvVars(w.Project)
	w.CredentialsFile = expandEnvVars(w.CredentialsFile)
	w.Host = expandEnvVars(w.Host)
	w.Database = expandEnvVars(w.Database)
	w.Username = expandEnvVars(w.Username)
	w.Password = expandEnvVars(w.Password)

	c.Mail.Host = expandEnvVars(c.Mail.Host)
	c.Mail.Username = expandEnvVars(c.Mail.Username)
	c.Mail.Password = expandEnvVars(c.Mail.Password)
	c.Mail.From = expandEnvVars(c.Mail.From)
	c.Archive.S3Bucket = expandEnvVars(c.Archive.S3Bucket)

	for i, r := range c.Recipients {
		c.Recipients[i] = expandEnvVars(r)
	}
}
