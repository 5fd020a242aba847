// Package config handles configuration loading, validation, and management
// for oxygencrate.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"oxygencrate/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete shell configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Import configuration for the file import bridge.
	Import ImportConfig `toml:"import" json:"import" yaml:"import"`

	// Input configuration for the key event bridge.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Storage configuration for the import ledger.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Portal configuration for the desktop file chooser.
	Portal PortalConfig `toml:"portal" json:"portal" yaml:"portal"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ImportConfig holds file import configuration.
type ImportConfig struct {
	// Root is the storage root the import directory lives under.
	Root string `toml:"root" json:"root" yaml:"root"`

	// Directory is the import directory relative to Root.
	Directory string `toml:"directory" json:"directory" yaml:"directory"`

	// FallbackPrefix names imports whose display name is unknown.
	FallbackPrefix string `toml:"fallback_prefix" json:"fallback_prefix" yaml:"fallback_prefix"`

	// RequestCode is the first picker request token.
	RequestCode int `toml:"request_code" json:"request_code" yaml:"request_code"`

	// DirMode is the octal permission of created directories.
	DirMode string `toml:"dir_mode" json:"dir_mode" yaml:"dir_mode"`

	// FileMode is the octal permission of imported files.
	FileMode string `toml:"file_mode" json:"file_mode" yaml:"file_mode"`
}

// InputConfig holds key decoding configuration.
type InputConfig struct {
	// Layout selects the built-in character map: "us" or "host".
	Layout string `toml:"layout" json:"layout" yaml:"layout"`
}

// StorageConfig holds import ledger configuration.
type StorageConfig struct {
	// Enabled determines whether imports are recorded.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the SQLite ledger.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log destination: "stdout", "stderr", "file", "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics are collected.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `toml:"namespace" json:"namespace" yaml:"namespace"`

	// Listen is the address serving /metrics. Empty disables the endpoint.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// PortalConfig holds xdg-desktop-portal configuration.
type PortalConfig struct {
	// Enabled determines whether the portal picker is used on Linux.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Title is the picker dialog title.
	Title string `toml:"title" json:"title" yaml:"title"`

	// Modal makes the dialog modal to the parent window.
	Modal bool `toml:"modal" json:"modal" yaml:"modal"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Import: ImportConfig{
			Root:           DefaultImportRoot(),
			Directory:      filepath.Join("Beisent", "OxygenCrate"),
			FallbackPrefix: "Imported",
			RequestCode:    2002,
			DirMode:        "0755",
			FileMode:       "0644",
		},
		Input: InputConfig{
			Layout: "us",
		},
		Storage: StorageConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "imports.db"),
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "logs", "oxygencrate.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "oxygencrate",
		},
		Portal: PortalConfig{
			Enabled: true,
			Title:   "Import file",
			Modal:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// ResolvePath returns path, or when it is empty the first config file
// found by FindConfigFile, or ConfigPath.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if found := FindConfigFile(); found != "" {
		return found
	}
	return ConfigPath()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension. The
// document is checked against the schema first, so unknown keys are
// errors rather than silently ignored.
func Load(path string) (*Config, error) {
	cfg, err := loadConfigFromFile(ResolvePath(path))
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ImportDir returns the absolute import directory.
func (c *Config) ImportDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Join(expandPath(c.Import.Root), c.Import.Directory)
}

// DirMode returns the parsed directory permission.
func (c *Config) DirMode() os.FileMode {
	return parseMode(c.Import.DirMode, 0o755)
}

// FileMode returns the parsed file permission.
func (c *Config) FileMode() os.FileMode {
	return parseMode(c.Import.FileMode, 0o644)
}

// StoragePath returns the expanded ledger path.
func (c *Config) StoragePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandPath(c.Storage.Path)
}

// BusyTimeout returns the ledger busy timeout.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Storage.BusyTimeoutMs) * time.Millisecond
}

// LoggingSettings converts the logging section for the logging package.
func (c *Config) LoggingSettings() logging.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return logging.Settings{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Output:     c.Logging.Output,
		FilePath:   expandPath(c.Logging.FilePath),
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}

// DataDir returns the base oxygencrate directory.
// Uses platform-specific paths or the OXYGENCRATE_DATA_DIR override.
func DataDir() string {
	if envDir := os.Getenv("OXYGENCRATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with OXYGENCRATE_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Import overrides
	if v := os.Getenv("OXYGENCRATE_IMPORT_ROOT"); v != "" {
		c.Import.Root = v
	}
	if v := os.Getenv("OXYGENCRATE_IMPORT_DIR"); v != "" {
		c.Import.Directory = v
	}

	// Storage overrides
	if v := os.Getenv("OXYGENCRATE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}

	// Logging overrides
	if v := os.Getenv("OXYGENCRATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OXYGENCRATE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// Metrics overrides
	if v := os.Getenv("OXYGENCRATE_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}

	// Portal overrides
	if v := os.Getenv("OXYGENCRATE_PORTAL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Portal.Enabled = b
		}
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version: c.Version,
		Import:  c.Import,
		Input:   c.Input,
		Storage: c.Storage,
		Logging: c.Logging,
		Metrics: c.Metrics,
		Portal:  c.Portal,
	}
}

func parseMode(s string, def os.FileMode) os.FileMode {
	if s == "" {
		return def
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return def
	}
	return os.FileMode(v)
}
