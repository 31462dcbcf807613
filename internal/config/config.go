// ABOUTME: Configuration loading and parsing for parley-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/parley-gateway/internal/store"
	"github.com/2389/parley-gateway/internal/wager"
)

// EnvConfigPath names the variable that overrides the config file location
const EnvConfigPath = "PARLEY_CONFIG"

// Config represents the complete parley-gateway configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Analytics AnalyticsConfig `yaml:"analytics" toml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Janitor   JanitorConfig   `yaml:"janitor" toml:"janitor"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Dedupe    DedupeConfig    `yaml:"dedupe" toml:"dedupe"`
}

// DatabaseConfig selects and tunes the conversation store
type DatabaseConfig struct {
	Driver       string        `yaml:"driver" toml:"driver"` // sqlite, postgres, memory
	Path         string        `yaml:"path" toml:"path"`
	DSN          string        `yaml:"dsn" toml:"dsn"`
	ReadRetries  int           `yaml:"read_retries" toml:"read_retries"`
	OpTimeout    time.Duration `yaml:"-" toml:"-"`
	RetryBackoff time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	OpTimeoutRaw    string `yaml:"op_timeout" toml:"op_timeout"`
	RetryBackoffRaw string `yaml:"retry_backoff" toml:"retry_backoff"`
}

// AnalyticsConfig tunes the wager engine
type AnalyticsConfig struct {
	KellyCap     float64            `yaml:"kelly_cap" toml:"kelly_cap"`
	Tiers        []wager.Breakpoint `yaml:"tiers" toml:"tiers"`
	DefaultStake float64            `yaml:"default_stake" toml:"default_stake"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text or json
}

// MetricsConfig holds the ops listener configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// JanitorConfig controls orphaned attachment cleanup
type JanitorConfig struct {
	Interval    time.Duration `yaml:"-" toml:"-"`
	IntervalRaw string        `yaml:"interval" toml:"interval"`
	BatchSize   int           `yaml:"batch_size" toml:"batch_size"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// DedupeConfig bounds the request id cache
type DedupeConfig struct {
	TTL     time.Duration `yaml:"-" toml:"-"`
	TTLRaw  string        `yaml:"ttl" toml:"ttl"`
	MaxSize int           `yaml:"max_size" toml:"max_size"`
}

// Default returns a configuration that works without a file: a SQLite
// database under the user's data directory and the stock analytics ladder.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         filepath.Join(DataDir(), "parley.db"),
			OpTimeout:    5 * time.Second,
			ReadRetries:  3,
			RetryBackoff: 50 * time.Millisecond,
		},
		Analytics: AnalyticsConfig{
			KellyCap:     wager.DefaultKellyCap,
			Tiers:        append([]wager.Breakpoint(nil), wager.DefaultBreakpoints...),
			DefaultStake: 100,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Addr: "127.0.0.1:9464", Path: "/metrics"},
		Janitor: JanitorConfig{Interval: 10 * time.Minute, BatchSize: 100},
		Dedupe:  DedupeConfig{TTL: 5 * time.Minute, MaxSize: 10000},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Fields missing from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists. A missing file at the resolved
// default location yields Default; a missing explicit file is an error.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

// ResolvePath returns the config file location.
// Priority: PARLEY_CONFIG env var > XDG_CONFIG_HOME/parley/gateway.yaml > ~/.config/parley/gateway.yaml
func ResolvePath() string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parley", "gateway.yaml")
}

// DataDir returns the parley data directory.
// Priority: XDG_DATA_HOME/parley > ~/.local/share/parley
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "parley")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// EngineConfig converts the analytics section into wager engine settings
func (a AnalyticsConfig) EngineConfig() wager.Config {
	return wager.Config{
		KellyCap:    a.KellyCap,
		Breakpoints: append([]wager.Breakpoint(nil), a.Tiers...),
	}
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver %q must be sqlite, postgres or memory", c.Database.Driver)
	}
	if c.Database.OpTimeout < 0 {
		return fmt.Errorf("database.op_timeout must not be negative")
	}
	if c.Database.ReadRetries < 0 {
		return fmt.Errorf("database.read_retries must not be negative")
	}

	if err := c.Analytics.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	if math.IsNaN(c.Analytics.DefaultStake) || math.IsInf(c.Analytics.DefaultStake, 0) || c.Analytics.DefaultStake < 0 {
		return fmt.Errorf("analytics.default_stake must be a finite non-negative amount")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return fmt.Errorf("metrics.addr is required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /")
		}
	}

	if c.Janitor.Interval > 0 && (c.Janitor.BatchSize <= 0 || c.Janitor.BatchSize > store.MaxPageLimit) {
		return fmt.Errorf("janitor.batch_size must be between 1 and %d", store.MaxPageLimit)
	}
	if c.Dedupe.TTL < 0 || c.Dedupe.MaxSize < 0 {
		return fmt.Errorf("dedupe.ttl and dedupe.max_size must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"database.op_timeout", cfg.Database.OpTimeoutRaw, &cfg.Database.OpTimeout},
		{"database.retry_backoff", cfg.Database.RetryBackoffRaw, &cfg.Database.RetryBackoff},
		{"janitor.interval", cfg.Janitor.IntervalRaw, &cfg.Janitor.Interval},
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
