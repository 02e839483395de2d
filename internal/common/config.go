// Package common provides shared utilities for simtrade
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Storage backend names.
const (
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendSurrealDB = "surrealdb"
)

// Config holds all configuration for simtrade
type Config struct {
	Environment string           `toml:"environment"`
	Storage     StorageConfig    `toml:"storage"`
	Clients     ClientsConfig    `toml:"clients"`
	Sync        SyncConfig       `toml:"sync"`
	Processing  ProcessingConfig `toml:"processing"`
	Export      ExportConfig     `toml:"export"`
	Logging     LoggingConfig    `toml:"logging"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend string `toml:"backend"` // sqlite (default), postgres, surrealdb
	DSN     string `toml:"dsn"`     // sqlite file path or postgres connection string

	// SurrealDB connection
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD EODHDConfig `toml:"eodhd"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SyncConfig controls the incremental sync coordinator.
type SyncConfig struct {
	LookbackDays     int      `toml:"lookback_days"`      // window used when a key has no prior data
	DefaultStartDate string   `toml:"default_start_date"` // earliest date ever synced, YYYY-MM-DD
	MaxWorkers       int      `toml:"max_workers"`
	Frequencies      []string `toml:"frequencies"`
	BackfillGaps     bool     `toml:"backfill_gaps"`
	Holidays         []string `toml:"holidays"` // weekday exchange holidays, YYYY-MM-DD
}

// GetDefaultStartDate parses DefaultStartDate; the zero time means unbounded.
func (c *SyncConfig) GetDefaultStartDate() time.Time {
	d, err := time.Parse(DateLayout, c.DefaultStartDate)
	if err != nil {
		return time.Time{}
	}
	return d
}

// GetMaxWorkers returns the worker pool size, at least 1.
func (c *SyncConfig) GetMaxWorkers() int {
	if c.MaxWorkers < 1 {
		return 1
	}
	return c.MaxWorkers
}

// ProcessingConfig controls the processing engine.
type ProcessingConfig struct {
	EnableValuations bool  `toml:"enable_valuations"`
	EnableIndicators bool  `toml:"enable_indicators"`
	MAPeriods        []int `toml:"ma_periods"`
	BaseQualityScore int   `toml:"base_quality_score"`
}

// ExportConfig controls bar export.
type ExportConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// SupportedFrequencies are the bar frequencies the EODHD client can fetch.
// 1M is monthly.
var SupportedFrequencies = []string{"1d", "1w", "1M", "5m", "60m"}

// IsSupportedFrequency reports whether s names a fetchable frequency.
func IsSupportedFrequency(s string) bool {
	for _, f := range SupportedFrequencies {
		if s == f {
			return true
		}
	}
	return false
}

// DateLayout is the calendar-date format used throughout storage and config.
const DateLayout = "2006-01-02"

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Backend:   BackendSQLite,
			DSN:       "data/simtrade.db",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "simtrade",
			Database:  "market",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Sync: SyncConfig{
			LookbackDays:     30,
			DefaultStartDate: "2020-01-01",
			MaxWorkers:       4,
			Frequencies:      []string{"1d"},
		},
		Processing: ProcessingConfig{
			EnableValuations: true,
			EnableIndicators: true,
			MAPeriods:        []int{5, 10, 20, 60},
			BaseQualityScore: 60,
		},
		Export: ExportConfig{
			Dir: "data/export",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"console"},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SIMTRADE_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("SIMTRADE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("SIMTRADE_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}

	if dsn := os.Getenv("SIMTRADE_STORAGE_DSN"); dsn != "" {
		config.Storage.DSN = dsn
	}

	if addr := os.Getenv("SIMTRADE_SURREALDB_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}

	if workers := os.Getenv("SIMTRADE_SYNC_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			config.Sync.MaxWorkers = n
		}
	}

	if days := os.Getenv("SIMTRADE_SYNC_LOOKBACK_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			config.Sync.LookbackDays = n
		}
	}

	for _, name := range []string{"EODHD_API_KEY", "SIMTRADE_EODHD_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			config.Clients.EODHD.APIKey = key
			break
		}
	}
}

// Validate checks values that would otherwise fail later in a confusing way.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendPostgres, BackendSurrealDB:
	default:
		return fmt.Errorf("unknown storage backend: %s (supported: sqlite, postgres, surrealdb)", c.Storage.Backend)
	}
	if c.Sync.LookbackDays < 1 {
		return fmt.Errorf("sync.lookback_days must be positive, got %d", c.Sync.LookbackDays)
	}
	if c.Sync.DefaultStartDate != "" {
		if _, err := time.Parse(DateLayout, c.Sync.DefaultStartDate); err != nil {
			return fmt.Errorf("sync.default_start_date: %w", err)
		}
	}
	for _, h := range c.Sync.Holidays {
		if _, err := time.Parse(DateLayout, h); err != nil {
			return fmt.Errorf("sync.holidays: %w", err)
		}
	}
	for _, f := range c.Sync.Frequencies {
		if !IsSupportedFrequency(strings.TrimSpace(f)) {
			return fmt.Errorf("sync.frequencies: unsupported frequency %q (supported: %s)", f, strings.Join(SupportedFrequencies, ", "))
		}
	}
	for _, p := range c.Processing.MAPeriods {
		if p < 2 {
			return fmt.Errorf("processing.ma_periods must be >= 2, got %d", p)
		}
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
