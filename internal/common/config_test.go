package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 30, cfg.Sync.LookbackDays)
	assert.Equal(t, 4, cfg.Sync.MaxWorkers)
	assert.Equal(t, []string{"1d"}, cfg.Sync.Frequencies)
	assert.Equal(t, []int{5, 10, 20, 60}, cfg.Processing.MAPeriods)
	assert.Equal(t, 60, cfg.Processing.BaseQualityScore)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SIMTRADE_ENV", "production")
	t.Setenv("SIMTRADE_STORAGE_BACKEND", "POSTGRES")
	t.Setenv("SIMTRADE_STORAGE_DSN", "postgres://u:p@db/simtrade")
	t.Setenv("SIMTRADE_SYNC_WORKERS", "8")
	t.Setenv("SIMTRADE_SYNC_LOOKBACK_DAYS", "90")
	t.Setenv("EODHD_API_KEY", "from-env")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://u:p@db/simtrade", cfg.Storage.DSN)
	assert.Equal(t, 8, cfg.Sync.MaxWorkers)
	assert.Equal(t, 90, cfg.Sync.LookbackDays)
	assert.Equal(t, "from-env", cfg.Clients.EODHD.APIKey)
}

func TestConfig_InvalidWorkerEnvIgnored(t *testing.T) {
	t.Setenv("SIMTRADE_SYNC_WORKERS", "many")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 4, cfg.Sync.MaxWorkers)
}

func TestLoadConfig_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[sync]
lookback_days = 45
max_workers = 2

[storage]
dsn = "base.db"
`), 0644))
	require.NoError(t, os.WriteFile(local, []byte(`
[sync]
max_workers = 6
`), 0644))

	cfg, err := LoadConfig(base, local, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Sync.LookbackDays)
	assert.Equal(t, 6, cfg.Sync.MaxWorkers)
	assert.Equal(t, "base.db", cfg.Storage.DSN)
}

func TestLoadConfig_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\nbackend = \"mongo\"\n"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero lookback", func(c *Config) { c.Sync.LookbackDays = 0 }},
		{"bad start date", func(c *Config) { c.Sync.DefaultStartDate = "01/01/2020" }},
		{"period too small", func(c *Config) { c.Processing.MAPeriods = []int{1} }},
		{"frequency not fetchable", func(c *Config) { c.Sync.Frequencies = []string{"1d", "15m"} }},
		{"bad holiday", func(c *Config) { c.Sync.Holidays = []string{"Jan 1"} }},
		{"lowercase monthly", func(c *Config) { c.Sync.Frequencies = []string{"1m"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ValidateAcceptsSupportedFrequencies(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sync.Frequencies = SupportedFrequencies
	assert.NoError(t, cfg.Validate())
}

func TestSyncConfig_Helpers(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Sync.GetDefaultStartDate())

	cfg.Sync.DefaultStartDate = ""
	assert.True(t, cfg.Sync.GetDefaultStartDate().IsZero())

	cfg.Sync.MaxWorkers = 0
	assert.Equal(t, 1, cfg.Sync.GetMaxWorkers())
}

func TestEODHDConfig_GetTimeout(t *testing.T) {
	c := EODHDConfig{Timeout: "5s"}
	assert.Equal(t, 5*time.Second, c.GetTimeout())

	c.Timeout = "garbage"
	assert.Equal(t, 30*time.Second, c.GetTimeout())
}
