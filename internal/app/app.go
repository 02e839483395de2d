// Package app wires configuration, storage, the upstream client and the
// sync services into one value shared by the CLI commands.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/simtrade/internal/clients/eodhd"
	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/export"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/services/incremental"
	"github.com/bobmcallan/simtrade/internal/services/processing"
	"github.com/bobmcallan/simtrade/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Source      interfaces.RawDataSource
	Engine      *processing.Engine
	Coordinator *incremental.Coordinator
	Exporter    *export.ParquetExporter
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, then
// SIMTRADE_CONFIG, then simtrade.toml next to the binary, then
// config/simtrade.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("SIMTRADE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "simtrade.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/simtrade.toml"
		}
	}
	return configPath
}

// NewApp loads configuration and initializes every component.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewAppWithConfig(ctx, config, nil)
}

// NewAppWithConfig initializes every component from config. A nil source
// means the EODHD client built from [clients.eodhd].
func NewAppWithConfig(ctx context.Context, config *common.Config, source interfaces.RawDataSource) (*App, error) {
	startupStart := time.Now()

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewStorageManager(ctx, logger, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if source == nil {
		if config.Clients.EODHD.APIKey == "" {
			logger.Warn().Msg("EODHD API key not configured - upstream fetches will be rejected")
		}
		source = eodhd.NewClientFromConfig(config.Clients.EODHD, logger)
	}

	engine := processing.NewEngine(source, storageManager, config.Processing, logger)
	coordinator := incremental.NewCoordinator(engine, storageManager, config.Sync, logger)
	exporter := export.NewParquetExporter(storageManager.BarStore(), config.Export.Dir, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Source:      source,
		Engine:      engine,
		Coordinator: coordinator,
		Exporter:    exporter,
		StartupTime: startupStart,
	}

	logger.Info().
		Str("backend", storageManager.Backend()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases storage.
func (a *App) Close() error {
	if a.Storage == nil {
		return nil
	}
	return a.Storage.Close()
}
