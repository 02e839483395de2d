package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the startup banner for a CLI run to w.
func PrintBanner(w io.Writer, config *Config, logger *Logger, command string) {
	version := GetVersion()
	storageTarget := StorageTarget(config.Storage)

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 60
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(w, "\n%s\n\n", hr)
	fmt.Fprintf(w, "%s  SIMTRADE  market data sync & processing%s\n\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s\n\n", hr)

	kvLines := [][2]string{
		{"Version", GetFullVersion()},
		{"Environment", config.Environment},
		{"Command", command},
		{"Storage", storageTarget},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)

	logger.Info().
		Str("version", version).
		Str("environment", config.Environment).
		Str("command", command).
		Str("storage", storageTarget).
		Msg("simtrade started")
}

// StorageTarget describes the configured backend without credentials.
func StorageTarget(cfg StorageConfig) string {
	switch cfg.Backend {
	case BackendSurrealDB:
		return fmt.Sprintf("surrealdb %s (%s/%s)", cfg.Address, cfg.Namespace, cfg.Database)
	case BackendPostgres:
		return "postgres"
	default:
		return "sqlite " + cfg.DSN
	}
}
