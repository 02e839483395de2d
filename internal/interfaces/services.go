package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/simtrade/internal/models"
)

// ProcessingEngine turns raw upstream data into persisted, scored bars.
type ProcessingEngine interface {
	ProcessSymbolData(ctx context.Context, req ProcessRequest) models.ProcessResult
}

// ProcessRequest names one symbol, frequency and inclusive date range.
type ProcessRequest struct {
	Symbol      string
	Frequency   models.Frequency
	Start       time.Time
	End         time.Time
	ForceUpdate bool
}

// SyncCoordinator runs incremental syncs over many symbols.
type SyncCoordinator interface {
	SyncAllSymbols(ctx context.Context, target time.Time, symbols []string, freqs []models.Frequency) (*models.SyncResult, error)
	BackfillGaps(ctx context.Context, symbols []string, freq models.Frequency, start, end time.Time) (*models.SyncResult, error)
}

// BarExporter writes stored bars to an external file format.
type BarExporter interface {
	Export(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) (string, int, error)
}
