// Package interfaces defines service contracts for simtrade
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/simtrade/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	BarStore() BarStore
	FundamentalStore() FundamentalStore
	SyncStatusStore() SyncStatusStore
	StockStore() StockStore

	// Backend names the active backend ("sqlite", "postgres", "surrealdb").
	Backend() string

	// Lifecycle
	Close() error
}

// BarStore persists processed bars keyed by (symbol, trade_date, frequency).
// UpsertBars is last-write-wins per key and never duplicates a row.
type BarStore interface {
	UpsertBars(ctx context.Context, bars []models.Bar) (int, error)

	// LatestDate returns the newest stored trade date for the key; ok is false
	// when nothing is stored.
	LatestDate(ctx context.Context, symbol string, freq models.Frequency) (date time.Time, ok bool, err error)

	// QualityScores returns stored scores in [start, end] keyed by "2006-01-02".
	QualityScores(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) (map[string]int, error)

	// GetBars returns stored bars in [start, end] in date order.
	GetBars(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]models.Bar, error)

	// TradeDates returns the stored trade dates in [start, end] in date order.
	TradeDates(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]time.Time, error)
}

// FundamentalStore persists quarterly filings keyed by (symbol, report_date).
type FundamentalStore interface {
	UpsertFundamentals(ctx context.Context, records []models.FundamentalRecord) (int, error)
	GetFundamentals(ctx context.Context, symbol string) ([]models.FundamentalRecord, error)
}

// SyncStatusStore persists per-(symbol, frequency) sync bookkeeping.
type SyncStatusStore interface {
	SaveSyncStatus(ctx context.Context, status *models.SyncStatus) error
	// GetSyncStatus returns common.ErrNotFound when no row exists.
	GetSyncStatus(ctx context.Context, symbol string, freq models.Frequency) (*models.SyncStatus, error)
	ListSyncStatus(ctx context.Context) ([]models.SyncStatus, error)
}

// StockStore persists instrument metadata.
type StockStore interface {
	UpsertStocks(ctx context.Context, stocks []models.Stock) (int, error)
	GetStock(ctx context.Context, symbol string) (*models.Stock, error)
	ActiveSymbols(ctx context.Context) ([]string, error)
}
