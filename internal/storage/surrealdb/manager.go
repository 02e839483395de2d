package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/surrealdb/surrealdb.go"
)

// Table names.
const (
	tableBar         = "bar"
	tableFundamental = "fundamental"
	tableSyncStatus  = "sync_status"
	tableStock       = "stock"
)

// writeAttempts is how many times a single UPSERT is tried.
const writeAttempts = 3

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	barStore         *BarStore
	fundamentalStore *FundamentalStore
	syncStatusStore  *SyncStatusStore
	stockStore       *StockStore
}

// NewManager connects, signs in, selects the namespace/database and defines tables.
func NewManager(ctx context.Context, logger *common.Logger, config common.StorageConfig) (*Manager, error) {
	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := newManager(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// newManager defines tables on an already selected database.
func newManager(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	// SurrealDB v3 errors on querying non-existent tables
	for _, table := range []string{tableBar, tableFundamental, tableSyncStatus, tableStock} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	indexes := []string{
		"DEFINE INDEX IF NOT EXISTS bar_key ON TABLE bar FIELDS symbol, frequency, trade_date",
		"DEFINE INDEX IF NOT EXISTS stock_status ON TABLE stock FIELDS status",
	}
	for _, sql := range indexes {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define index: %w", err)
		}
	}

	return &Manager{
		db:               db,
		logger:           logger,
		barStore:         NewBarStore(db, logger),
		fundamentalStore: NewFundamentalStore(db, logger),
		syncStatusStore:  NewSyncStatusStore(db, logger),
		stockStore:       NewStockStore(db, logger),
	}, nil
}

func (m *Manager) BarStore() interfaces.BarStore {
	return m.barStore
}

func (m *Manager) FundamentalStore() interfaces.FundamentalStore {
	return m.fundamentalStore
}

func (m *Manager) SyncStatusStore() interfaces.SyncStatusStore {
	return m.syncStatusStore
}

func (m *Manager) StockStore() interfaces.StockStore {
	return m.stockStore
}

func (m *Manager) Backend() string {
	return common.BackendSurrealDB
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// upsert writes one record, retrying transient failures.
func upsert[T any](ctx context.Context, db *surrealdb.DB, rid any, data T) error {
	vars := map[string]any{"rid": rid, "data": data}

	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		_, err := surrealdb.Query[[]T](ctx, db, "UPSERT $rid CONTENT $data", vars)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

// queryAll runs a SELECT and returns the first statement's rows.
func queryAll[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
