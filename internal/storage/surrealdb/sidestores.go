package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// --- FundamentalStore ---

type FundamentalStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewFundamentalStore(db *surrealdb.DB, logger *common.Logger) *FundamentalStore {
	return &FundamentalStore{db: db, logger: logger}
}

func (s *FundamentalStore) UpsertFundamentals(ctx context.Context, records []models.FundamentalRecord) (int, error) {
	written := 0
	for i := range records {
		f := &records[i]
		rid := surrealmodels.NewRecordID(tableFundamental, f.Symbol+"_"+models.DateKey(f.ReportDate))
		if err := upsert(ctx, s.db, rid, toFundamentalDoc(f)); err != nil {
			return written, fmt.Errorf("failed to save fundamental after retries: %w", err)
		}
		written++
	}
	return written, nil
}

func (s *FundamentalStore) GetFundamentals(ctx context.Context, symbol string) ([]models.FundamentalRecord, error) {
	docs, err := queryAll[fundamentalDoc](ctx, s.db,
		"SELECT * FROM fundamental WHERE symbol = $symbol ORDER BY report_date", map[string]any{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	out := make([]models.FundamentalRecord, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toRecord())
	}
	return out, nil
}

// --- SyncStatusStore ---

type SyncStatusStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewSyncStatusStore(db *surrealdb.DB, logger *common.Logger) *SyncStatusStore {
	return &SyncStatusStore{db: db, logger: logger}
}

func syncStatusRID(symbol string, freq models.Frequency) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(tableSyncStatus, symbol+"_"+string(freq))
}

func (s *SyncStatusStore) SaveSyncStatus(ctx context.Context, st *models.SyncStatus) error {
	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	doc := syncStatusDoc{
		Symbol:       st.Symbol,
		Frequency:    string(st.Frequency),
		LastSyncDate: optionalDay(st.LastSyncDate),
		LastDataDate: optionalDay(st.LastDataDate),
		Status:       st.Status,
		ErrorMessage: st.ErrorMessage,
		TotalRecords: st.TotalRecords,
		UpdatedAt:    updated,
	}
	if err := upsert(ctx, s.db, syncStatusRID(st.Symbol, st.Frequency), doc); err != nil {
		return fmt.Errorf("failed to save sync status after retries: %w", err)
	}
	return nil
}

func (s *SyncStatusStore) GetSyncStatus(ctx context.Context, symbol string, freq models.Frequency) (*models.SyncStatus, error) {
	doc, err := surrealdb.Select[syncStatusDoc](ctx, s.db, syncStatusRID(symbol, freq))
	if err != nil {
		return nil, fmt.Errorf("failed to select sync status: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("sync status %s/%s: %w", symbol, freq, common.ErrNotFound)
	}
	st := fromSyncStatusDoc(doc)
	return &st, nil
}

func (s *SyncStatusStore) ListSyncStatus(ctx context.Context) ([]models.SyncStatus, error) {
	docs, err := queryAll[syncStatusDoc](ctx, s.db, "SELECT * FROM sync_status ORDER BY symbol, frequency", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync status: %w", err)
	}
	out := make([]models.SyncStatus, 0, len(docs))
	for i := range docs {
		out = append(out, fromSyncStatusDoc(&docs[i]))
	}
	return out, nil
}

func fromSyncStatusDoc(d *syncStatusDoc) models.SyncStatus {
	return models.SyncStatus{
		Symbol:       d.Symbol,
		Frequency:    models.Frequency(d.Frequency),
		LastSyncDate: parseDay(d.LastSyncDate),
		LastDataDate: parseDay(d.LastDataDate),
		Status:       d.Status,
		ErrorMessage: d.ErrorMessage,
		TotalRecords: d.TotalRecords,
		UpdatedAt:    d.UpdatedAt,
	}
}

// --- StockStore ---

type StockStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewStockStore(db *surrealdb.DB, logger *common.Logger) *StockStore {
	return &StockStore{db: db, logger: logger}
}

func (s *StockStore) UpsertStocks(ctx context.Context, stocks []models.Stock) (int, error) {
	written := 0
	for _, st := range stocks {
		doc := stockDoc{
			Symbol:    st.Symbol,
			Name:      st.Name,
			Market:    st.Market,
			Exchange:  st.Exchange,
			Status:    st.Status,
			IsST:      st.IsST,
			ListDate:  optionalDay(st.ListDate),
			UpdatedAt: st.UpdatedAt,
		}
		if doc.Status == "" {
			doc.Status = models.StockActive
		}
		if doc.Market == "" {
			doc.Market = models.InferMarket(st.Symbol)
		}
		if doc.UpdatedAt.IsZero() {
			doc.UpdatedAt = time.Now().UTC()
		}
		if err := upsert(ctx, s.db, surrealmodels.NewRecordID(tableStock, st.Symbol), doc); err != nil {
			return written, fmt.Errorf("failed to save stock %s after retries: %w", st.Symbol, err)
		}
		written++
	}
	return written, nil
}

func (s *StockStore) GetStock(ctx context.Context, symbol string) (*models.Stock, error) {
	doc, err := surrealdb.Select[stockDoc](ctx, s.db, surrealmodels.NewRecordID(tableStock, symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to select stock: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("stock %s: %w", symbol, common.ErrNotFound)
	}
	return &models.Stock{
		Symbol:    doc.Symbol,
		Name:      doc.Name,
		Market:    doc.Market,
		Exchange:  doc.Exchange,
		Status:    doc.Status,
		IsST:      doc.IsST,
		ListDate:  parseDay(doc.ListDate),
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *StockStore) ActiveSymbols(ctx context.Context) ([]string, error) {
	type row struct {
		Symbol string `json:"symbol"`
	}
	rows, err := queryAll[row](ctx, s.db,
		"SELECT symbol FROM stock WHERE status = $status ORDER BY symbol", map[string]any{"status": models.StockActive})
	if err != nil {
		return nil, fmt.Errorf("failed to query active symbols: %w", err)
	}
	symbols := make([]string, 0, len(rows))
	for _, r := range rows {
		symbols = append(symbols, r.Symbol)
	}
	return symbols, nil
}
