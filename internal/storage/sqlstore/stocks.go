package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobmcallan/simtrade/internal/models"
)

var stockColumns = []string{"symbol", "name", "market", "exchange", "status", "is_st", "list_date", "updated_at"}

var upsertStockSQL = upsertSQL("stocks", stockColumns, []string{"symbol"})

func stockArgs(st *models.Stock) []any {
	status := st.Status
	if status == "" {
		status = models.StockActive
	}
	market := st.Market
	if market == "" {
		market = models.InferMarket(st.Symbol)
	}
	return []any{st.Symbol, st.Name, market, st.Exchange, status, boolInt(st.IsST), nullDate(st.ListDate), timestamp(st.UpdatedAt)}
}

func (s *Store) UpsertStocks(ctx context.Context, stocks []models.Stock) (int, error) {
	n, err := upsertAll(ctx, s, upsertStockSQL, stocks, stockArgs)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert stocks: %w", err)
	}
	return n, nil
}

func (s *Store) GetStock(ctx context.Context, symbol string) (*models.Stock, error) {
	var (
		st        models.Stock
		isST      int64
		listDate  sql.NullString
		updatedAt string
	)
	err := s.queryRow(ctx,
		"SELECT symbol, name, market, exchange, status, is_st, list_date, updated_at FROM stocks WHERE symbol = ?", symbol).
		Scan(&st.Symbol, &st.Name, &st.Market, &st.Exchange, &st.Status, &isST, &listDate, &updatedAt)
	if err != nil {
		return nil, notFound(err, "stock "+symbol)
	}
	st.IsST = isST != 0
	st.UpdatedAt = parseTimestamp(updatedAt)
	if st.ListDate, err = parseNullDate(listDate); err != nil {
		return nil, err
	}
	return &st, nil
}

// ActiveSymbols lists symbols whose status is active, in symbol order.
func (s *Store) ActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, "SELECT symbol FROM stocks WHERE status = ? ORDER BY symbol", models.StockActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
