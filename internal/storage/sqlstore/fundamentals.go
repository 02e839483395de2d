package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobmcallan/simtrade/internal/models"
)

var fundamentalColumns = []string{
	"symbol", "report_date", "report_type", "total_shares", "float_shares",
	"revenue", "net_profit", "total_assets", "total_equity", "eps", "bps", "roe", "updated_at",
}

var upsertFundamentalSQL = upsertSQL("fundamentals", fundamentalColumns, []string{"symbol", "report_date"})

func fundamentalArgs(f *models.FundamentalRecord) []any {
	return []any{
		f.Symbol, models.DateKey(f.ReportDate), f.ReportType, nullFloat(f.TotalShares), nullFloat(f.FloatShares),
		nullFloat(f.Revenue), nullFloat(f.NetProfit), nullFloat(f.TotalAssets), nullFloat(f.TotalEquity),
		nullFloat(f.EPS), nullFloat(f.BPS), nullFloat(f.ROE), timestamp(f.UpdatedAt),
	}
}

func (s *Store) UpsertFundamentals(ctx context.Context, records []models.FundamentalRecord) (int, error) {
	n, err := upsertAll(ctx, s, upsertFundamentalSQL, records, fundamentalArgs)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert fundamentals: %w", err)
	}
	return n, nil
}

// GetFundamentals returns a symbol's filings ordered by report date.
func (s *Store) GetFundamentals(ctx context.Context, symbol string) ([]models.FundamentalRecord, error) {
	rows, err := s.query(ctx, `SELECT symbol, report_date, report_type, total_shares, float_shares,
		revenue, net_profit, total_assets, total_equity, eps, bps, roe, updated_at
		FROM fundamentals WHERE symbol = ? ORDER BY report_date`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	defer rows.Close()

	var out []models.FundamentalRecord
	for rows.Next() {
		var (
			f                               models.FundamentalRecord
			reportDate, updatedAt           string
			total, float                    sql.NullFloat64
			revenue, profit, assets, equity sql.NullFloat64
			eps, bps, roe                   sql.NullFloat64
		)
		if err := rows.Scan(&f.Symbol, &reportDate, &f.ReportType, &total, &float,
			&revenue, &profit, &assets, &equity, &eps, &bps, &roe, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fundamental: %w", err)
		}
		if f.ReportDate, err = parseDate(reportDate); err != nil {
			return nil, err
		}
		f.TotalShares, f.FloatShares = fromNullFloat(total), fromNullFloat(float)
		f.Revenue, f.NetProfit = fromNullFloat(revenue), fromNullFloat(profit)
		f.TotalAssets, f.TotalEquity = fromNullFloat(assets), fromNullFloat(equity)
		f.EPS, f.BPS, f.ROE = fromNullFloat(eps), fromNullFloat(bps), fromNullFloat(roe)
		f.UpdatedAt = parseTimestamp(updatedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}
