package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

// schema uses TEXT dates (YYYY-MM-DD) and INTEGER booleans so the same DDL and
// queries run on both dialects. {F} is replaced with the dialect float type.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS stocks (
		symbol TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		market TEXT NOT NULL DEFAULT '',
		exchange TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		is_st INTEGER NOT NULL DEFAULT 0,
		list_date TEXT,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT NOT NULL,
		market TEXT NOT NULL DEFAULT '',
		trade_date TEXT NOT NULL,
		trade_time TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL,
		open {F}, high {F}, low {F}, close {F},
		volume {F}, amount {F}, price {F}, preclose {F},
		high_limit {F}, low_limit {F},
		unlimited INTEGER NOT NULL DEFAULT 0,
		is_st INTEGER NOT NULL DEFAULT 0,
		pe {F}, pb {F}, ps {F}, turnover_rate {F},
		change_amount {F}, change_percent {F}, amplitude {F},
		is_limit_up INTEGER NOT NULL DEFAULT 0,
		is_limit_down INTEGER NOT NULL DEFAULT 0,
		ma5 {F}, ma10 {F}, ma20 {F}, ma60 {F},
		total_shares {F}, total_value {F}, float_value {F},
		quality_score INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'raw',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (symbol, trade_date, frequency)
	)`,
	`CREATE TABLE IF NOT EXISTS fundamentals (
		symbol TEXT NOT NULL,
		report_date TEXT NOT NULL,
		report_type TEXT NOT NULL DEFAULT '',
		total_shares {F}, float_shares {F},
		revenue {F}, net_profit {F}, total_assets {F}, total_equity {F},
		eps {F}, bps {F}, roe {F},
		updated_at TEXT NOT NULL,
		PRIMARY KEY (symbol, report_date)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_status (
		symbol TEXT NOT NULL,
		frequency TEXT NOT NULL,
		last_sync_date TEXT,
		last_data_date TEXT,
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		total_records INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (symbol, frequency)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bars_freq_date ON bars (frequency, trade_date)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, ddl := range schema {
		stmt := strings.ReplaceAll(ddl, "{F}", s.dialect.floatType)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
