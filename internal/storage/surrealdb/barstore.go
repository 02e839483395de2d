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

// BarStore keeps one "bar" record per (symbol, frequency, trade_date); the
// record id encodes the key so UPSERT replaces rather than duplicates.
type BarStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewBarStore(db *surrealdb.DB, logger *common.Logger) *BarStore {
	return &BarStore{db: db, logger: logger}
}

func (s *BarStore) UpsertBars(ctx context.Context, bars []models.Bar) (int, error) {
	written := 0
	for i := range bars {
		b := &bars[i]
		rid := surrealmodels.NewRecordID(tableBar, barID(b.Symbol, b.Frequency, b.TradeDate))
		if err := upsert(ctx, s.db, rid, toBarDoc(b)); err != nil {
			return written, fmt.Errorf("failed to save bar %s %s after retries: %w", b.Symbol, models.DateKey(b.TradeDate), err)
		}
		written++
	}
	return written, nil
}

func (s *BarStore) LatestDate(ctx context.Context, symbol string, freq models.Frequency) (time.Time, bool, error) {
	type row struct {
		TradeDate string `json:"trade_date"`
	}
	rows, err := queryAll[row](ctx, s.db,
		"SELECT trade_date FROM bar WHERE symbol = $symbol AND frequency = $freq ORDER BY trade_date DESC LIMIT 1",
		map[string]any{"symbol": symbol, "freq": string(freq)})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest date: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return parseDay(rows[0].TradeDate), true, nil
}

func rangeVars(symbol string, freq models.Frequency, start, end time.Time) map[string]any {
	return map[string]any{
		"symbol": symbol,
		"freq":   string(freq),
		"start":  models.DateKey(start),
		"end":    models.DateKey(end),
	}
}

const rangeWhere = "WHERE symbol = $symbol AND frequency = $freq AND trade_date >= $start AND trade_date <= $end"

func (s *BarStore) QualityScores(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) (map[string]int, error) {
	type row struct {
		TradeDate    string `json:"trade_date"`
		QualityScore int    `json:"quality_score"`
	}
	rows, err := queryAll[row](ctx, s.db, "SELECT trade_date, quality_score FROM bar "+rangeWhere, rangeVars(symbol, freq, start, end))
	if err != nil {
		return nil, fmt.Errorf("failed to query quality scores: %w", err)
	}
	scores := make(map[string]int, len(rows))
	for _, r := range rows {
		scores[r.TradeDate] = r.QualityScore
	}
	return scores, nil
}

func (s *BarStore) GetBars(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]models.Bar, error) {
	docs, err := queryAll[barDoc](ctx, s.db, "SELECT * FROM bar "+rangeWhere+" ORDER BY trade_date", rangeVars(symbol, freq, start, end))
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	bars := make([]models.Bar, 0, len(docs))
	for i := range docs {
		bars = append(bars, docs[i].toBar())
	}
	return bars, nil
}

func (s *BarStore) TradeDates(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]time.Time, error) {
	type row struct {
		TradeDate string `json:"trade_date"`
	}
	rows, err := queryAll[row](ctx, s.db, "SELECT trade_date FROM bar "+rangeWhere+" ORDER BY trade_date", rangeVars(symbol, freq, start, end))
	if err != nil {
		return nil, fmt.Errorf("failed to query trade dates: %w", err)
	}
	dates := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		dates = append(dates, parseDay(r.TradeDate))
	}
	return dates, nil
}
