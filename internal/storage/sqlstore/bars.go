package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/simtrade/internal/models"
)

var barColumns = []string{
	"symbol", "market", "trade_date", "trade_time", "frequency",
	"open", "high", "low", "close", "volume", "amount", "price", "preclose",
	"high_limit", "low_limit", "unlimited", "is_st",
	"pe", "pb", "ps", "turnover_rate",
	"change_amount", "change_percent", "amplitude", "is_limit_up", "is_limit_down",
	"ma5", "ma10", "ma20", "ma60",
	"total_shares", "total_value", "float_value",
	"quality_score", "source", "updated_at",
}

var (
	upsertBarSQL  = upsertSQL("bars", barColumns, []string{"symbol", "trade_date", "frequency"})
	selectBarCols = strings.Join(barColumns, ", ")
)

func barArgs(b *models.Bar) []any {
	return []any{
		b.Symbol, b.Market, models.DateKey(b.TradeDate), b.TradeTime, string(b.Frequency),
		nullFloat(b.Open), nullFloat(b.High), nullFloat(b.Low), nullFloat(b.Close),
		nullFloat(b.Volume), nullFloat(b.Amount), nullFloat(b.Price), nullFloat(b.PreClose),
		nullFloat(b.HighLimit), nullFloat(b.LowLimit), boolInt(b.Unlimited), boolInt(b.IsST),
		nullFloat(b.PE), nullFloat(b.PB), nullFloat(b.PS), nullFloat(b.TurnoverRate),
		nullFloat(b.ChangeAmount), nullFloat(b.ChangePercent), nullFloat(b.Amplitude),
		boolInt(b.IsLimitUp), boolInt(b.IsLimitDown),
		nullFloat(b.MA5), nullFloat(b.MA10), nullFloat(b.MA20), nullFloat(b.MA60),
		nullFloat(b.TotalShares), nullFloat(b.TotalValue), nullFloat(b.FloatValue),
		b.QualityScore, string(b.Source), timestamp(b.UpdatedAt),
	}
}

func scanBar(rows *sql.Rows) (models.Bar, error) {
	var (
		b                                         models.Bar
		tradeDate, freq, source, updatedAt        string
		unlimited, isST, limitUp, limitDown       int64
		open, high, low, closePx                  sql.NullFloat64
		volume, amount, price, preclose           sql.NullFloat64
		highLimit, lowLimit, pe, pb, ps, turnover sql.NullFloat64
		change, changePct, amplitude              sql.NullFloat64
		ma5, ma10, ma20, ma60                     sql.NullFloat64
		totalShares, totalValue, floatValue       sql.NullFloat64
	)
	err := rows.Scan(
		&b.Symbol, &b.Market, &tradeDate, &b.TradeTime, &freq,
		&open, &high, &low, &closePx, &volume, &amount, &price, &preclose,
		&highLimit, &lowLimit, &unlimited, &isST,
		&pe, &pb, &ps, &turnover,
		&change, &changePct, &amplitude, &limitUp, &limitDown,
		&ma5, &ma10, &ma20, &ma60,
		&totalShares, &totalValue, &floatValue,
		&b.QualityScore, &source, &updatedAt,
	)
	if err != nil {
		return models.Bar{}, fmt.Errorf("failed to scan bar: %w", err)
	}
	if b.TradeDate, err = parseDate(tradeDate); err != nil {
		return models.Bar{}, err
	}
	b.Frequency = models.Frequency(freq)
	b.Source = models.Source(source)
	b.UpdatedAt = parseTimestamp(updatedAt)
	b.Unlimited, b.IsST = unlimited != 0, isST != 0
	b.IsLimitUp, b.IsLimitDown = limitUp != 0, limitDown != 0

	b.Open, b.High, b.Low, b.Close = fromNullFloat(open), fromNullFloat(high), fromNullFloat(low), fromNullFloat(closePx)
	b.Volume, b.Amount, b.Price, b.PreClose = fromNullFloat(volume), fromNullFloat(amount), fromNullFloat(price), fromNullFloat(preclose)
	b.HighLimit, b.LowLimit = fromNullFloat(highLimit), fromNullFloat(lowLimit)
	b.PE, b.PB, b.PS, b.TurnoverRate = fromNullFloat(pe), fromNullFloat(pb), fromNullFloat(ps), fromNullFloat(turnover)
	b.ChangeAmount, b.ChangePercent, b.Amplitude = fromNullFloat(change), fromNullFloat(changePct), fromNullFloat(amplitude)
	b.MA5, b.MA10, b.MA20, b.MA60 = fromNullFloat(ma5), fromNullFloat(ma10), fromNullFloat(ma20), fromNullFloat(ma60)
	b.TotalShares, b.TotalValue, b.FloatValue = fromNullFloat(totalShares), fromNullFloat(totalValue), fromNullFloat(floatValue)
	return b, nil
}

// UpsertBars writes bars in one transaction; each key keeps only the last value.
func (s *Store) UpsertBars(ctx context.Context, bars []models.Bar) (int, error) {
	n, err := upsertAll(ctx, s, upsertBarSQL, bars, barArgs)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert bars: %w", err)
	}
	return n, nil
}

func (s *Store) LatestDate(ctx context.Context, symbol string, freq models.Frequency) (time.Time, bool, error) {
	var latest sql.NullString
	err := s.queryRow(ctx, "SELECT MAX(trade_date) FROM bars WHERE symbol = ? AND frequency = ?", symbol, string(freq)).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	d, err := parseDate(latest.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}

func (s *Store) QualityScores(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) (map[string]int, error) {
	rows, err := s.query(ctx,
		"SELECT trade_date, quality_score FROM bars WHERE symbol = ? AND frequency = ? AND trade_date >= ? AND trade_date <= ?",
		symbol, string(freq), models.DateKey(start), models.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query quality scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var date string
		var score int
		if err := rows.Scan(&date, &score); err != nil {
			return nil, fmt.Errorf("failed to scan quality score: %w", err)
		}
		scores[date] = score
	}
	return scores, rows.Err()
}

func (s *Store) GetBars(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]models.Bar, error) {
	rows, err := s.query(ctx,
		"SELECT "+selectBarCols+" FROM bars WHERE symbol = ? AND frequency = ? AND trade_date >= ? AND trade_date <= ? ORDER BY trade_date",
		symbol, string(freq), models.DateKey(start), models.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func (s *Store) TradeDates(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]time.Time, error) {
	rows, err := s.query(ctx,
		"SELECT trade_date FROM bars WHERE symbol = ? AND frequency = ? AND trade_date >= ? AND trade_date <= ? ORDER BY trade_date",
		symbol, string(freq), models.DateKey(start), models.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query trade dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan trade date: %w", err)
		}
		d, err := parseDate(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
