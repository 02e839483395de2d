// Package calc holds the pure calculators applied to a symbol's bars before
// they are persisted. Calculators never return errors; inputs they cannot use
// produce models.Missing outputs.
package calc

import (
	"fmt"
	"math"
	"runtime/debug"
	"sort"
	"time"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/models"
)

// ShareUnit converts share counts reported in 100 million shares to shares.
const ShareUnit = 1e8

type sharePoint struct {
	date  time.Time
	total float64
	float float64
}

// CalculateMarketCap fills TotalShares, TotalValue and FloatValue on a copy of
// series by forward-filling the latest quarterly share count onto each date.
// The input series is not modified.
func CalculateMarketCap(series models.ValuationSeries, fundamentals []models.FundamentalRecord, symbol string, logger *common.Logger) (out models.ValuationSeries) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	out = series.Clone()
	n := out.Len()
	if n == 0 {
		return out
	}
	resetMarketCap(&out)

	defer func() {
		if r := recover(); r != nil {
			resetMarketCap(&out)
			logger.Error().
				Str("symbol", symbol).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Market cap calculation failed, values reset to missing")
		}
	}()

	if out.Close == nil {
		logger.Warn().Str("symbol", symbol).Msg("Valuation series has no close price, market cap unavailable")
		return out
	}
	if len(fundamentals) == 0 || !anyPresent(fundamentals, func(f models.FundamentalRecord) float64 { return f.TotalShares }) {
		logger.Warn().Str("symbol", symbol).Int("records", len(fundamentals)).Msg("No total share data, market cap unavailable")
		return out
	}

	useTotalAsFloat := !anyPresent(fundamentals, func(f models.FundamentalRecord) float64 { return f.FloatShares })
	if useTotalAsFloat {
		logger.Warn().Str("symbol", symbol).Msg("No float share data, using total shares as float shares")
	}

	points := sharePoints(fundamentals, useTotalAsFloat)

	for i := 0; i < n; i++ {
		p, ok := lastAtOrBefore(points, models.TruncateDay(out.Dates[i]))
		if !ok {
			continue
		}
		px := out.Close[i]
		out.TotalShares[i] = p.total
		out.TotalValue[i] = px * p.total * ShareUnit
		out.FloatValue[i] = px * p.float * ShareUnit
	}

	logger.Info().
		Str("symbol", symbol).
		Int("rows", n).
		Int("missing_total_value", countMissing(out.TotalValue)).
		Int("missing_float_value", countMissing(out.FloatValue)).
		Msg("Market cap calculated")

	return out
}

// sharePoints keeps records with both share counts present, sorted by date.
// A later record for the same date replaces an earlier one.
func sharePoints(fundamentals []models.FundamentalRecord, useTotalAsFloat bool) []sharePoint {
	byDate := make(map[time.Time]sharePoint, len(fundamentals))
	for _, f := range fundamentals {
		total := coerce(f.TotalShares)
		float := coerce(f.FloatShares)
		if useTotalAsFloat {
			float = total
		}
		if models.IsMissing(total) || models.IsMissing(float) {
			continue
		}
		d := models.TruncateDay(f.ReportDate)
		byDate[d] = sharePoint{date: d, total: total, float: float}
	}

	points := make([]sharePoint, 0, len(byDate))
	for _, p := range byDate {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })
	return points
}

// lastAtOrBefore returns the newest point dated on or before d.
func lastAtOrBefore(points []sharePoint, d time.Time) (sharePoint, bool) {
	i := sort.Search(len(points), func(i int) bool { return points[i].date.After(d) })
	if i == 0 {
		return sharePoint{}, false
	}
	return points[i-1], true
}

// coerce maps non-finite share counts to missing.
func coerce(v float64) float64 {
	if math.IsInf(v, 0) {
		return models.Missing
	}
	return v
}

func anyPresent(records []models.FundamentalRecord, field func(models.FundamentalRecord) float64) bool {
	for _, r := range records {
		if !models.IsMissing(coerce(field(r))) {
			return true
		}
	}
	return false
}

func resetMarketCap(v *models.ValuationSeries) {
	n := v.Len()
	v.TotalShares = missingSlice(n)
	v.TotalValue = missingSlice(n)
	v.FloatValue = missingSlice(n)
}

func missingSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = models.Missing
	}
	return s
}

func countMissing(vals []float64) int {
	c := 0
	for _, v := range vals {
		if models.IsMissing(v) {
			c++
		}
	}
	return c
}
