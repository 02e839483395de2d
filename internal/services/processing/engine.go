// Package processing turns raw upstream bars into scored, validated bars and
// persists them.
package processing

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/bobmcallan/simtrade/internal/calc"
	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/models"
	"github.com/bobmcallan/simtrade/internal/validate"
)

// Engine implements interfaces.ProcessingEngine
type Engine struct {
	source    interfaces.RawDataSource
	storage   interfaces.StorageManager
	validator *validate.Validator
	config    common.ProcessingConfig
	logger    *common.Logger
	now       func() time.Time
}

// NewEngine creates a processing engine
func NewEngine(
	source interfaces.RawDataSource,
	storage interfaces.StorageManager,
	config common.ProcessingConfig,
	logger *common.Logger,
) *Engine {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Engine{
		source:    source,
		storage:   storage,
		validator: validate.New(),
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessSymbolData fetches, enriches, validates, scores and writes one
// symbol's bars for [req.Start, req.End]. Unless req.ForceUpdate is set, bars
// whose stored quality score is equal or higher are left untouched.
//
// The result is unsuccessful when the fetch fails, when every fetched bar is
// rejected, or when the write fails. No upstream data is an empty success.
func (e *Engine) ProcessSymbolData(ctx context.Context, req interfaces.ProcessRequest) (result models.ProcessResult) {
	result = models.ProcessResult{Symbol: req.Symbol, Frequency: req.Frequency}
	logger := e.logger.WithSymbol(req.Symbol)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic while processing symbol")
			fail(&result, common.Errorf(common.KindInternal, "process_symbol", req.Symbol, "panic: %v", r))
		}
	}()

	if req.Frequency == "" {
		req.Frequency = models.Freq1d
		result.Frequency = req.Frequency
	}

	raw, err := e.source.FetchBars(ctx, req.Symbol, req.Start, req.End, req.Frequency)
	if err != nil {
		if common.IsNotFound(err) {
			logger.Info().Str("frequency", string(req.Frequency)).Msg("No upstream data for range")
			result.Success = true
			return result
		}
		logger.Error().Err(err).Str("frequency", string(req.Frequency)).Msg("Failed to fetch bars")
		fail(&result, err)
		return result
	}
	result.RowsFetched = len(raw)
	if len(raw) == 0 {
		logger.Info().Str("frequency", string(req.Frequency)).Msg("No bars returned for range")
		result.Success = true
		return result
	}

	bars := e.enrich(ctx, req, raw)

	valid := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		accepted, err := e.validator.Validate(b)
		if err != nil {
			result.RowsInvalid++
			var dq *validate.DataQualityError
			if errors.As(err, &dq) {
				logger.Warn().
					Str("date", models.DateKey(b.TradeDate)).
					Str("kind", string(dq.Kind)).
					Str("field", dq.Field).
					Msg("Bar rejected")
			}
			continue
		}
		valid = append(valid, accepted)
	}
	if len(valid) == 0 {
		fail(&result, common.Errorf(common.KindValidation, "process_symbol", req.Symbol, "all %d bars failed validation", len(bars)))
		logger.Warn().Int("rows", len(bars)).Msg("Every bar failed validation")
		return result
	}

	now := e.now().UTC()
	for i := range valid {
		valid[i].QualityScore = qualityScore(&valid[i], e.config.BaseQualityScore)
		valid[i].Source = barSource(&valid[i])
		valid[i].UpdatedAt = now
	}
	result.LastDataDate = valid[len(valid)-1].TradeDate

	toWrite := valid
	if !req.ForceUpdate {
		toWrite, err = e.dropUnchanged(ctx, req, valid)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read stored quality scores")
			fail(&result, common.NewInternalError("quality_scores", req.Symbol, err))
			return result
		}
		result.RowsUnchanged = len(valid) - len(toWrite)
	}

	if len(toWrite) > 0 {
		written, err := e.storage.BarStore().UpsertBars(ctx, toWrite)
		if err != nil {
			logger.Error().Err(err).Int("rows", len(toWrite)).Msg("Failed to write bars")
			fail(&result, common.NewInternalError("upsert_bars", req.Symbol, err))
			return result
		}
		result.RowsWritten = written
	}

	result.Success = true
	logger.Info().
		Str("frequency", string(req.Frequency)).
		Str("start", models.DateKey(req.Start)).
		Str("end", models.DateKey(req.End)).
		Int("fetched", result.RowsFetched).
		Int("written", result.RowsWritten).
		Int("invalid", result.RowsInvalid).
		Int("unchanged", result.RowsUnchanged).
		Msg("Symbol processed")
	return result
}

// enrich orders the raw bars and applies the derived-field, moving-average
// and market-cap calculators. Stored bars just before the window seed the
// first bars' predecessor close and moving averages; only the fetched bars
// are returned.
func (e *Engine) enrich(ctx context.Context, req interfaces.ProcessRequest, raw []models.Bar) []models.Bar {
	bars := make([]models.Bar, len(raw))
	copy(bars, raw)
	for i := range bars {
		if bars[i].Symbol == "" {
			bars[i].Symbol = req.Symbol
		}
		if bars[i].Frequency == "" {
			bars[i].Frequency = req.Frequency
		}
		if bars[i].Market == "" {
			bars[i].Market = models.InferMarket(bars[i].Symbol)
		}
	}
	sort.SliceStable(bars, func(i, j int) bool {
		if !bars[i].TradeDate.Equal(bars[j].TradeDate) {
			return bars[i].TradeDate.Before(bars[j].TradeDate)
		}
		return bars[i].TradeTime < bars[j].TradeTime
	})

	hist := e.history(ctx, req, bars[0].TradeDate)
	window := make([]models.Bar, 0, len(hist)+len(bars))
	window = append(window, hist...)
	window = append(window, bars...)

	window = calc.ApplyDerived(window)
	if e.config.EnableIndicators {
		window = calc.MovingAverages(window, e.maPeriods())
	}
	bars = window[len(hist):]

	if e.config.EnableValuations {
		fundamentals := e.fundamentals(ctx, req.Symbol)
		series := calc.CalculateMarketCap(models.ValuationFromBars(bars), fundamentals, req.Symbol, e.logger)
		for i := range bars {
			bars[i].TotalShares = series.TotalShares[i]
			bars[i].TotalValue = series.TotalValue[i]
			bars[i].FloatValue = series.FloatValue[i]
		}
	}
	return bars
}

func (e *Engine) maPeriods() []int {
	if len(e.config.MAPeriods) == 0 {
		return calc.DefaultMAPeriods
	}
	return e.config.MAPeriods
}

// history returns the stored bars immediately before first, enough to seed
// the longest moving average. A read failure degrades to no history.
func (e *Engine) history(ctx context.Context, req interfaces.ProcessRequest, first time.Time) []models.Bar {
	need := 1
	if e.config.EnableIndicators {
		for _, p := range e.maPeriods() {
			if p-1 > need {
				need = p - 1
			}
		}
	}

	end := models.TruncateDay(first).AddDate(0, 0, -1)
	if s := models.TruncateDay(req.Start).AddDate(0, 0, -1); s.Before(end) {
		end = s
	}
	start := end.AddDate(0, 0, -historyDays(req.Frequency, need))

	stored, err := e.storage.BarStore().GetBars(ctx, req.Symbol, req.Frequency, start, end)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to load stored history, deriving from window only")
		return nil
	}
	if len(stored) > need {
		stored = stored[len(stored)-need:]
	}
	return stored
}

// historyDays is the calendar span that holds n bars of freq, with slack for
// holidays and suspensions.
func historyDays(freq models.Frequency, n int) int {
	switch freq {
	case models.Freq1w:
		return n*7 + 14
	case models.Freq1M:
		return n*31 + 31
	}
	return n*2 + 14
}

// fundamentals fetches and stores the latest filings. When the fetch fails the
// stored filings are used instead; neither failure fails the symbol.
func (e *Engine) fundamentals(ctx context.Context, symbol string) []models.FundamentalRecord {
	store := e.storage.FundamentalStore()

	records, err := e.source.FetchFundamentals(ctx, symbol)
	if err == nil && len(records) > 0 {
		if _, err := store.UpsertFundamentals(ctx, records); err != nil {
			e.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store fundamentals")
		}
		return records
	}
	if err != nil && !common.IsNotFound(err) {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("Fundamentals fetch failed, using stored filings")
	}

	stored, err := store.GetFundamentals(ctx, symbol)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to load stored fundamentals")
		return nil
	}
	return stored
}

// dropUnchanged removes bars whose stored score is at least the new score.
func (e *Engine) dropUnchanged(ctx context.Context, req interfaces.ProcessRequest, bars []models.Bar) ([]models.Bar, error) {
	start, end := bars[0].TradeDate, bars[len(bars)-1].TradeDate
	existing, err := e.storage.BarStore().QualityScores(ctx, req.Symbol, req.Frequency, start, end)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return bars, nil
	}

	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if score, ok := existing[models.DateKey(b.TradeDate)]; ok && score >= b.QualityScore {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func fail(result *models.ProcessResult, err error) {
	result.Success = false
	result.Error = err.Error()
	result.ErrorKind = string(common.KindOf(err))
}

// Ensure Engine implements ProcessingEngine
var _ interfaces.ProcessingEngine = (*Engine)(nil)
