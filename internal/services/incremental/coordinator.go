// Package incremental runs incremental and backfill syncs over many symbols,
// delegating each symbol's range to the processing engine.
package incremental

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/models"
)

// Progress receives one tick per finished symbol.
type Progress interface {
	Add(n int) error
}

// Coordinator implements interfaces.SyncCoordinator
type Coordinator struct {
	engine   interfaces.ProcessingEngine
	storage  interfaces.StorageManager
	gaps     *GapDetector
	config   common.SyncConfig
	logger   *common.Logger
	now      func() time.Time
	progress Progress
	force    bool
}

// NewCoordinator creates a sync coordinator
func NewCoordinator(
	engine interfaces.ProcessingEngine,
	storage interfaces.StorageManager,
	config common.SyncConfig,
	logger *common.Logger,
) *Coordinator {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	var calendar Calendar = WeekdayCalendar{}
	if len(config.Holidays) > 0 {
		if hc, err := NewHolidayCalendar(config.Holidays); err != nil {
			logger.Warn().Err(err).Msg("Ignoring holiday list, using weekday calendar")
		} else {
			calendar = hc
		}
	}
	return &Coordinator{
		engine:  engine,
		storage: storage,
		gaps:    NewGapDetector(storage.BarStore(), calendar, logger),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the coordinator's notion of "now".
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// SetProgress registers a progress sink.
func (c *Coordinator) SetProgress(p Progress) {
	c.progress = p
}

// SetForceUpdate makes syncs reprocess the whole first-sync window and
// overwrite stored bars regardless of quality score.
func (c *Coordinator) SetForceUpdate(force bool) {
	c.force = force
}

// Gaps returns the coordinator's gap detector.
func (c *Coordinator) Gaps() *GapDetector {
	return c.gaps
}

// symbolJob processes one symbol and reports its outcome.
type symbolJob func(ctx context.Context, symbol string) models.SymbolOutcome

// SyncAllSymbols brings every (symbol, frequency) key up to target. Symbols
// default to the active stocks and frequencies to the configured list.
// A failing symbol never stops the others. When ctx is cancelled, symbols
// not yet started are reported as skipped and ctx.Err() is returned with the
// partial result.
func (c *Coordinator) SyncAllSymbols(ctx context.Context, target time.Time, symbols []string, freqs []models.Frequency) (*models.SyncResult, error) {
	symbols, err := c.resolveSymbols(ctx, symbols)
	if err != nil {
		return nil, err
	}
	if len(freqs) == 0 {
		freqs = c.configuredFrequencies()
	}

	today := models.TruncateDay(c.now())
	if target.IsZero() || models.TruncateDay(target).After(today) {
		target = today
	}
	target = models.TruncateDay(target)

	result := c.newResult(target, symbols)
	c.logger.Info().
		Str("run_id", result.RunID).
		Str("target", models.DateKey(target)).
		Int("symbols", len(symbols)).
		Int("frequencies", len(freqs)).
		Bool("force", c.force).
		Msg("Starting incremental sync")

	err = c.run(ctx, result, symbols, func(ctx context.Context, symbol string) models.SymbolOutcome {
		return c.syncSymbol(ctx, symbol, target, freqs)
	})
	c.logSummary(result, "Incremental sync finished")
	return result, err
}

// BackfillGaps reprocesses, with force, every gap detected in [start, end].
func (c *Coordinator) BackfillGaps(ctx context.Context, symbols []string, freq models.Frequency, start, end time.Time) (*models.SyncResult, error) {
	symbols, err := c.resolveSymbols(ctx, symbols)
	if err != nil {
		return nil, err
	}
	if freq == "" {
		freq = models.Freq1d
	}
	today := models.TruncateDay(c.now())
	if end.IsZero() || models.TruncateDay(end).After(today) {
		end = today
	}
	end = models.TruncateDay(end)
	if start.IsZero() {
		start = c.firstSyncStart(end)
	}
	start = models.TruncateDay(start)

	result := c.newResult(end, symbols)
	c.logger.Info().
		Str("run_id", result.RunID).
		Str("start", models.DateKey(start)).
		Str("end", models.DateKey(end)).
		Int("symbols", len(symbols)).
		Msg("Starting gap backfill")

	err = c.run(ctx, result, symbols, func(ctx context.Context, symbol string) models.SymbolOutcome {
		return c.backfillSymbol(ctx, symbol, freq, start, end)
	})
	c.logSummary(result, "Gap backfill finished")
	return result, err
}

func (c *Coordinator) newResult(target time.Time, symbols []string) *models.SyncResult {
	return &models.SyncResult{
		RunID:        uuid.New().String(),
		TargetDate:   target,
		TotalSymbols: len(symbols),
		Symbols:      make(map[string]models.SymbolOutcome, len(symbols)),
		Errors:       make(map[string]string),
		StartedAt:    c.now(),
	}
}

// run fans symbols out over a bounded pool. Workers send one outcome each
// over a channel; a single collector merges them into result.
func (c *Coordinator) run(ctx context.Context, result *models.SyncResult, symbols []string, job symbolJob) error {
	outcomes := make(chan models.SymbolOutcome, len(symbols))
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for o := range outcomes {
			merge(result, o)
			if c.progress != nil {
				_ = c.progress.Add(1)
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(c.config.GetMaxWorkers())

	for _, symbol := range symbols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes <- models.SymbolOutcome{Symbol: symbol, State: models.StateSkipped, Error: "sync canceled"}
				return nil
			}
			// A started symbol runs to completion.
			outcomes <- c.safeRun(context.WithoutCancel(ctx), symbol, job)
			return nil
		})
	}

	_ = g.Wait()
	close(outcomes)
	<-collected

	result.FinishedAt = c.now()
	return ctx.Err()
}

// safeRun executes job with panic recovery, reporting a panic as an internal failure.
func (c *Coordinator) safeRun(ctx context.Context, symbol string, job symbolJob) (out models.SymbolOutcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("symbol", symbol).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in sync worker")
			out = models.SymbolOutcome{
				Symbol:    symbol,
				State:     models.StateFailed,
				Error:     fmt.Sprintf("panic: %v", r),
				ErrorKind: string(common.KindInternal),
			}
		}
	}()
	return job(ctx, symbol)
}

func merge(result *models.SyncResult, o models.SymbolOutcome) {
	result.Symbols[o.Symbol] = o
	switch o.State {
	case models.StateDone:
		result.SuccessCount++
	case models.StateFailed:
		result.FailedCount++
		result.Errors[o.Symbol] = o.Error
	case models.StateSkipped:
		result.SkippedCount++
	}
}

// syncSymbol walks one symbol through PENDING, FETCHING, PROCESSING and
// finally DONE, FAILED or SKIPPED across all requested frequencies.
func (c *Coordinator) syncSymbol(ctx context.Context, symbol string, target time.Time, freqs []models.Frequency) models.SymbolOutcome {
	logger := c.logger.WithSymbol(symbol)
	out := models.SymbolOutcome{Symbol: symbol, State: models.StatePending}
	var failures []string
	skipped := 0

	for _, freq := range freqs {
		start, err := c.syncStart(ctx, symbol, freq, target)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", freq, err))
			out.ErrorKind = string(common.KindOf(err))
			c.saveStatus(ctx, symbol, freq, models.ProcessResult{Error: err.Error()}, models.SyncStatusFailed)
			continue
		}
		if start.After(target) {
			logger.Debug().Str("frequency", string(freq)).Msg("Already up to date")
			skipped++
			c.saveStatus(ctx, symbol, freq, models.ProcessResult{Success: true}, models.SyncStatusSkipped)
			continue
		}

		out.State = models.StateFetching
		res := c.engine.ProcessSymbolData(ctx, interfaces.ProcessRequest{
			Symbol:      symbol,
			Frequency:   freq,
			Start:       start,
			End:         target,
			ForceUpdate: c.force,
		})

		out.State = models.StateProcessing
		out.RowsWritten += res.RowsWritten
		out.RowsInvalid += res.RowsInvalid
		if !res.Success {
			failures = append(failures, fmt.Sprintf("%s: %s", freq, res.Error))
			out.ErrorKind = res.ErrorKind
			c.saveStatus(ctx, symbol, freq, res, models.SyncStatusFailed)
			continue
		}
		c.saveStatus(ctx, symbol, freq, res, models.SyncStatusCompleted)
	}

	return finish(out, failures, skipped == len(freqs))
}

func (c *Coordinator) backfillSymbol(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) models.SymbolOutcome {
	out := models.SymbolOutcome{Symbol: symbol, State: models.StatePending}

	gaps, err := c.gaps.Detect(ctx, symbol, freq, start, end)
	if err != nil {
		out.ErrorKind = string(common.KindOf(err))
		return finish(out, []string{err.Error()}, false)
	}
	if len(gaps) == 0 {
		return finish(out, nil, true)
	}

	var failures []string
	for _, gap := range gaps {
		out.State = models.StateFetching
		res := c.engine.ProcessSymbolData(ctx, interfaces.ProcessRequest{
			Symbol:      symbol,
			Frequency:   freq,
			Start:       gap.Start,
			End:         gap.End,
			ForceUpdate: true,
		})
		out.State = models.StateProcessing
		out.RowsWritten += res.RowsWritten
		out.RowsInvalid += res.RowsInvalid
		if !res.Success {
			failures = append(failures, fmt.Sprintf("%s..%s: %s", models.DateKey(gap.Start), models.DateKey(gap.End), res.Error))
			out.ErrorKind = res.ErrorKind
		}
	}
	return finish(out, failures, false)
}

func finish(out models.SymbolOutcome, failures []string, skipped bool) models.SymbolOutcome {
	switch {
	case len(failures) > 0:
		out.State = models.StateFailed
		out.Error = strings.Join(failures, "; ")
	case skipped:
		out.State = models.StateSkipped
	default:
		out.State = models.StateDone
	}
	return out
}

// syncStart returns the first date needing computation for the key: the day
// after the latest stored bar, or the first-sync window when nothing is
// stored or the run is forced.
func (c *Coordinator) syncStart(ctx context.Context, symbol string, freq models.Frequency, target time.Time) (time.Time, error) {
	if c.force {
		return c.firstSyncStart(target), nil
	}
	latest, ok, err := c.storage.BarStore().LatestDate(ctx, symbol, freq)
	if err != nil {
		return time.Time{}, common.NewInternalError("latest_date", symbol, err)
	}
	if !ok {
		return c.firstSyncStart(target), nil
	}
	return models.TruncateDay(latest).AddDate(0, 0, 1), nil
}

// firstSyncStart is max(default_start_date, target - lookback_days).
func (c *Coordinator) firstSyncStart(target time.Time) time.Time {
	start := target.AddDate(0, 0, -c.config.LookbackDays)
	if floor := c.config.GetDefaultStartDate(); !floor.IsZero() && start.Before(floor) {
		start = floor
	}
	return start
}

// saveStatus records the attempt; bookkeeping failures are logged only.
func (c *Coordinator) saveStatus(ctx context.Context, symbol string, freq models.Frequency, res models.ProcessResult, status string) {
	store := c.storage.SyncStatusStore()
	now := c.now().UTC()

	st := &models.SyncStatus{Symbol: symbol, Frequency: freq}
	if prev, err := store.GetSyncStatus(ctx, symbol, freq); err == nil {
		st = prev
	} else if !common.IsNotFound(err) {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read sync status")
	}

	st.LastSyncDate = models.TruncateDay(now)
	st.Status = status
	st.ErrorMessage = res.Error
	st.TotalRecords += res.RowsWritten
	st.UpdatedAt = now
	if !res.LastDataDate.IsZero() && res.LastDataDate.After(st.LastDataDate) {
		st.LastDataDate = res.LastDataDate
	}

	if err := store.SaveSyncStatus(ctx, st); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Str("frequency", string(freq)).Msg("Failed to save sync status")
	}
}

func (c *Coordinator) resolveSymbols(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		active, err := c.storage.StockStore().ActiveSymbols(ctx)
		if err != nil {
			return nil, common.NewInternalError("active_symbols", "", err)
		}
		symbols = active
	}

	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

func (c *Coordinator) configuredFrequencies() []models.Frequency {
	var freqs []models.Frequency
	for _, s := range c.config.Frequencies {
		if f, ok := models.ParseFrequency(s); ok {
			freqs = append(freqs, f)
		} else {
			c.logger.Warn().Str("frequency", s).Msg("Ignoring unknown sync frequency")
		}
	}
	if len(freqs) == 0 {
		freqs = []models.Frequency{models.Freq1d}
	}
	return freqs
}

func (c *Coordinator) logSummary(result *models.SyncResult, msg string) {
	event := c.logger.Info()
	if result.FailedCount > 0 {
		event = c.logger.Warn()
	}
	event.
		Str("run_id", result.RunID).
		Int("total", result.TotalSymbols).
		Int("succeeded", result.SuccessCount).
		Int("failed", result.FailedCount).
		Int("skipped", result.SkippedCount).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg(msg)
}

// Ensure Coordinator implements SyncCoordinator
var _ interfaces.SyncCoordinator = (*Coordinator)(nil)
