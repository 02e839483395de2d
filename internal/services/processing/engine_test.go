package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/models"
	tcommon "github.com/bobmcallan/simtrade/tests/common"
)

var jan2 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *tcommon.MockDataSource, *tcommon.MemoryStorage) {
	t.Helper()
	source := tcommon.NewMockDataSource()
	store := tcommon.NewMemoryStorage()
	cfg := common.NewDefaultConfig().Processing
	return NewEngine(source, store, cfg, common.NewSilentLogger()), source, store
}

func request(symbol string, force bool) interfaces.ProcessRequest {
	return interfaces.ProcessRequest{
		Symbol:      symbol,
		Frequency:   models.Freq1d,
		Start:       jan2,
		End:         jan2.AddDate(0, 0, 30),
		ForceUpdate: force,
	}
}

func shares(symbol string, date time.Time, total float64) models.FundamentalRecord {
	r := models.NewFundamentalRecord(symbol, date)
	r.TotalShares = total
	return r
}

func TestProcessSymbolData_WritesEnrichedBars(t *testing.T) {
	engine, source, store := newTestEngine(t)
	source.SetBars("600000.SS", tcommon.DailyBars("600000.SS", jan2, 10, 10.5, 10.8))
	source.Fundamentals["600000.SS"] = []models.FundamentalRecord{shares("600000.SS", jan2.AddDate(0, -3, 0), 290)}

	res := engine.ProcessSymbolData(context.Background(), request("600000.SS", false))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.RowsFetched)
	assert.Equal(t, 3, res.RowsWritten)
	assert.Zero(t, res.RowsInvalid)
	assert.Equal(t, "2024-01-04", models.DateKey(res.LastDataDate))

	first, ok := store.Bar("600000.SS", "2024-01-02", models.Freq1d)
	require.True(t, ok)
	assert.True(t, models.IsMissing(first.ChangePercent), "first bar has no predecessor")
	assert.Equal(t, models.SourceProcessedEnhanced, first.Source, "market cap counts as enrichment")

	third, ok := store.Bar("600000.SS", "2024-01-04", models.Freq1d)
	require.True(t, ok)
	assert.InDelta(t, 2.857, third.ChangePercent, 0.001)
	assert.Equal(t, 11.55, third.HighLimit)
	assert.InDelta(t, 10.8*290*1e8, third.TotalValue, 1)
	assert.Equal(t, models.SourceProcessedEnhanced, third.Source)
	// base + change + limits + market cap; too few bars for MA5
	assert.Equal(t, 90, third.QualityScore)
	assert.False(t, third.UpdatedAt.IsZero())

	stored, err := store.FundamentalStore().GetFundamentals(context.Background(), "600000.SS")
	require.NoError(t, err)
	assert.Len(t, stored, 1, "fetched fundamentals are persisted")
}

func TestProcessSymbolData_BaselineOnly(t *testing.T) {
	engine, source, store := newTestEngine(t)
	engine.config.EnableValuations = false
	source.SetBars("AAPL.US", tcommon.DailyBars("AAPL.US", jan2, 180))

	res := engine.ProcessSymbolData(context.Background(), request("AAPL.US", false))
	require.True(t, res.Success)

	b, ok := store.Bar("AAPL.US", "2024-01-02", models.Freq1d)
	require.True(t, ok)
	assert.Equal(t, models.SourceProcessed, b.Source)
	assert.Equal(t, 60, b.QualityScore)
}

func TestProcessSymbolData_SkipsInvalidRows(t *testing.T) {
	engine, source, store := newTestEngine(t)
	bars := tcommon.DailyBars("000001.SZ", jan2, 10, 10.2, 10.4)
	bars[1].Close = -1
	bars[2].Volume = -5
	source.SetBars("000001.SZ", bars)

	res := engine.ProcessSymbolData(context.Background(), request("000001.SZ", false))

	require.True(t, res.Success, "partial validation failures still succeed")
	assert.Equal(t, 2, res.RowsInvalid)
	assert.Equal(t, 1, res.RowsWritten)
	assert.Equal(t, 1, store.BarCount())
}

func TestProcessSymbolData_AllInvalid(t *testing.T) {
	engine, source, store := newTestEngine(t)
	bars := tcommon.DailyBars("000001.SZ", jan2, 10, 11)
	bars[0].Close = 0
	bars[1].Close = models.Missing
	source.SetBars("000001.SZ", bars)

	res := engine.ProcessSymbolData(context.Background(), request("000001.SZ", false))

	assert.False(t, res.Success)
	assert.Equal(t, string(common.KindValidation), res.ErrorKind)
	assert.Equal(t, 2, res.RowsInvalid)
	assert.Zero(t, store.UpsertCalls)
}

func TestProcessSymbolData_FetchFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		success  bool
		wantKind common.ErrorKind
	}{
		{"external service", common.NewExternalServiceError("fetch_bars", "X", errors.New("timeout")), false, common.KindExternalService},
		{"not found is empty", common.NewNotFoundError("fetch_bars", "X", nil), true, ""},
		{"unclassified", errors.New("boom"), false, common.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, source, _ := newTestEngine(t)
			source.SetBarError("X", tt.err)

			res := engine.ProcessSymbolData(context.Background(), request("X", false))

			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, string(tt.wantKind), res.ErrorKind)
			assert.Zero(t, res.RowsWritten)
		})
	}
}

func TestProcessSymbolData_EmptyFetch(t *testing.T) {
	engine, _, store := newTestEngine(t)

	res := engine.ProcessSymbolData(context.Background(), request("EMPTY.US", false))

	assert.True(t, res.Success)
	assert.Zero(t, res.RowsFetched)
	assert.Zero(t, store.UpsertCalls)
}

func TestProcessSymbolData_WriteFailureIsInternal(t *testing.T) {
	engine, source, store := newTestEngine(t)
	source.SetBars("AAPL.US", tcommon.DailyBars("AAPL.US", jan2, 180, 181))
	store.UpsertErr = errors.New("disk full")

	res := engine.ProcessSymbolData(context.Background(), request("AAPL.US", false))

	assert.False(t, res.Success)
	assert.Equal(t, string(common.KindInternal), res.ErrorKind)
	assert.Contains(t, res.Error, "disk full")
}

func TestProcessSymbolData_SkipsEqualOrHigherScores(t *testing.T) {
	engine, source, store := newTestEngine(t)
	source.SetBars("AAPL.US", tcommon.DailyBars("AAPL.US", jan2, 180, 181, 182))

	first := engine.ProcessSymbolData(context.Background(), request("AAPL.US", false))
	require.True(t, first.Success)
	require.Equal(t, 3, first.RowsWritten)

	second := engine.ProcessSymbolData(context.Background(), request("AAPL.US", false))
	require.True(t, second.Success)
	assert.Zero(t, second.RowsWritten)
	assert.Equal(t, 3, second.RowsUnchanged)
	assert.Equal(t, 1, store.UpsertCalls, "nothing to write on the rerun")

	forced := engine.ProcessSymbolData(context.Background(), request("AAPL.US", true))
	require.True(t, forced.Success)
	assert.Equal(t, 3, forced.RowsWritten)
	assert.Zero(t, forced.RowsUnchanged)
}

func TestProcessSymbolData_UpgradesLowerScores(t *testing.T) {
	engine, source, store := newTestEngine(t)
	source.SetBars("AAPL.US", tcommon.DailyBars("AAPL.US", jan2, 180, 181))

	engine.config.EnableValuations = false
	require.True(t, engine.ProcessSymbolData(context.Background(), request("AAPL.US", false)).Success)
	before, _ := store.Bar("AAPL.US", "2024-01-03", models.Freq1d)

	engine.config.EnableValuations = true
	source.Fundamentals["AAPL.US"] = []models.FundamentalRecord{shares("AAPL.US", jan2.AddDate(0, -1, 0), 155)}
	res := engine.ProcessSymbolData(context.Background(), request("AAPL.US", false))
	require.True(t, res.Success)
	assert.Equal(t, 2, res.RowsWritten)

	after, _ := store.Bar("AAPL.US", "2024-01-03", models.Freq1d)
	assert.Greater(t, after.QualityScore, before.QualityScore)
}

func TestProcessSymbolData_FundamentalsFallBackToStore(t *testing.T) {
	engine, source, store := newTestEngine(t)
	_, err := store.FundamentalStore().UpsertFundamentals(context.Background(),
		[]models.FundamentalRecord{shares("AAPL.US", jan2.AddDate(0, -1, 0), 155)})
	require.NoError(t, err)
	source.SetBars("AAPL.US", tcommon.DailyBars("AAPL.US", jan2, 180))
	source.FundErrors["AAPL.US"] = common.NewExternalServiceError("fetch_fundamentals", "AAPL.US", errors.New("503"))

	res := engine.ProcessSymbolData(context.Background(), request("AAPL.US", false))
	require.True(t, res.Success, "fundamentals failure never fails the symbol")

	b, _ := store.Bar("AAPL.US", "2024-01-02", models.Freq1d)
	assert.InDelta(t, 180*155*1e8, b.TotalValue, 1)
}

func TestProcessSymbolData_MovingAverages(t *testing.T) {
	engine, source, store := newTestEngine(t)
	source.SetBars("AAPL.US", tcommon.DailyBars("AAPL.US", jan2, 1, 2, 3, 4, 5, 6))

	require.True(t, engine.ProcessSymbolData(context.Background(), request("AAPL.US", false)).Success)

	fourth, _ := store.Bar("AAPL.US", "2024-01-05", models.Freq1d)
	assert.True(t, models.IsMissing(fourth.MA5))
	last, _ := store.Bar("AAPL.US", "2024-01-09", models.Freq1d)
	assert.Equal(t, 4.0, last.MA5)
	assert.True(t, models.IsMissing(last.MA10))
}

func TestProcessSymbolData_SeedsFromStoredHistory(t *testing.T) {
	engine, source, store := newTestEngine(t)
	engine.config.EnableValuations = false
	history := tcommon.DailyBars("000001.SZ", jan2, 10, 10, 10, 10, 10)
	_, err := store.BarStore().UpsertBars(context.Background(), history)
	require.NoError(t, err)

	// 2024-01-09 follows the five stored weekdays.
	next := jan2.AddDate(0, 0, 7)
	source.SetBars("000001.SZ", tcommon.DailyBars("000001.SZ", next, 11))
	req := request("000001.SZ", false)
	req.Start, req.End = next, next

	res := engine.ProcessSymbolData(context.Background(), req)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.RowsWritten, "history bars are not rewritten")

	b, ok := store.Bar("000001.SZ", "2024-01-09", models.Freq1d)
	require.True(t, ok)
	assert.Equal(t, 10.0, b.PreClose)
	assert.Equal(t, 10.0, b.ChangePercent)
	assert.Equal(t, 11.0, b.HighLimit)
	assert.True(t, b.IsLimitUp)
	assert.InDelta(t, 10.2, b.MA5, 0.001)

	first, _ := store.Bar("000001.SZ", "2024-01-02", models.Freq1d)
	assert.Zero(t, first.QualityScore, "stored history is left as it was")
}

type panicSource struct{ tcommon.MockDataSource }

func (p *panicSource) FetchBars(ctx context.Context, symbol string, start, end time.Time, freq models.Frequency) ([]models.Bar, error) {
	panic("upstream decoder bug")
}

func TestProcessSymbolData_RecoversPanic(t *testing.T) {
	engine := NewEngine(&panicSource{}, tcommon.NewMemoryStorage(), common.NewDefaultConfig().Processing, common.NewSilentLogger())

	res := engine.ProcessSymbolData(context.Background(), request("AAPL.US", false))

	assert.False(t, res.Success)
	assert.Equal(t, string(common.KindInternal), res.ErrorKind)
	assert.Contains(t, res.Error, "upstream decoder bug")
}
