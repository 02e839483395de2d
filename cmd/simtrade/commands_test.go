package main

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/models"
	"github.com/bobmcallan/simtrade/internal/services/incremental"
	"github.com/bobmcallan/simtrade/internal/services/processing"
	tcommon "github.com/bobmcallan/simtrade/tests/common"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, splitList(" A, ,B ,"))
	assert.Nil(t, splitList(""))
}

func TestParseFrequencies(t *testing.T) {
	freqs, err := parseFrequencies("1d,1w")
	require.NoError(t, err)
	assert.Equal(t, []models.Frequency{models.Freq1d, models.Freq1w}, freqs)

	_, err = parseFrequencies("1d,2h")
	assert.Error(t, err)

	freqs, err = parseFrequencies("1M")
	require.NoError(t, err)
	assert.Equal(t, []models.Frequency{models.Freq1M}, freqs)

	_, err = parseFrequencies("1m")
	assert.Error(t, err, "monthly is 1M")

	_, err = parseFrequencies("15m")
	assert.Error(t, err, "15m is not available upstream")

	freqs, err = parseFrequencies("")
	require.NoError(t, err)
	assert.Empty(t, freqs)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseDate("03/01/2024")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestPrintSyncResult(t *testing.T) {
	r := &models.SyncResult{
		RunID:        "run-1",
		TotalSymbols: 2,
		SuccessCount: 1,
		FailedCount:  1,
		Symbols: map[string]models.SymbolOutcome{
			"B": {Symbol: "B", State: models.StateFailed, Error: "external_service: timeout"},
			"A": {Symbol: "A", State: models.StateDone, RowsWritten: 3},
		},
	}

	var buf bytes.Buffer
	printSyncResult(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "DONE")
	assert.Contains(t, out, "external_service: timeout")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(" A ")), bytes.Index(buf.Bytes(), []byte(" B ")))
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.Equal(t, 2, run([]string{"frobnicate"}))
	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 0, run([]string{"version"}))
}

type countingProgress struct {
	mu sync.Mutex
	n  int
}

func (p *countingProgress) Add(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n += n
	return nil
}

func TestSyncAndBackfill_SeparateProgress(t *testing.T) {
	// 2024-01-10 is a Wednesday.
	today := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	cfg := common.NewDefaultConfig()
	cfg.Sync.BackfillGaps = true

	source := tcommon.NewMockDataSource()
	source.SetBars("A", tcommon.DailyBars("A", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10, 11, 12))
	store := tcommon.NewMemoryStorage()
	engine := processing.NewEngine(source, store, cfg.Processing, common.NewSilentLogger())
	coord := incremental.NewCoordinator(engine, store, cfg.Sync, common.NewSilentLogger())
	coord.SetClock(func() time.Time { return today })

	sinks := map[string]*countingProgress{}
	newProgress := func(total int, desc string) incremental.Progress {
		p := &countingProgress{}
		sinks[desc] = p
		return p
	}

	symbols := []string{"A", "B"}
	result, backfill, err := syncAndBackfill(context.Background(), coord, cfg.Sync, today, symbols, nil, newProgress)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, backfill)

	require.Contains(t, sinks, "sync")
	require.Contains(t, sinks, "backfill")
	assert.Equal(t, len(symbols), sinks["sync"].n, "backfill does not tick the sync bar")
	assert.Equal(t, len(symbols), sinks["backfill"].n)
}

func TestSyncAndBackfill_BackfillDisabled(t *testing.T) {
	today := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	cfg := common.NewDefaultConfig()

	store := tcommon.NewMemoryStorage()
	engine := processing.NewEngine(tcommon.NewMockDataSource(), store, cfg.Processing, common.NewSilentLogger())
	coord := incremental.NewCoordinator(engine, store, cfg.Sync, common.NewSilentLogger())
	coord.SetClock(func() time.Time { return today })

	var descs []string
	_, backfill, err := syncAndBackfill(context.Background(), coord, cfg.Sync, today, []string{"A"}, nil,
		func(total int, desc string) incremental.Progress {
			descs = append(descs, desc)
			return &countingProgress{}
		})
	require.NoError(t, err)
	assert.Nil(t, backfill)
	assert.Equal(t, []string{"sync"}, descs)
}
