package incremental

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/simtrade/internal/models"
	tcommon "github.com/bobmcallan/simtrade/tests/common"
)

func TestTradingDays_SkipsWeekends(t *testing.T) {
	days := TradingDays(WeekdayCalendar{}, date("2024-01-05"), date("2024-01-09"))

	require.Len(t, days, 3)
	assert.Equal(t, "2024-01-05", models.DateKey(days[0]))
	assert.Equal(t, "2024-01-08", models.DateKey(days[1]))
	assert.Equal(t, "2024-01-09", models.DateKey(days[2]))
}

func TestDetect_MergesConsecutiveMissingDays(t *testing.T) {
	store := tcommon.NewMemoryStorage()
	// Stored Jan 2 and Jan 10; Jan 3-9 missing (5 trading days, 7 calendar days).
	bars := append(tcommon.DailyBars("A", date("2024-01-02"), 1), tcommon.DailyBars("A", date("2024-01-10"), 1)...)
	_, err := store.BarStore().UpsertBars(context.Background(), bars)
	require.NoError(t, err)

	gaps, err := NewGapDetector(store.BarStore(), nil, nil).Detect(context.Background(), "A", models.Freq1d, date("2024-01-02"), date("2024-01-10"))
	require.NoError(t, err)

	require.Len(t, gaps, 1)
	g := gaps[0]
	assert.Equal(t, "2024-01-03", models.DateKey(g.Start))
	assert.Equal(t, "2024-01-09", models.DateKey(g.End))
	assert.Equal(t, 5, g.TradingDays)
	assert.Equal(t, 7, g.CalendarDays)
	assert.Equal(t, models.SeverityHigh, g.Severity)
}

func TestDetect_WeekendIsNotAGap(t *testing.T) {
	store := tcommon.NewMemoryStorage()
	_, err := store.BarStore().UpsertBars(context.Background(), tcommon.DailyBars("A", date("2024-01-05"), 1, 2))
	require.NoError(t, err)

	gaps, err := NewGapDetector(store.BarStore(), nil, nil).Detect(context.Background(), "A", models.Freq1d, date("2024-01-05"), date("2024-01-08"))
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestDetect_NoStoredData(t *testing.T) {
	store := tcommon.NewMemoryStorage()

	gaps, err := NewGapDetector(store.BarStore(), nil, nil).Detect(context.Background(), "A", models.Freq1d, date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)
	assert.Empty(t, gaps, "a never-synced symbol has nothing to backfill")
}

func TestDetect_IgnoresDaysBeforeFirstListing(t *testing.T) {
	store := tcommon.NewMemoryStorage()
	// First stored bar is Wed Jan 10; Jan 12 is missing.
	bars := append(tcommon.DailyBars("A", date("2024-01-10"), 1, 2), tcommon.DailyBars("A", date("2024-01-15"), 3)...)
	_, err := store.BarStore().UpsertBars(context.Background(), bars)
	require.NoError(t, err)

	gaps, err := NewGapDetector(store.BarStore(), nil, nil).Detect(context.Background(), "A", models.Freq1d, date("2024-01-02"), date("2024-01-15"))
	require.NoError(t, err)

	require.Len(t, gaps, 1)
	assert.Equal(t, "2024-01-12", models.DateKey(gaps[0].Start))
	assert.Equal(t, "2024-01-12", models.DateKey(gaps[0].End))
}

func TestDetect_HistoryBeforeWindowKeepsLeadingGap(t *testing.T) {
	store := tcommon.NewMemoryStorage()
	bars := append(tcommon.DailyBars("A", date("2023-12-29"), 1), tcommon.DailyBars("A", date("2024-01-05"), 2)...)
	_, err := store.BarStore().UpsertBars(context.Background(), bars)
	require.NoError(t, err)

	gaps, err := NewGapDetector(store.BarStore(), nil, nil).Detect(context.Background(), "A", models.Freq1d, date("2024-01-02"), date("2024-01-05"))
	require.NoError(t, err)

	require.Len(t, gaps, 1)
	assert.Equal(t, "2024-01-02", models.DateKey(gaps[0].Start))
	assert.Equal(t, "2024-01-04", models.DateKey(gaps[0].End))
	assert.Equal(t, 3, gaps[0].TradingDays)
}

func TestDetect_HolidayCalendar(t *testing.T) {
	store := tcommon.NewMemoryStorage()
	// Stored Fri Dec 29 and Tue Jan 2; Mon Jan 1 is a holiday.
	bars := append(tcommon.DailyBars("A", date("2023-12-29"), 1), tcommon.DailyBars("A", date("2024-01-02"), 2)...)
	_, err := store.BarStore().UpsertBars(context.Background(), bars)
	require.NoError(t, err)

	weekday, err := NewGapDetector(store.BarStore(), nil, nil).Detect(context.Background(), "A", models.Freq1d, date("2023-12-29"), date("2024-01-02"))
	require.NoError(t, err)
	require.Len(t, weekday, 1, "weekday calendar reports the holiday")

	cal, err := NewHolidayCalendar([]string{"2024-01-01"})
	require.NoError(t, err)
	gaps, err := NewGapDetector(store.BarStore(), cal, nil).Detect(context.Background(), "A", models.Freq1d, date("2023-12-29"), date("2024-01-02"))
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestNewHolidayCalendar_RejectsBadDate(t *testing.T) {
	_, err := NewHolidayCalendar([]string{"2024/01/01"})
	assert.Error(t, err)
}

func TestGapSeverity(t *testing.T) {
	tests := map[int]string{
		1:  models.SeverityLow,
		2:  models.SeverityMedium,
		3:  models.SeverityMedium,
		7:  models.SeverityHigh,
		8:  models.SeverityCritical,
		30: models.SeverityCritical,
	}
	for days, want := range tests {
		assert.Equal(t, want, models.GapSeverity(days), "days=%d", days)
	}
}
