package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/models"
)

func testSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "simtrade.db"), common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testBar(symbol string, date time.Time, close float64, score int) models.Bar {
	b := models.NewBar(symbol, date, models.DefaultBarDefaults())
	b.Open, b.High, b.Low, b.Close, b.Volume = close, close+1, close-1, close, 1000
	b.QualityScore = score
	b.Source = models.SourceProcessed
	return b
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT * FROM bars WHERE symbol = ? AND frequency = ?"
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, "SELECT * FROM bars WHERE symbol = $1 AND frequency = $2", postgresDialect.rebind(q))
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL("t", []string{"a", "b", "c"}, []string{"a"})
	assert.Equal(t, "INSERT INTO t (a, b, c) VALUES (?, ?, ?) ON CONFLICT (a) DO UPDATE SET b = excluded.b, c = excluded.c", got)
}

func runBarStoreSuite(t *testing.T, s *Store) {
	ctx := context.Background()

	t.Run("upsert keeps one row per key", func(t *testing.T) {
		first := testBar("A.SZ", day(2024, 1, 2), 10, 60)
		second := testBar("A.SZ", day(2024, 1, 2), 11, 80)

		n, err := s.UpsertBars(ctx, []models.Bar{first})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = s.UpsertBars(ctx, []models.Bar{second})
		require.NoError(t, err)

		bars, err := s.GetBars(ctx, "A.SZ", models.Freq1d, day(2024, 1, 1), day(2024, 1, 31))
		require.NoError(t, err)
		require.Len(t, bars, 1)
		assert.Equal(t, 11.0, bars[0].Close)
		assert.Equal(t, 80, bars[0].QualityScore)
	})

	t.Run("frequency is part of the key", func(t *testing.T) {
		weekly := testBar("A.SZ", day(2024, 1, 2), 12, 60)
		weekly.Frequency = models.Freq1w
		_, err := s.UpsertBars(ctx, []models.Bar{weekly})
		require.NoError(t, err)

		daily, err := s.GetBars(ctx, "A.SZ", models.Freq1d, day(2024, 1, 1), day(2024, 1, 31))
		require.NoError(t, err)
		assert.Len(t, daily, 1)
	})

	t.Run("missing values round trip as missing", func(t *testing.T) {
		b := testBar("B.SZ", day(2024, 1, 3), 5, 60)
		b.IsLimitUp = true
		b.ChangePercent = 1.25
		_, err := s.UpsertBars(ctx, []models.Bar{b})
		require.NoError(t, err)

		bars, err := s.GetBars(ctx, "B.SZ", models.Freq1d, day(2024, 1, 3), day(2024, 1, 3))
		require.NoError(t, err)
		require.Len(t, bars, 1)
		got := bars[0]
		assert.True(t, models.IsMissing(got.TotalValue))
		assert.True(t, models.IsMissing(got.MA60))
		assert.Equal(t, 1.25, got.ChangePercent)
		assert.True(t, got.IsLimitUp)
		assert.Equal(t, models.SourceProcessed, got.Source)
		assert.Equal(t, day(2024, 1, 3), got.TradeDate)
	})

	t.Run("latest date and scores", func(t *testing.T) {
		_, ok, err := s.LatestDate(ctx, "NONE.SZ", models.Freq1d)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.UpsertBars(ctx, []models.Bar{
			testBar("C.SZ", day(2024, 2, 1), 10, 70),
			testBar("C.SZ", day(2024, 2, 5), 10, 90),
		})
		require.NoError(t, err)

		latest, ok, err := s.LatestDate(ctx, "C.SZ", models.Freq1d)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, day(2024, 2, 5), latest)

		scores, err := s.QualityScores(ctx, "C.SZ", models.Freq1d, day(2024, 2, 1), day(2024, 2, 4))
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"2024-02-01": 70}, scores)

		dates, err := s.TradeDates(ctx, "C.SZ", models.Freq1d, day(2024, 1, 1), day(2024, 12, 31))
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(2024, 2, 1), day(2024, 2, 5)}, dates)
	})
}

func runSideStoreSuite(t *testing.T, s *Store) {
	ctx := context.Background()

	t.Run("fundamentals", func(t *testing.T) {
		q1 := models.NewFundamentalRecord("A.SZ", day(2024, 3, 31))
		q1.TotalShares, q1.FloatShares = 100, 80
		q2 := models.NewFundamentalRecord("A.SZ", day(2024, 6, 30))
		q2.TotalShares = 120

		n, err := s.UpsertFundamentals(ctx, []models.FundamentalRecord{q2, q1})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.GetFundamentals(ctx, "A.SZ")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, day(2024, 3, 31), got[0].ReportDate)
		assert.Equal(t, "Q1", got[0].ReportType)
		assert.Equal(t, 80.0, got[0].FloatShares)
		assert.True(t, models.IsMissing(got[1].FloatShares))
	})

	t.Run("sync status", func(t *testing.T) {
		_, err := s.GetSyncStatus(ctx, "A.SZ", models.Freq1d)
		assert.True(t, common.IsNotFound(err))

		st := &models.SyncStatus{
			Symbol:       "A.SZ",
			Frequency:    models.Freq1d,
			LastSyncDate: day(2024, 3, 1),
			LastDataDate: day(2024, 2, 29),
			Status:       models.SyncStatusCompleted,
			TotalRecords: 20,
		}
		require.NoError(t, s.SaveSyncStatus(ctx, st))
		st.Status = models.SyncStatusFailed
		st.ErrorMessage = "boom"
		require.NoError(t, s.SaveSyncStatus(ctx, st))

		got, err := s.GetSyncStatus(ctx, "A.SZ", models.Freq1d)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusFailed, got.Status)
		assert.Equal(t, "boom", got.ErrorMessage)
		assert.Equal(t, day(2024, 2, 29), got.LastDataDate)

		all, err := s.ListSyncStatus(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("stocks", func(t *testing.T) {
		_, err := s.UpsertStocks(ctx, []models.Stock{
			{Symbol: "600000.SS", Name: "PF Bank"},
			{Symbol: "000001.SZ", Name: "Ping An", Status: models.StockActive},
			{Symbol: "600001.SS", Status: models.StockDelisted},
		})
		require.NoError(t, err)

		active, err := s.ActiveSymbols(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001.SZ", "600000.SS"}, active)

		st, err := s.GetStock(ctx, "600000.SS")
		require.NoError(t, err)
		assert.Equal(t, models.MarketSS, st.Market)

		_, err = s.GetStock(ctx, "NOPE")
		assert.True(t, common.IsNotFound(err))
	})
}

func TestSQLite_BarStore(t *testing.T) {
	runBarStoreSuite(t, testSQLite(t))
}

func TestSQLite_SideStores(t *testing.T) {
	runSideStoreSuite(t, testSQLite(t))
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	_, err = s.UpsertBars(ctx, []models.Bar{testBar("A.SZ", day(2024, 1, 2), 10, 60)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	latest, ok, err := s.LatestDate(ctx, "A.SZ", models.Freq1d)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(2024, 1, 2), latest)
	assert.Equal(t, common.BackendSQLite, s.Backend())
}
