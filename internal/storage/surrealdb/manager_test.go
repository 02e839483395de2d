package surrealdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testBar(symbol string, date time.Time, close float64, score int) models.Bar {
	b := models.NewBar(symbol, date, models.DefaultBarDefaults())
	b.Open, b.High, b.Low, b.Close, b.Volume = close, close+1, close-1, close, 500
	b.QualityScore = score
	b.Source = models.SourceProcessed
	return b
}

func TestDocConversion_PreservesMissing(t *testing.T) {
	b := testBar("A.SZ", day(2024, 1, 2), 10, 70)
	b.ChangePercent = 2.5

	doc := toBarDoc(&b)
	assert.Nil(t, doc.TotalValue)
	assert.Equal(t, "2024-01-02", doc.TradeDate)

	back := doc.toBar()
	assert.True(t, models.IsMissing(back.TotalValue))
	assert.Equal(t, 2.5, back.ChangePercent)
	assert.Equal(t, b.Key(), back.Key())
	assert.Equal(t, "A.SZ_1d_2024-01-02", barID(b.Symbol, b.Frequency, b.TradeDate))
}

func TestBarStore_UpsertKeepsOneRow(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.BarStore()

	_, err := store.UpsertBars(ctx, []models.Bar{testBar("A.SZ", day(2024, 1, 2), 10, 60)})
	require.NoError(t, err)
	_, err = store.UpsertBars(ctx, []models.Bar{testBar("A.SZ", day(2024, 1, 2), 11, 80)})
	require.NoError(t, err)

	bars, err := store.GetBars(ctx, "A.SZ", models.Freq1d, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 11.0, bars[0].Close)
	assert.True(t, models.IsMissing(bars[0].TotalValue))

	latest, ok, err := store.LatestDate(ctx, "A.SZ", models.Freq1d)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(2024, 1, 2), latest)

	scores, err := store.QualityScores(ctx, "A.SZ", models.Freq1d, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2024-01-02": 80}, scores)
}

func TestBarStore_LatestDateEmpty(t *testing.T) {
	m := testManager(t)

	_, ok, err := m.BarStore().LatestDate(context.Background(), "NONE", models.Freq1d)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSideStores(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	rec := models.NewFundamentalRecord("A.SZ", day(2024, 3, 31))
	rec.TotalShares = 100
	_, err := m.FundamentalStore().UpsertFundamentals(ctx, []models.FundamentalRecord{rec})
	require.NoError(t, err)
	funds, err := m.FundamentalStore().GetFundamentals(ctx, "A.SZ")
	require.NoError(t, err)
	require.Len(t, funds, 1)
	assert.Equal(t, 100.0, funds[0].TotalShares)
	assert.True(t, models.IsMissing(funds[0].FloatShares))

	_, err = m.SyncStatusStore().GetSyncStatus(ctx, "A.SZ", models.Freq1d)
	assert.True(t, common.IsNotFound(err))
	require.NoError(t, m.SyncStatusStore().SaveSyncStatus(ctx, &models.SyncStatus{
		Symbol: "A.SZ", Frequency: models.Freq1d, Status: models.SyncStatusCompleted, LastDataDate: day(2024, 4, 1),
	}))
	st, err := m.SyncStatusStore().GetSyncStatus(ctx, "A.SZ", models.Freq1d)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 4, 1), st.LastDataDate)

	_, err = m.StockStore().UpsertStocks(ctx, []models.Stock{
		{Symbol: "000001.SZ"},
		{Symbol: "600001.SS", Status: models.StockDelisted},
	})
	require.NoError(t, err)
	active, err := m.StockStore().ActiveSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ"}, active)
}
