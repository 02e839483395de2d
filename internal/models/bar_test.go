package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInferMarket(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"000001.SZ", MarketSZ},
		{"600000.SS", MarketSS},
		{"600000.sh", MarketSS},
		{"0700.HK", MarketHK},
		{"AAPL.US", MarketUS},
		{"300750", MarketSZ},
		{"002415", MarketSZ},
		{"688981", MarketSS},
		{"601318", MarketSS},
		{"BHP.AU", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, InferMarket(tt.symbol))
		})
	}
}

func TestNewBar_AppliesDefaults(t *testing.T) {
	date := time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)
	bar := NewBar("600000.SS", date, DefaultBarDefaults())

	assert.Equal(t, MarketSS, bar.Market)
	assert.Equal(t, Freq1d, bar.Frequency)
	assert.Equal(t, SourceRaw, bar.Source)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), bar.TradeDate)
	assert.True(t, IsMissing(bar.Close))
	assert.True(t, IsMissing(bar.ChangePercent))
	assert.True(t, IsMissing(bar.TotalValue))
	assert.Equal(t, BarKey{Symbol: "600000.SS", TradeDate: "2024-03-04", Frequency: Freq1d}, bar.Key())
}

func TestNewBar_ExplicitMarketWins(t *testing.T) {
	d := DefaultBarDefaults()
	d.Market = MarketHK
	d.Numeric = 0

	bar := NewBar("600000", time.Now(), d)
	assert.Equal(t, MarketHK, bar.Market)
	assert.Equal(t, 0.0, bar.Open)
}

func TestParseFrequency(t *testing.T) {
	f, ok := ParseFrequency(" 1d ")
	assert.True(t, ok)
	assert.Equal(t, Freq1d, f)

	_, ok = ParseFrequency("2d")
	assert.False(t, ok)
}

func TestGapSeverity(t *testing.T) {
	assert.Equal(t, SeverityLow, GapSeverity(1))
	assert.Equal(t, SeverityMedium, GapSeverity(3))
	assert.Equal(t, SeverityHigh, GapSeverity(7))
	assert.Equal(t, SeverityCritical, GapSeverity(8))
}

func TestValuationSeries_CloneIsDeep(t *testing.T) {
	v := ValuationSeries{
		Dates: []time.Time{time.Now()},
		Close: []float64{10},
	}
	c := v.Clone()
	c.Close[0] = 11

	assert.Equal(t, 10.0, v.Close[0])
	assert.Nil(t, c.TotalShares)
}
