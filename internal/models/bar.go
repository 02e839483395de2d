// Package models defines the data types shared across simtrade
package models

import (
	"math"
	"strings"
	"time"
)

// Frequency is a bar period such as "1d".
type Frequency string

const (
	Freq1d  Frequency = "1d"
	Freq1w  Frequency = "1w"
	Freq1M  Frequency = "1M"
	Freq5m  Frequency = "5m"
	Freq15m Frequency = "15m"
	Freq30m Frequency = "30m"
	Freq60m Frequency = "60m"
)

// ParseFrequency accepts the known frequency labels.
func ParseFrequency(s string) (Frequency, bool) {
	switch f := Frequency(strings.TrimSpace(s)); f {
	case Freq1d, Freq1w, Freq1M, Freq5m, Freq15m, Freq30m, Freq60m:
		return f, true
	}
	return "", false
}

// Source records which computation path produced a bar.
type Source string

const (
	SourceRaw               Source = "raw"
	SourceProcessed         Source = "processed"
	SourceProcessedEnhanced Source = "processed_enhanced"
)

// Market codes.
const (
	MarketSZ = "SZ"
	MarketSS = "SS"
	MarketHK = "HK"
	MarketUS = "US"
)

// Missing is the numeric "not available" sentinel. Stores persist it as NULL.
var Missing = math.NaN()

// IsMissing reports whether v carries the missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Bar is one trading-period record, keyed by (Symbol, TradeDate, Frequency).
type Bar struct {
	Symbol    string    `json:"symbol" validate:"required"`
	Market    string    `json:"market"`
	TradeDate time.Time `json:"trade_date" validate:"required"`
	TradeTime string    `json:"trade_time,omitempty"`
	Frequency Frequency `json:"frequency" validate:"required"`

	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	PreClose  float64 `json:"preclose"`
	HighLimit float64 `json:"high_limit"`
	LowLimit  float64 `json:"low_limit"`
	Unlimited bool    `json:"unlimited"`
	IsST      bool    `json:"is_st"`

	PE           float64 `json:"pe"`
	PB           float64 `json:"pb"`
	PS           float64 `json:"ps"`
	TurnoverRate float64 `json:"turnover_rate"`

	ChangeAmount  float64 `json:"change_amount"`
	ChangePercent float64 `json:"change_percent"`
	Amplitude     float64 `json:"amplitude"`
	IsLimitUp     bool    `json:"is_limit_up"`
	IsLimitDown   bool    `json:"is_limit_down"`
	MA5           float64 `json:"ma5"`
	MA10          float64 `json:"ma10"`
	MA20          float64 `json:"ma20"`
	MA60          float64 `json:"ma60"`

	TotalShares float64 `json:"total_shares"`
	TotalValue  float64 `json:"total_value"`
	FloatValue  float64 `json:"float_value"`

	QualityScore int       `json:"quality_score"`
	Source       Source    `json:"source"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Key returns the upsert key for the bar.
func (b *Bar) Key() BarKey {
	return BarKey{Symbol: b.Symbol, TradeDate: DateKey(b.TradeDate), Frequency: b.Frequency}
}

// BarKey identifies one stored bar.
type BarKey struct {
	Symbol    string
	TradeDate string
	Frequency Frequency
}

// DateKey formats a trade date the way stores key it.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// TruncateDay drops the clock portion of t, keeping its calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BarDefaults lists the value every field takes when a bar is built from
// partial upstream data.
type BarDefaults struct {
	Frequency Frequency
	Market    string // empty means infer from the symbol
	Source    Source
	Unlimited bool
	Quality   int
	Numeric   float64 // starting value of every numeric field
}

// DefaultBarDefaults returns daily, raw, unscored bars with every number missing.
func DefaultBarDefaults() BarDefaults {
	return BarDefaults{
		Frequency: Freq1d,
		Source:    SourceRaw,
		Numeric:   Missing,
	}
}

// NewBar builds a bar for symbol on date with every field set from defaults.
func NewBar(symbol string, date time.Time, d BarDefaults) Bar {
	market := d.Market
	if market == "" {
		market = InferMarket(symbol)
	}
	n := d.Numeric
	return Bar{
		Symbol:        symbol,
		Market:        market,
		TradeDate:     TruncateDay(date),
		Frequency:     d.Frequency,
		Open:          n,
		High:          n,
		Low:           n,
		Close:         n,
		Volume:        n,
		Amount:        n,
		Price:         n,
		PreClose:      n,
		HighLimit:     n,
		LowLimit:      n,
		Unlimited:     d.Unlimited,
		PE:            n,
		PB:            n,
		PS:            n,
		TurnoverRate:  n,
		ChangeAmount:  n,
		ChangePercent: n,
		Amplitude:     n,
		MA5:           n,
		MA10:          n,
		MA20:          n,
		MA60:          n,
		TotalShares:   n,
		TotalValue:    n,
		FloatValue:    n,
		QualityScore:  d.Quality,
		Source:        d.Source,
	}
}

// InferMarket derives the market code from a symbol suffix, falling back to
// the A-share code prefix. Unknown symbols return "".
func InferMarket(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, ".SZ"):
		return MarketSZ
	case strings.HasSuffix(s, ".SS"), strings.HasSuffix(s, ".SH"):
		return MarketSS
	case strings.HasSuffix(s, ".HK"):
		return MarketHK
	case strings.HasSuffix(s, ".US"):
		return MarketUS
	}
	code := BaseCode(s)
	switch {
	case strings.HasPrefix(code, "00"), strings.HasPrefix(code, "30"):
		return MarketSZ
	case strings.HasPrefix(code, "60"), strings.HasPrefix(code, "68"):
		return MarketSS
	}
	return ""
}

// BaseCode strips the exchange suffix: "600000.SS" -> "600000".
func BaseCode(symbol string) string {
	if i := strings.LastIndexByte(symbol, '.'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// IsAShare reports whether the market applies daily price limits.
func IsAShare(market string) bool {
	return market == MarketSZ || market == MarketSS
}
