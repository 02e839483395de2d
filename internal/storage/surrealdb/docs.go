package surrealdb

import (
	"fmt"
	"time"

	"github.com/bobmcallan/simtrade/internal/models"
)

// Documents store missing numbers as absent fields and dates as YYYY-MM-DD
// strings so range filters compare lexically.

func ptr(v float64) *float64 {
	if models.IsMissing(v) {
		return nil
	}
	return &v
}

func val(p *float64) float64 {
	if p == nil {
		return models.Missing
	}
	return *p
}

func parseDay(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func optionalDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return models.DateKey(t)
}

func barID(symbol string, freq models.Frequency, date time.Time) string {
	return fmt.Sprintf("%s_%s_%s", symbol, freq, models.DateKey(date))
}

type barDoc struct {
	Symbol    string `json:"symbol"`
	Market    string `json:"market"`
	TradeDate string `json:"trade_date"`
	TradeTime string `json:"trade_time,omitempty"`
	Frequency string `json:"frequency"`

	Open      *float64 `json:"open,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Low       *float64 `json:"low,omitempty"`
	Close     *float64 `json:"close,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	PreClose  *float64 `json:"preclose,omitempty"`
	HighLimit *float64 `json:"high_limit,omitempty"`
	LowLimit  *float64 `json:"low_limit,omitempty"`
	Unlimited bool     `json:"unlimited"`
	IsST      bool     `json:"is_st"`

	PE           *float64 `json:"pe,omitempty"`
	PB           *float64 `json:"pb,omitempty"`
	PS           *float64 `json:"ps,omitempty"`
	TurnoverRate *float64 `json:"turnover_rate,omitempty"`

	ChangeAmount  *float64 `json:"change_amount,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	Amplitude     *float64 `json:"amplitude,omitempty"`
	IsLimitUp     bool     `json:"is_limit_up"`
	IsLimitDown   bool     `json:"is_limit_down"`
	MA5           *float64 `json:"ma5,omitempty"`
	MA10          *float64 `json:"ma10,omitempty"`
	MA20          *float64 `json:"ma20,omitempty"`
	MA60          *float64 `json:"ma60,omitempty"`

	TotalShares *float64 `json:"total_shares,omitempty"`
	TotalValue  *float64 `json:"total_value,omitempty"`
	FloatValue  *float64 `json:"float_value,omitempty"`

	QualityScore int       `json:"quality_score"`
	Source       string    `json:"source"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toBarDoc(b *models.Bar) barDoc {
	updated := b.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return barDoc{
		Symbol: b.Symbol, Market: b.Market, TradeDate: models.DateKey(b.TradeDate),
		TradeTime: b.TradeTime, Frequency: string(b.Frequency),
		Open: ptr(b.Open), High: ptr(b.High), Low: ptr(b.Low), Close: ptr(b.Close),
		Volume: ptr(b.Volume), Amount: ptr(b.Amount), Price: ptr(b.Price), PreClose: ptr(b.PreClose),
		HighLimit: ptr(b.HighLimit), LowLimit: ptr(b.LowLimit), Unlimited: b.Unlimited, IsST: b.IsST,
		PE: ptr(b.PE), PB: ptr(b.PB), PS: ptr(b.PS), TurnoverRate: ptr(b.TurnoverRate),
		ChangeAmount: ptr(b.ChangeAmount), ChangePercent: ptr(b.ChangePercent), Amplitude: ptr(b.Amplitude),
		IsLimitUp: b.IsLimitUp, IsLimitDown: b.IsLimitDown,
		MA5: ptr(b.MA5), MA10: ptr(b.MA10), MA20: ptr(b.MA20), MA60: ptr(b.MA60),
		TotalShares: ptr(b.TotalShares), TotalValue: ptr(b.TotalValue), FloatValue: ptr(b.FloatValue),
		QualityScore: b.QualityScore, Source: string(b.Source), UpdatedAt: updated,
	}
}

func (d *barDoc) toBar() models.Bar {
	return models.Bar{
		Symbol: d.Symbol, Market: d.Market, TradeDate: parseDay(d.TradeDate),
		TradeTime: d.TradeTime, Frequency: models.Frequency(d.Frequency),
		Open: val(d.Open), High: val(d.High), Low: val(d.Low), Close: val(d.Close),
		Volume: val(d.Volume), Amount: val(d.Amount), Price: val(d.Price), PreClose: val(d.PreClose),
		HighLimit: val(d.HighLimit), LowLimit: val(d.LowLimit), Unlimited: d.Unlimited, IsST: d.IsST,
		PE: val(d.PE), PB: val(d.PB), PS: val(d.PS), TurnoverRate: val(d.TurnoverRate),
		ChangeAmount: val(d.ChangeAmount), ChangePercent: val(d.ChangePercent), Amplitude: val(d.Amplitude),
		IsLimitUp: d.IsLimitUp, IsLimitDown: d.IsLimitDown,
		MA5: val(d.MA5), MA10: val(d.MA10), MA20: val(d.MA20), MA60: val(d.MA60),
		TotalShares: val(d.TotalShares), TotalValue: val(d.TotalValue), FloatValue: val(d.FloatValue),
		QualityScore: d.QualityScore, Source: models.Source(d.Source), UpdatedAt: d.UpdatedAt,
	}
}

type fundamentalDoc struct {
	Symbol      string    `json:"symbol"`
	ReportDate  string    `json:"report_date"`
	ReportType  string    `json:"report_type"`
	TotalShares *float64  `json:"total_shares,omitempty"`
	FloatShares *float64  `json:"float_shares,omitempty"`
	Revenue     *float64  `json:"revenue,omitempty"`
	NetProfit   *float64  `json:"net_profit,omitempty"`
	TotalAssets *float64  `json:"total_assets,omitempty"`
	TotalEquity *float64  `json:"total_equity,omitempty"`
	EPS         *float64  `json:"eps,omitempty"`
	BPS         *float64  `json:"bps,omitempty"`
	ROE         *float64  `json:"roe,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toFundamentalDoc(f *models.FundamentalRecord) fundamentalDoc {
	updated := f.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return fundamentalDoc{
		Symbol: f.Symbol, ReportDate: models.DateKey(f.ReportDate), ReportType: f.ReportType,
		TotalShares: ptr(f.TotalShares), FloatShares: ptr(f.FloatShares),
		Revenue: ptr(f.Revenue), NetProfit: ptr(f.NetProfit),
		TotalAssets: ptr(f.TotalAssets), TotalEquity: ptr(f.TotalEquity),
		EPS: ptr(f.EPS), BPS: ptr(f.BPS), ROE: ptr(f.ROE), UpdatedAt: updated,
	}
}

func (d *fundamentalDoc) toRecord() models.FundamentalRecord {
	return models.FundamentalRecord{
		Symbol: d.Symbol, ReportDate: parseDay(d.ReportDate), ReportType: d.ReportType,
		TotalShares: val(d.TotalShares), FloatShares: val(d.FloatShares),
		Revenue: val(d.Revenue), NetProfit: val(d.NetProfit),
		TotalAssets: val(d.TotalAssets), TotalEquity: val(d.TotalEquity),
		EPS: val(d.EPS), BPS: val(d.BPS), ROE: val(d.ROE), UpdatedAt: d.UpdatedAt,
	}
}

type syncStatusDoc struct {
	Symbol       string    `json:"symbol"`
	Frequency    string    `json:"frequency"`
	LastSyncDate string    `json:"last_sync_date,omitempty"`
	LastDataDate string    `json:"last_data_date,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message"`
	TotalRecords int       `json:"total_records"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type stockDoc struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Market    string    `json:"market"`
	Exchange  string    `json:"exchange"`
	Status    string    `json:"status"`
	IsST      bool      `json:"is_st"`
	ListDate  string    `json:"list_date,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
