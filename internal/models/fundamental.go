package models

import "time"

// FundamentalRecord is one quarterly filing. Share counts are in units of
// 100 million shares.
type FundamentalRecord struct {
	Symbol      string    `json:"symbol"`
	ReportDate  time.Time `json:"report_date"`
	ReportType  string    `json:"report_type"` // Q1, Q2, Q3, Q4
	TotalShares float64   `json:"total_shares"`
	FloatShares float64   `json:"float_shares"`

	Revenue     float64 `json:"revenue"`
	NetProfit   float64 `json:"net_profit"`
	TotalAssets float64 `json:"total_assets"`
	TotalEquity float64 `json:"total_equity"`
	EPS         float64 `json:"eps"`
	BPS         float64 `json:"bps"`
	ROE         float64 `json:"roe"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewFundamentalRecord returns a record with every numeric field missing.
func NewFundamentalRecord(symbol string, reportDate time.Time) FundamentalRecord {
	return FundamentalRecord{
		Symbol:      symbol,
		ReportDate:  TruncateDay(reportDate),
		ReportType:  QuarterLabel(reportDate),
		TotalShares: Missing,
		FloatShares: Missing,
		Revenue:     Missing,
		NetProfit:   Missing,
		TotalAssets: Missing,
		TotalEquity: Missing,
		EPS:         Missing,
		BPS:         Missing,
		ROE:         Missing,
	}
}

// QuarterLabel maps a quarter-end date to Q1..Q4.
func QuarterLabel(t time.Time) string {
	switch (int(t.Month()) - 1) / 3 {
	case 0:
		return "Q1"
	case 1:
		return "Q2"
	case 2:
		return "Q3"
	default:
		return "Q4"
	}
}
