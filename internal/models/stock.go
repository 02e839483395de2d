package models

import "time"

// Stock status values.
const (
	StockActive   = "active"
	StockDelisted = "delisted"
	StockSuspend  = "suspended"
)

// Stock is instrument metadata.
type Stock struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Market    string    `json:"market"`
	Exchange  string    `json:"exchange"`
	Status    string    `json:"status"`
	IsST      bool      `json:"is_st"`
	ListDate  time.Time `json:"list_date"`
	UpdatedAt time.Time `json:"updated_at"`
}
