package calc

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/simtrade/internal/models"
)

// Daily price-limit ratios for A-shares.
var (
	ratioST     = decimal.RequireFromString("0.05")
	ratioGrowth = decimal.RequireFromString("0.20")
	ratioMain   = decimal.RequireFromString("0.10")
)

// LimitRatio returns the daily limit ratio for an A-share symbol: 5% for ST
// names, 20% for STAR (688) and ChiNext (300) codes, otherwise 10%.
func LimitRatio(symbol string, isST bool) decimal.Decimal {
	if isST {
		return ratioST
	}
	code := models.BaseCode(strings.ToUpper(symbol))
	if strings.HasPrefix(code, "688") || strings.HasPrefix(code, "300") {
		return ratioGrowth
	}
	return ratioMain
}

// LimitPrices derives the high and low limit prices from the previous close.
func LimitPrices(prevClose float64, ratio decimal.Decimal) (high, low float64) {
	if models.IsMissing(prevClose) || prevClose <= 0 {
		return models.Missing, models.Missing
	}
	prev := decimal.NewFromFloat(prevClose)
	one := decimal.NewFromInt(1)
	places := pricePlaces(prevClose)
	high = prev.Mul(one.Add(ratio)).Round(places).InexactFloat64()
	low = prev.Mul(one.Sub(ratio)).Round(places).InexactFloat64()
	return high, low
}

// pricePlaces is 2 decimal places for prices of 10 and above, 3 below.
func pricePlaces(price float64) int32 {
	if price >= 10 {
		return 2
	}
	return 3
}

// RoundPrice rounds a price to its tick precision.
func RoundPrice(price float64) float64 {
	if models.IsMissing(price) {
		return price
	}
	return round(price, pricePlaces(price))
}

func round(v float64, places int32) float64 {
	if models.IsMissing(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
