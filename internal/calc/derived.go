package calc

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/simtrade/internal/models"
)

var hundred = decimal.NewFromInt(100)

// changePlaces is the precision of change amount, change percent and amplitude.
const changePlaces = 4

// ApplyDerived computes change amount, change percent, amplitude and limit
// flags for chronologically ordered bars of one symbol and returns updated
// copies. A bar's predecessor is the previous bar's close in the window; the
// first bar, or a bar following one without a close, falls back to its own
// upstream PreClose.
func ApplyDerived(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, len(bars))
	copy(out, bars)

	for i := range out {
		prev := out[i].PreClose
		if i > 0 && !models.IsMissing(bars[i-1].Close) {
			prev = bars[i-1].Close
		}
		deriveBar(&out[i], prev)
	}
	return out
}

// DeriveBar computes derived fields for a single bar given its predecessor close.
func DeriveBar(bar models.Bar, prevClose float64) models.Bar {
	deriveBar(&bar, prevClose)
	return bar
}

func deriveBar(b *models.Bar, prev float64) {
	b.ChangeAmount = models.Missing
	b.ChangePercent = models.Missing
	b.Amplitude = models.Missing

	if usable(prev) {
		if models.IsMissing(b.PreClose) {
			b.PreClose = prev
		}
		p := decimal.NewFromFloat(prev)
		if usable(b.Close) {
			change := decimal.NewFromFloat(b.Close).Sub(p)
			b.ChangeAmount = change.Round(changePlaces).InexactFloat64()
			if !p.IsZero() {
				b.ChangePercent = change.Div(p).Mul(hundred).Round(changePlaces).InexactFloat64()
			}
		}
		if !p.IsZero() && usable(b.High) && usable(b.Low) {
			spread := decimal.NewFromFloat(b.High).Sub(decimal.NewFromFloat(b.Low))
			b.Amplitude = spread.Div(p).Mul(hundred).Round(changePlaces).InexactFloat64()
		}

		if models.IsAShare(b.Market) && !b.Unlimited &&
			(models.IsMissing(b.HighLimit) || models.IsMissing(b.LowLimit)) {
			high, low := LimitPrices(prev, LimitRatio(b.Symbol, b.IsST))
			if models.IsMissing(b.HighLimit) {
				b.HighLimit = high
			}
			if models.IsMissing(b.LowLimit) {
				b.LowLimit = low
			}
		}
	}

	b.IsLimitUp = !b.Unlimited && usable(b.Close) && usable(b.HighLimit) && b.Close >= b.HighLimit
	b.IsLimitDown = !b.Unlimited && usable(b.Close) && usable(b.LowLimit) && b.Close <= b.LowLimit
}

// usable reports whether v is a finite number.
func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
