package calc

import (
	"gonum.org/v1/gonum/floats"

	"github.com/bobmcallan/simtrade/internal/models"
)

// DefaultMAPeriods are the moving averages stored on every bar.
var DefaultMAPeriods = []int{5, 10, 20, 60}

// maPlaces is the precision of stored moving averages.
const maPlaces = 3

// SMA returns the simple moving average of the period values ending at end
// (inclusive). It is missing when fewer than period values are available or
// any of them is missing.
func SMA(closes []float64, end, period int) float64 {
	if period <= 0 || end < period-1 || end >= len(closes) {
		return models.Missing
	}
	window := closes[end-period+1 : end+1]
	if floats.HasNaN(window) {
		return models.Missing
	}
	return floats.Sum(window) / float64(period)
}

// MovingAverages fills MA5, MA10, MA20 and MA60 from closes within the
// chronologically ordered window and returns updated copies. Periods without
// a matching field are ignored.
func MovingAverages(bars []models.Bar, periods []int) []models.Bar {
	out := make([]models.Bar, len(bars))
	copy(out, bars)

	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	for _, period := range periods {
		for i := range out {
			v := round(SMA(closes, i, period), maPlaces)
			switch period {
			case 5:
				out[i].MA5 = v
			case 10:
				out[i].MA10 = v
			case 20:
				out[i].MA20 = v
			case 60:
				out[i].MA60 = v
			}
		}
	}
	return out
}
