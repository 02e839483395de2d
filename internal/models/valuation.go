package models

import "time"

// ValuationSeries holds one symbol's daily valuation columns aligned to Dates.
// Close is nil when the upstream series carries no close price.
type ValuationSeries struct {
	Dates       []time.Time
	Close       []float64
	TotalShares []float64
	TotalValue  []float64
	FloatValue  []float64
}

// Len returns the number of rows.
func (v *ValuationSeries) Len() int {
	return len(v.Dates)
}

// Clone returns a deep copy.
func (v ValuationSeries) Clone() ValuationSeries {
	return ValuationSeries{
		Dates:       append([]time.Time(nil), v.Dates...),
		Close:       cloneFloats(v.Close),
		TotalShares: cloneFloats(v.TotalShares),
		TotalValue:  cloneFloats(v.TotalValue),
		FloatValue:  cloneFloats(v.FloatValue),
	}
}

// ValuationFromBars builds a series from bars already in date order.
func ValuationFromBars(bars []Bar) ValuationSeries {
	v := ValuationSeries{
		Dates: make([]time.Time, len(bars)),
		Close: make([]float64, len(bars)),
	}
	for i := range bars {
		v.Dates[i] = bars[i].TradeDate
		v.Close[i] = bars[i].Close
	}
	return v
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	return append([]float64(nil), in...)
}
