// Package indicator computes the chart indicators over a finalized candle
// series: EMA, Wilder RSI and the optional Heikin-Ashi transform.
package indicator

import "github.com/Alpha162/armoured-candles/pkg/models"

// EMA returns the exponential moving average series over the candle closes.
//
// The series is seeded with the first close rather than an SMA warm-up, so a
// value exists for every rendered candle. That choice shapes the chart and is
// deliberate.
func EMA(candles []models.Candle, period int) []float64 {
	if len(candles) == 0 {
		return nil
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, len(candles))
	out[0] = candles[0].Close
	for i := 1; i < len(candles); i++ {
		out[i] = candles[i].Close*k + out[i-1]*(1-k)
	}
	return out
}
