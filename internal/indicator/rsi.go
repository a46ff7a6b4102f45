package indicator

import "github.com/Alpha162/armoured-candles/pkg/models"

// rsiNeutral is the value used while no RSI is computable. 50 reads as "no
// sentiment" on the rendered oscillator.
const rsiNeutral = 50.0

// RSI returns Wilder's relative strength index over the candle closes.
//
// A series shorter than period+1 has no computable RSI at all; every value is
// the neutral sentinel. Otherwise values before index `period` hold the
// sentinel, index `period` carries the SMA-seeded value, and later indexes
// use Wilder's smoothing.
func RSI(candles []models.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	for i := range out {
		out[i] = rsiNeutral
	}
	if len(candles) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		// Wilder's smoothing
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
