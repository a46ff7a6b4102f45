package indicator

import "github.com/Alpha162/armoured-candles/pkg/models"

// HeikinAshi rewrites the series in place with the smoothed Heikin-Ashi
// transform. Each bar's haClose is derived from that bar's original OHLC and
// haOpen from the previous synthetic bar, so the loop reads the original
// values before overwriting them. Volume is never altered.
func HeikinAshi(candles []models.Candle) {
	if len(candles) == 0 {
		return
	}

	first := candles[0]
	haOpen := (first.Open + first.Close) / 2
	haClose := (first.Open + first.High + first.Low + first.Close) / 4
	candles[0].Open = haOpen
	candles[0].Close = haClose
	candles[0].High = max3(first.High, haOpen, haClose)
	candles[0].Low = min3(first.Low, haOpen, haClose)

	prevOpen, prevClose := haOpen, haClose
	for i := 1; i < len(candles); i++ {
		orig := candles[i]
		haOpen = (prevOpen + prevClose) / 2
		haClose = (orig.Open + orig.High + orig.Low + orig.Close) / 4
		candles[i].Open = haOpen
		candles[i].Close = haClose
		candles[i].High = max3(orig.High, haOpen, haClose)
		candles[i].Low = min3(orig.Low, haOpen, haClose)
		prevOpen, prevClose = haOpen, haClose
	}
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
