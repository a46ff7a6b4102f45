package models

// MaxCandles is the hard capacity bound for any candle series. Fetches are
// clamped to it at the boundary, so downstream code never sees more.
const MaxCandles = 200

// MinCandles is the smallest candle count a chart may be configured with.
const MinCandles = 5

// Candle represents one OHLCV price bar for a fixed time interval.
// Timestamp is the bar open time in milliseconds since epoch.
type Candle struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timestamp uint64  `json:"timestamp"`
}

// TimeRange is a half-open [Start, End) request window in milliseconds.
type TimeRange struct {
	Start uint64
	End   uint64
}

// ClampCandleCount bounds a requested candle count to [MinCandles, MaxCandles].
func ClampCandleCount(n int) int {
	if n < MinCandles {
		return MinCandles
	}
	if n > MaxCandles {
		return MaxCandles
	}
	return n
}

// PercentChange returns the percent change from the first candle's open to
// the last candle's close. Returns 0 for an empty series or a zero open.
func PercentChange(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	first := candles[0].Open
	if first == 0 {
		return 0
	}
	last := candles[len(candles)-1].Close
	return (last - first) / first * 100
}
