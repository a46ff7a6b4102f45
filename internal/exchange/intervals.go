package exchange

// Interval-token translation tables, one per exchange. Keys are the canonical
// tokens from pkg/models; values are the exchange's own encoding. Lookups on
// a token the exchange does not support fall back to the nearest supported
// interval noted next to each table.

// binanceIntervals: Binance supports the full canonical set verbatim.
// Fallback: 1h.
var binanceIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1h", "2h": "2h", "4h": "4h", "6h": "6h", "8h": "8h", "12h": "12h",
	"1d": "1d", "3d": "3d", "1w": "1w", "1M": "1M",
}

// bybitIntervals: Bybit encodes intervals as minutes, plus D/W/M.
// 3d is unsupported and falls back to D; general fallback: 60.
var bybitIntervals = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "8h": "720", "12h": "720",
	"1d": "D", "3d": "D", "1w": "W", "1M": "M",
}

// krakenIntervals: Kraken takes an interval-minutes token from a fixed set
// {1,5,15,30,60,240,1440,10080,21600}. Unsupported canonical tokens fall back
// to the nearest smaller supported value; general fallback: 60.
var krakenIntervals = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "60", "4h": "240", "6h": "240", "8h": "240", "12h": "240",
	"1d": "1440", "3d": "1440", "1w": "10080", "1M": "21600",
}

// poloniexIntervals: Poloniex uses UNIT_COUNT tokens (e.g. MINUTE_5).
// 8h is unsupported and falls back to HOUR_12; general fallback: HOUR_1.
var poloniexIntervals = map[string]string{
	"1m": "MINUTE_1", "5m": "MINUTE_5", "15m": "MINUTE_15", "30m": "MINUTE_30",
	"1h": "HOUR_1", "2h": "HOUR_2", "4h": "HOUR_4", "6h": "HOUR_6",
	"8h": "HOUR_12", "12h": "HOUR_12",
	"1d": "DAY_1", "3d": "DAY_3", "1w": "WEEK_1", "1M": "MONTH_1",
}

// cryptoComIntervals: Crypto.com uses suffix-style tokens (5m, 1h, 1D...).
// 3d is unsupported and falls back to 1D; general fallback: 1h.
var cryptoComIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1h", "2h": "2h", "4h": "4h", "6h": "6h", "8h": "12h", "12h": "12h",
	"1d": "1D", "3d": "1D", "1w": "7D", "1M": "1M",
}

// translateInterval looks up a canonical token in an exchange table, falling
// back to the supplied default when the token is absent.
func translateInterval(table map[string]string, token, fallback string) string {
	if v, ok := table[token]; ok {
		return v
	}
	return fallback
}
