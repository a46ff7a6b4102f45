package models

import (
	"encoding/json"
	"fmt"
)

// ExchangeID identifies one of the supported exchanges. The set is closed:
// adapter selection happens once per chart config, never by string dispatch.
type ExchangeID int

const (
	ExchangeCryptoCom ExchangeID = iota
	ExchangeBinance
	ExchangeBybit
	ExchangeKraken
	ExchangePoloniex
	exchangeCount
)

var exchangeNames = [...]string{
	ExchangeCryptoCom: "cryptocom",
	ExchangeBinance:   "binance",
	ExchangeBybit:     "bybit",
	ExchangeKraken:    "kraken",
	ExchangePoloniex:  "poloniex",
}

// String returns the canonical lowercase exchange name.
func (e ExchangeID) String() string {
	if e < 0 || int(e) >= len(exchangeNames) {
		return "unknown"
	}
	return exchangeNames[e]
}

// Valid reports whether e is a member of the closed exchange set.
func (e ExchangeID) Valid() bool {
	return e >= 0 && e < exchangeCount
}

// ParseExchange resolves a canonical exchange name to its ID.
func ParseExchange(name string) (ExchangeID, error) {
	for id, n := range exchangeNames {
		if n == name {
			return ExchangeID(id), nil
		}
	}
	return 0, &ValidationError{Field: "exchange", Code: "invalid_exchange", Msg: fmt.Sprintf("unknown exchange %q", name)}
}

// MarshalJSON encodes the exchange as its canonical name.
func (e ExchangeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON decodes an exchange from its canonical name.
func (e *ExchangeID) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	id, err := ParseExchange(name)
	if err != nil {
		return err
	}
	*e = id
	return nil
}

// Intervals is the canonical interval token set, ordered. Exchange adapters
// translate these into their own encodings.
var Intervals = []string{
	"1m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

// autoCandleCounts maps each canonical interval to the candle count used when
// a chart is in auto mode. Tuned so one chart width stays readable.
var autoCandleCounts = map[string]int{
	"1m":  60,
	"5m":  48,
	"15m": 48,
	"30m": 48,
	"1h":  48,
	"2h":  48,
	"4h":  42,
	"6h":  40,
	"8h":  42,
	"12h": 40,
	"1d":  60,
	"3d":  40,
	"1w":  52,
	"1M":  24,
}

// ValidInterval reports whether token is a canonical interval.
func ValidInterval(token string) bool {
	_, ok := autoCandleCounts[token]
	return ok
}

// IntervalMillis returns the canonical interval duration in milliseconds.
func IntervalMillis(token string) uint64 {
	const minute = 60 * 1000
	switch token {
	case "1m":
		return minute
	case "5m":
		return 5 * minute
	case "15m":
		return 15 * minute
	case "30m":
		return 30 * minute
	case "1h":
		return 60 * minute
	case "2h":
		return 2 * 60 * minute
	case "4h":
		return 4 * 60 * minute
	case "6h":
		return 6 * 60 * minute
	case "8h":
		return 8 * 60 * minute
	case "12h":
		return 12 * 60 * minute
	case "1d":
		return 24 * 60 * minute
	case "3d":
		return 3 * 24 * 60 * minute
	case "1w":
		return 7 * 24 * 60 * minute
	case "1M":
		return 30 * 24 * 60 * minute
	default:
		return minute
	}
}

// ChartConfig is the per-chart configuration: which exchange/pair/interval to
// fetch and which indicators to compute. All string fields are bounded and
// validated at every boundary crossing.
type ChartConfig struct {
	Exchange    ExchangeID `json:"exchange"`
	Coin        string     `json:"coin"`
	Quote       string     `json:"quote"`
	Interval    string     `json:"interval"`
	AutoCount   bool       `json:"auto_count"`
	CandleCount int        `json:"candle_count"`
	EMAFast     int        `json:"ema_fast"`
	EMASlow     int        `json:"ema_slow"`
	RSIPeriod   int        `json:"rsi_period"`
	HeikinAshi  bool       `json:"heikin_ashi"`
}

// EffectiveCandleCount resolves the candle count for this chart: the auto
// table entry for the interval when auto mode is set, else the manual count,
// always clamped to [MinCandles, MaxCandles].
func (c *ChartConfig) EffectiveCandleCount() int {
	n := c.CandleCount
	if c.AutoCount {
		if auto, ok := autoCandleCounts[c.Interval]; ok {
			n = auto
		}
	}
	return ClampCandleCount(n)
}

const maxSymbolLen = 10

// Validate rejects any field outside its bounds. Invalid input is an error,
// never a silent coercion.
func (c *ChartConfig) Validate() error {
	if !c.Exchange.Valid() {
		return &ValidationError{Field: "exchange", Code: "invalid_exchange", Msg: "exchange out of range"}
	}
	if err := validateSymbol("coin", c.Coin); err != nil {
		return err
	}
	if err := validateSymbol("quote", c.Quote); err != nil {
		return err
	}
	if !ValidInterval(c.Interval) {
		return &ValidationError{Field: "interval", Code: "invalid_interval", Msg: fmt.Sprintf("unknown interval %q", c.Interval)}
	}
	if !c.AutoCount && (c.CandleCount < MinCandles || c.CandleCount > MaxCandles) {
		return &ValidationError{
			Field: "candle_count", Code: "invalid_candle_count",
			Msg: fmt.Sprintf("candle count %d outside [%d, %d]", c.CandleCount, MinCandles, MaxCandles),
		}
	}
	if c.EMAFast < 1 || c.EMAFast > 100 {
		return &ValidationError{Field: "ema_fast", Code: "invalid_period", Msg: "EMA fast period outside [1, 100]"}
	}
	if c.EMASlow < 1 || c.EMASlow > 100 {
		return &ValidationError{Field: "ema_slow", Code: "invalid_period", Msg: "EMA slow period outside [1, 100]"}
	}
	if c.RSIPeriod < 2 || c.RSIPeriod > 50 {
		return &ValidationError{Field: "rsi_period", Code: "invalid_period", Msg: "RSI period outside [2, 50]"}
	}
	return nil
}

func validateSymbol(field, s string) error {
	if len(s) == 0 || len(s) > maxSymbolLen {
		return &ValidationError{Field: field, Code: "invalid_symbol", Msg: fmt.Sprintf("%s length outside [1, %d]", field, maxSymbolLen)}
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return &ValidationError{Field: field, Code: "invalid_symbol", Msg: field + " must be alphanumeric"}
		}
	}
	return nil
}

// ValidationError is a rejected configuration field. The boundary rejects and
// the prior value is retained by the caller.
type ValidationError struct {
	Field string `json:"field"`
	Code  string `json:"code"`
	Msg   string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}
