package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/pkg/models"
)

// klineClient is the shared kline-style adapter: GET with symbol = coin‖quote,
// an interval token and start/end/limit, answered by an array of arrays
// [openTime, open, high, low, close, volume, ...]. Binance and Bybit both
// speak this shape; only the endpoint, parameter names and interval tables
// differ.
type klineClient struct {
	exchange  models.ExchangeID
	doRequest func(ctx context.Context, cfg models.ChartConfig, window models.TimeRange, limit int) ([][]json.RawMessage, error)
	logger    *logrus.Entry
}

func (k *klineClient) Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error) {
	effective := cfg.EffectiveCandleCount()
	limit := requestCount(effective, klineLimitCap)

	rows, err := k.doRequest(ctx, cfg, window, limit)
	if err != nil {
		return nil, fetchErr(k.exchange, "fetch klines", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseKlineRow(row)
		if err != nil {
			return nil, fetchErr(k.exchange, "parse kline", err)
		}
		candles = append(candles, c)
	}

	candles = retainTail(candles, effective)
	if len(candles) == 0 {
		return nil, fetchErr(k.exchange, "fetch klines", fmt.Errorf("empty candle series for %s%s", cfg.Coin, cfg.Quote))
	}

	k.logger.WithFields(logrus.Fields{
		"symbol":   cfg.Coin + cfg.Quote,
		"interval": cfg.Interval,
		"count":    len(candles),
	}).Debug("Fetched klines")

	return candles, nil
}

// parseKlineRow decodes one [openTime, open, high, low, close, volume, ...]
// row. Times arrive as JSON numbers or numeric strings, prices as decimal
// strings.
func parseKlineRow(row []json.RawMessage) (models.Candle, error) {
	var c models.Candle
	if len(row) < 6 {
		return c, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
	}

	ts, err := parseRawUint(row[0])
	if err != nil {
		return c, fmt.Errorf("open time: %w", err)
	}
	c.Timestamp = ts

	fields := []struct {
		name string
		dst  *float64
		raw  json.RawMessage
	}{
		{"open", &c.Open, row[1]},
		{"high", &c.High, row[2]},
		{"low", &c.Low, row[3]},
		{"close", &c.Close, row[4]},
		{"volume", &c.Volume, row[5]},
	}
	for _, f := range fields {
		v, err := parseRawFloat(f.raw)
		if err != nil {
			return c, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return c, nil
}

// parseRawFloat accepts either a JSON number or a decimal string.
func parseRawFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("not a number or decimal string: %s", string(raw))
	}
	return f, nil
}

// parseRawUint accepts either a JSON number or a numeric string.
func parseRawUint(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseUint(s, 10, 64)
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("not a timestamp: %s", string(raw))
	}
	return n, nil
}

// klineQuery encodes the shared query parameters for kline-style endpoints.
func klineQuery(symbolKey, symbol, intervalKey, interval, startKey, endKey, limitKey string, window models.TimeRange, limit int) url.Values {
	params := url.Values{}
	params.Set(symbolKey, symbol)
	params.Set(intervalKey, interval)
	params.Set(startKey, strconv.FormatUint(window.Start, 10))
	params.Set(endKey, strconv.FormatUint(window.End, 10))
	params.Set(limitKey, strconv.Itoa(limit))
	return params
}
