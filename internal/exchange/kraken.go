package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/pkg/models"
)

// KrakenClient fetches OHLC data from the Kraken REST API. The response wraps
// the candle array in a result object keyed by Kraken's own pair name next to
// a "last" cursor; the candle array is the first key that is not "last".
// That rule is fragile if a response ever carries more than one non-"last"
// key, but it is how the API behaves and is kept as-is.
type KrakenClient struct {
	client  *http.Client
	baseURL string
	logger  *logrus.Entry
}

// NewKrakenClient creates a Kraken adapter.
func NewKrakenClient(httpClient *http.Client, logger *logrus.Logger) *KrakenClient {
	return &KrakenClient{
		client:  httpClient,
		baseURL: "https://api.kraken.com",
		logger:  logger.WithField("component", "kraken"),
	}
}

// Fetch implements Client.
func (k *KrakenClient) Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error) {
	effective := cfg.EffectiveCandleCount()

	pair := strings.ToUpper(cfg.Coin + cfg.Quote)
	params := url.Values{}
	params.Set("pair", pair)
	params.Set("interval", translateInterval(krakenIntervals, cfg.Interval, "60"))
	// Kraken's cursor is in seconds.
	params.Set("since", strconv.FormatUint(window.Start/1000, 10))

	fullURL := fmt.Sprintf("%s/0/public/OHLC?%s", k.baseURL, params.Encode())
	resp, err := httpGet(ctx, k.client, fullURL)
	if err != nil {
		return nil, fetchErr(models.ExchangeKraken, "fetch OHLC", err)
	}
	defer resp.Body.Close()

	var wrapper struct {
		Error  []string                   `json:"error"`
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fetchErr(models.ExchangeKraken, "parse OHLC", fmt.Errorf("failed to decode response: %w", err))
	}
	if len(wrapper.Error) > 0 {
		return nil, fetchErr(models.ExchangeKraken, "fetch OHLC", fmt.Errorf("API error: %s", strings.Join(wrapper.Error, "; ")))
	}

	rows, err := krakenCandleRows(wrapper.Result)
	if err != nil {
		return nil, fetchErr(models.ExchangeKraken, "parse OHLC", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseKrakenRow(row)
		if err != nil {
			return nil, fetchErr(models.ExchangeKraken, "parse OHLC", err)
		}
		candles = append(candles, c)
	}

	candles = retainTail(candles, effective)
	if len(candles) == 0 {
		return nil, fetchErr(models.ExchangeKraken, "fetch OHLC", fmt.Errorf("empty candle series for %s", pair))
	}

	k.logger.WithFields(logrus.Fields{
		"pair":     pair,
		"interval": cfg.Interval,
		"count":    len(candles),
	}).Debug("Fetched OHLC")

	return candles, nil
}

// krakenCandleRows extracts the candle array: the first result key whose name
// is not "last".
func krakenCandleRows(result map[string]json.RawMessage) ([][]json.RawMessage, error) {
	for key, raw := range result {
		if key == "last" {
			continue
		}
		var rows [][]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("candle array under %q: %w", key, err)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("no pair key in result")
}

// parseKrakenRow decodes one [time_s, open, high, low, close, vwap, volume,
// count] row. Time is seconds and converted to milliseconds; volume sits at
// index 6, after the vwap column.
func parseKrakenRow(row []json.RawMessage) (models.Candle, error) {
	var c models.Candle
	if len(row) < 8 {
		return c, fmt.Errorf("OHLC row has %d fields, want 8", len(row))
	}

	sec, err := parseRawUint(row[0])
	if err != nil {
		return c, fmt.Errorf("time: %w", err)
	}
	c.Timestamp = sec * 1000

	fields := []struct {
		name string
		dst  *float64
		raw  json.RawMessage
	}{
		{"open", &c.Open, row[1]},
		{"high", &c.High, row[2]},
		{"low", &c.Low, row[3]},
		{"close", &c.Close, row[4]},
		{"volume", &c.Volume, row[6]},
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
