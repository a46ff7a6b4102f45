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

// PoloniexClient fetches candles from the Poloniex REST API: symbol is
// coin_quote with an underscore, intervals are UNIT_COUNT tokens, and the
// response is an array of objects with named fields.
type PoloniexClient struct {
	client  *http.Client
	baseURL string
	logger  *logrus.Entry
}

// NewPoloniexClient creates a Poloniex adapter.
func NewPoloniexClient(httpClient *http.Client, logger *logrus.Logger) *PoloniexClient {
	return &PoloniexClient{
		client:  httpClient,
		baseURL: "https://api.poloniex.com",
		logger:  logger.WithField("component", "poloniex"),
	}
}

// poloniexCandle is one response entry. Prices and quantity are decimal
// strings; startTime is milliseconds.
type poloniexCandle struct {
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Quantity  string `json:"quantity"`
	StartTime uint64 `json:"startTime"`
}

// Fetch implements Client.
func (p *PoloniexClient) Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error) {
	effective := cfg.EffectiveCandleCount()
	limit := requestCount(effective, poloniexLimitCap)

	symbol := strings.ToUpper(cfg.Coin + "_" + cfg.Quote)
	params := url.Values{}
	params.Set("interval", translateInterval(poloniexIntervals, cfg.Interval, "HOUR_1"))
	params.Set("startTime", strconv.FormatUint(window.Start, 10))
	params.Set("endTime", strconv.FormatUint(window.End, 10))
	params.Set("limit", strconv.Itoa(limit))

	fullURL := fmt.Sprintf("%s/markets/%s/candles?%s", p.baseURL, symbol, params.Encode())
	resp, err := httpGet(ctx, p.client, fullURL)
	if err != nil {
		return nil, fetchErr(models.ExchangePoloniex, "fetch candles", err)
	}
	defer resp.Body.Close()

	var entries []poloniexCandle
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fetchErr(models.ExchangePoloniex, "parse candles", fmt.Errorf("failed to decode response: %w", err))
	}

	candles := make([]models.Candle, 0, len(entries))
	for _, e := range entries {
		c, err := e.toCandle()
		if err != nil {
			return nil, fetchErr(models.ExchangePoloniex, "parse candles", err)
		}
		candles = append(candles, c)
	}

	candles = retainTail(candles, effective)
	if len(candles) == 0 {
		return nil, fetchErr(models.ExchangePoloniex, "fetch candles", fmt.Errorf("empty candle series for %s", symbol))
	}

	p.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"interval": cfg.Interval,
		"count":    len(candles),
	}).Debug("Fetched candles")

	return candles, nil
}

func (e *poloniexCandle) toCandle() (models.Candle, error) {
	var c models.Candle
	c.Timestamp = e.StartTime

	fields := []struct {
		name string
		dst  *float64
		raw  string
	}{
		{"open", &c.Open, e.Open},
		{"high", &c.High, e.High},
		{"low", &c.Low, e.Low},
		{"close", &c.Close, e.Close},
		{"quantity", &c.Volume, e.Quantity},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return c, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return c, nil
}
