package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/pkg/models"
)

// CryptoComClient fetches candlestick snapshots from the Crypto.com exchange
// API: a single POST with the pair, interval and window in the JSON body,
// answered by an array of objects with decimal-string OHLCV fields.
type CryptoComClient struct {
	client  *http.Client
	baseURL string
	logger  *logrus.Entry
}

// NewCryptoComClient creates a Crypto.com adapter.
func NewCryptoComClient(httpClient *http.Client, logger *logrus.Logger) *CryptoComClient {
	return &CryptoComClient{
		client:  httpClient,
		baseURL: "https://api.crypto.com",
		logger:  logger.WithField("component", "cryptocom"),
	}
}

// cryptoComRequest is the POST body of a candlestick snapshot request.
type cryptoComRequest struct {
	Coin     string `json:"coin"`
	Quote    string `json:"quote"`
	Interval string `json:"interval"`
	Start    uint64 `json:"start"`
	End      uint64 `json:"end"`
	Count    int    `json:"count"`
}

// cryptoComCandle is one snapshot entry: decimal-string OHLCV plus the bar
// open time in milliseconds.
type cryptoComCandle struct {
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
	Time   uint64 `json:"t"`
}

// Fetch implements Client.
func (c *CryptoComClient) Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error) {
	effective := cfg.EffectiveCandleCount()

	body := cryptoComRequest{
		Coin:     strings.ToUpper(cfg.Coin),
		Quote:    strings.ToUpper(cfg.Quote),
		Interval: translateInterval(cryptoComIntervals, cfg.Interval, "1h"),
		Start:    window.Start,
		End:      window.End,
		Count:    requestCount(effective, snapshotLimitCap),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fetchErr(models.ExchangeCryptoCom, "encode request", err)
	}

	fullURL := fmt.Sprintf("%s/exchange/v1/public/get-candlestick", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fetchErr(models.ExchangeCryptoCom, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fetchErr(models.ExchangeCryptoCom, "fetch candlesticks", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fetchErr(models.ExchangeCryptoCom, "fetch candlesticks",
			fmt.Errorf("API error: status=%d body=%s", resp.StatusCode, string(errBody)))
	}

	var entries []cryptoComCandle
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fetchErr(models.ExchangeCryptoCom, "parse candlesticks", fmt.Errorf("failed to decode response: %w", err))
	}

	candles := make([]models.Candle, 0, len(entries))
	for _, e := range entries {
		parsed, err := e.toCandle()
		if err != nil {
			return nil, fetchErr(models.ExchangeCryptoCom, "parse candlesticks", err)
		}
		candles = append(candles, parsed)
	}

	candles = retainTail(candles, effective)
	if len(candles) == 0 {
		return nil, fetchErr(models.ExchangeCryptoCom, "fetch candlesticks",
			fmt.Errorf("empty candle series for %s/%s", body.Coin, body.Quote))
	}

	c.logger.WithFields(logrus.Fields{
		"pair":     body.Coin + body.Quote,
		"interval": cfg.Interval,
		"count":    len(candles),
	}).Debug("Fetched candlesticks")

	return candles, nil
}

func (e *cryptoComCandle) toCandle() (models.Candle, error) {
	var c models.Candle
	c.Timestamp = e.Time

	fields := []struct {
		name string
		dst  *float64
		raw  string
	}{
		{"o", &c.Open, e.Open},
		{"h", &c.High, e.High},
		{"l", &c.Low, e.Low},
		{"c", &c.Close, e.Close},
		{"v", &c.Volume, e.Volume},
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
