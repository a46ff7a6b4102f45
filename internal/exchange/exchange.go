// Package exchange normalizes the five supported exchange REST APIs into the
// canonical candle model. Adapter selection is a closed switch over the
// exchange ID, done once per chart config.
package exchange

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/pkg/models"
)

// OverFetchMargin is added to the effective candle count on every request so
// the retained tail is full even when the exchange omits the newest bars.
const OverFetchMargin = 50

// Request limit caps per adapter family.
const (
	klineLimitCap    = 1000 // binance/bybit kline endpoints
	snapshotLimitCap = 1000 // crypto.com candlestick snapshot
	poloniexLimitCap = 500  // poloniex underscore-pair endpoint
)

// Client fetches a candle series for one chart configuration. Either a full
// series in ascending time order is returned, or an error; never a partial
// result.
type Client interface {
	Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error)
}

// ForExchange selects the adapter for an exchange ID. The returned client is
// bound to that exchange for its lifetime.
func ForExchange(id models.ExchangeID, httpClient *http.Client, logger *logrus.Logger) (Client, error) {
	switch id {
	case models.ExchangeCryptoCom:
		return NewCryptoComClient(httpClient, logger), nil
	case models.ExchangeBinance:
		return NewBinanceClient(httpClient, logger), nil
	case models.ExchangeBybit:
		return NewBybitClient(httpClient, logger), nil
	case models.ExchangeKraken:
		return NewKrakenClient(httpClient, logger), nil
	case models.ExchangePoloniex:
		return NewPoloniexClient(httpClient, logger), nil
	default:
		return nil, fmt.Errorf("no adapter for exchange %d", id)
	}
}

// NewHTTPClient returns the shared HTTP client used by all adapters, bounded
// by the configured fetch timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// FetchError is any failure while fetching or parsing one chart's candles.
// The chart's prior state is retained by the caller and the global failure
// counter is incremented.
type FetchError struct {
	Exchange models.ExchangeID
	Op       string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Exchange, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchErr(exchange models.ExchangeID, op string, err error) error {
	return &FetchError{Exchange: exchange, Op: op, Err: err}
}

// requestCount is the number of candles to ask the exchange for: the
// effective count plus the over-fetch margin, capped per adapter.
func requestCount(effective, cap int) int {
	n := effective + OverFetchMargin
	if n > cap {
		n = cap
	}
	return n
}

// retainTail keeps the last `effective` candles of a fetched series,
// preserving ascending order. skip = max(0, total - effective).
func retainTail(candles []models.Candle, effective int) []models.Candle {
	skip := len(candles) - effective
	if skip < 0 {
		skip = 0
	}
	return candles[skip:]
}

// httpGet issues a GET, checks the status, and hands the body to the caller.
func httpGet(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("API error: status=%d", resp.StatusCode)
	}
	return resp, nil
}
