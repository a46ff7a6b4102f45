package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/pkg/models"
)

// BybitClient fetches spot klines from the Bybit REST API. The wire shape is
// the same array-of-arrays kline format as Binance behind a thin result
// wrapper, so the shared kline adapter does the heavy lifting.
type BybitClient struct {
	client  *http.Client
	baseURL string
	kline   *klineClient
}

// NewBybitClient creates a Bybit adapter.
func NewBybitClient(httpClient *http.Client, logger *logrus.Logger) *BybitClient {
	b := &BybitClient{
		client:  httpClient,
		baseURL: "https://api.bybit.com",
	}
	b.kline = &klineClient{
		exchange:  models.ExchangeBybit,
		doRequest: b.requestKlines,
		logger:    logger.WithField("component", "bybit"),
	}
	return b
}

// Fetch implements Client.
func (b *BybitClient) Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error) {
	return b.kline.Fetch(ctx, cfg, window)
}

func (b *BybitClient) requestKlines(ctx context.Context, cfg models.ChartConfig, window models.TimeRange, limit int) ([][]json.RawMessage, error) {
	symbol := strings.ToUpper(cfg.Coin + cfg.Quote)
	interval := translateInterval(bybitIntervals, cfg.Interval, "60")
	params := klineQuery("symbol", symbol, "interval", interval, "start", "end", "limit", window, limit)
	params.Set("category", "spot")

	fullURL := fmt.Sprintf("%s/v5/market/kline?%s", b.baseURL, params.Encode())
	resp, err := httpGet(ctx, b.client, fullURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wrapper struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]json.RawMessage `json:"list"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if wrapper.RetCode != 0 {
		return nil, fmt.Errorf("API error: code=%d msg=%s", wrapper.RetCode, wrapper.RetMsg)
	}

	// Bybit returns rows newest-first; flip to ascending before the shared
	// parse so the tail slice keeps the most recent candles.
	rows := wrapper.Result.List
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
