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

// BinanceClient fetches klines from the Binance spot REST API.
type BinanceClient struct {
	client  *http.Client
	baseURL string
	kline   *klineClient
}

// NewBinanceClient creates a Binance adapter.
func NewBinanceClient(httpClient *http.Client, logger *logrus.Logger) *BinanceClient {
	b := &BinanceClient{
		client:  httpClient,
		baseURL: "https://api.binance.com",
	}
	b.kline = &klineClient{
		exchange:  models.ExchangeBinance,
		doRequest: b.requestKlines,
		logger:    logger.WithField("component", "binance"),
	}
	return b
}

// Fetch implements Client.
func (b *BinanceClient) Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error) {
	return b.kline.Fetch(ctx, cfg, window)
}

func (b *BinanceClient) requestKlines(ctx context.Context, cfg models.ChartConfig, window models.TimeRange, limit int) ([][]json.RawMessage, error) {
	symbol := strings.ToUpper(cfg.Coin + cfg.Quote)
	interval := translateInterval(binanceIntervals, cfg.Interval, "1h")
	params := klineQuery("symbol", symbol, "interval", interval, "startTime", "endTime", "limit", window, limit)

	fullURL := fmt.Sprintf("%s/api/v3/klines?%s", b.baseURL, params.Encode())
	resp, err := httpGet(ctx, b.client, fullURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return rows, nil
}
