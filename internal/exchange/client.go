package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"trades-rl/internal/config"
)

// ohlcvSource 为拉取K线所需的最小交易所能力。
type ohlcvSource interface {
	loadMarkets() error
	fetchOHLCV(symbol, timeframe string, limit int64) ([]ccxt.OHLCV, error)
}

type binanceUSDM struct {
	ex *ccxt.Binanceusdm
}

func (b binanceUSDM) loadMarkets() error {
	_, err := b.ex.LoadMarkets()
	return err
}

func (b binanceUSDM) fetchOHLCV(symbol, timeframe string, limit int64) ([]ccxt.OHLCV, error) {
	return b.ex.FetchOHLCV(
		symbol,
		ccxt.WithFetchOHLCVTimeframe(timeframe),
		ccxt.WithFetchOHLCVLimit(limit),
	)
}

// Client 负责从交易所拉取K线并实现重试机制，可被多个标的共享。
type Client struct {
	source ohlcvSource
	retry  retrier
	logger *zap.Logger

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 根据配置构造交易所客户端，目前支持 binanceusdm。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name != "" && name != "binanceusdm" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Name)
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}
	if cfg.APIPass != "" {
		userConfig["password"] = cfg.APIPass
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return newClient(binanceUSDM{ex: ex}, cfg.Retry, logger), nil
}

func newClient(source ohlcvSource, retry config.RetryConfig, logger *zap.Logger) *Client {
	return &Client{
		source: source,
		retry:  retrier{cfg: retry, logger: logger},
		logger: logger,
	}
}

// FetchCandles 获取指定交易对与周期的K线数据，按时间升序返回。
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int64) ([]Candle, error) {
	if limit <= 0 {
		limit = defaultCandleLimit
	}

	var raw []ccxt.OHLCV
	err := c.retry.do(ctx, fmt.Sprintf("fetch_ohlcv_%s_%s", symbol, timeframe), func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.source.fetchOHLCV(symbol, timeframe, limit)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for _, item := range raw {
		candles = append(candles, Candle{
			Timestamp: time.UnixMilli(item.Timestamp).UTC(),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}
	return candles, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	if err := c.retry.do(ctx, "load_markets", c.source.loadMarkets); err != nil {
		return err
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载")
	return nil
}
