package exchange

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trades-rl/internal/market"
)

// Supplier 以交易所K线收盘价作为训练数据来源。
type Supplier struct {
	client *Client
	limit  int64
	logger *zap.Logger
}

// NewSupplier 创建基于 Client 的数据源，limit 为单次拉取的K线数量。
func NewSupplier(client *Client, limit int, logger *zap.Logger) *Supplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supplier{client: client, limit: int64(limit), logger: logger}
}

func (s *Supplier) Name() string { return "exchange" }

// Series 拉取交易对 ticker 在 interval 周期上的K线。
func (s *Supplier) Series(ctx context.Context, ticker, interval string) (market.Series, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return market.Series{}, fmt.Errorf("%w: 交易对为空", market.ErrInvalidInput)
	}
	if interval == "" {
		interval = "1d"
	}

	candles, err := s.client.FetchCandles(ctx, symbol, interval, s.limit)
	if err != nil {
		return market.Series{}, fmt.Errorf("exchange: 获取 %s K线失败: %w", symbol, err)
	}

	s.logger.Debug("交易所K线获取完成",
		zap.String("symbol", symbol),
		zap.String("timeframe", interval),
		zap.Int("candles", len(candles)),
	)
	return ToSeries(symbol, interval, candles), nil
}

// Register 将 exchange 数据源注册到 market.Registry。
func Register(reg *market.Registry) {
	reg.Register("exchange", func(deps market.Deps) (market.Supplier, error) {
		client, err := NewClient(deps.Exchange, deps.Logger.Named("exchange"))
		if err != nil {
			return nil, err
		}
		return NewSupplier(client, deps.Source.Limit, deps.Logger), nil
	})
}
