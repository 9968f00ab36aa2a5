package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultYahooLookback = 2 * 365 * 24 * time.Hour

// YahooSupplier 通过 Yahoo Finance 图表接口获取历史收盘价。
type YahooSupplier struct {
	lookback time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewYahooSupplier 创建 YahooSupplier，lookback 为向前拉取的时间跨度。
func NewYahooSupplier(lookback time.Duration, logger *zap.Logger) *YahooSupplier {
	if lookback <= 0 {
		lookback = defaultYahooLookback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YahooSupplier{
		lookback: lookback,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *YahooSupplier) Name() string { return "yahoo" }

// Series 拉取 [now-lookback, now] 区间内的K线收盘价。
func (s *YahooSupplier) Series(ctx context.Context, ticker, interval string) (Series, error) {
	if err := ctx.Err(); err != nil {
		return Series{}, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return Series{}, fmt.Errorf("%w: 标的为空", ErrInvalidInput)
	}

	end := s.now().UTC()
	start := end.Add(-s.lookback)

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: yahooInterval(interval),
	}

	iter := chart.Get(params)
	points := make([]Point, 0, 512)
	for iter.Next() {
		bar := iter.Bar()
		price := bar.AdjClose
		if price.IsZero() {
			price = bar.Close
		}
		closePrice, ok := toFloat(price)
		if !ok {
			continue
		}
		points = append(points, Point{
			Timestamp: time.Unix(int64(bar.Timestamp), 0).UTC(),
			Close:     closePrice,
		})
	}
	if err := iter.Err(); err != nil {
		return Series{}, fmt.Errorf("market: 获取 %s 的 Yahoo 数据失败: %w", symbol, err)
	}

	s.logger.Debug("Yahoo 数据获取完成",
		zap.String("ticker", symbol),
		zap.String("interval", interval),
		zap.Int("bars", len(points)),
	)

	return NewSeries(symbol, interval, points), nil
}

func yahooInterval(interval string) datetime.Interval {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "", "1d", "daily":
		return datetime.OneDay
	case "1h", "60m", "hourly":
		return datetime.Interval("1h")
	default:
		return datetime.Interval(interval)
	}
}

// 停牌等空K线的价格为0，直接跳过
func toFloat(d decimal.Decimal) (float64, bool) {
	if d.IsZero() {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
