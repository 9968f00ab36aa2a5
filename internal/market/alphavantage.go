package market

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultAlphaVantageURL     = "https://www.alphavantage.co"
	defaultAlphaVantageTimeout = 30 * time.Second
)

// AlphaVantageOptions 配置 Alpha Vantage 数据源。
type AlphaVantageOptions struct {
	APIKey   string
	BaseURL  string
	Exchange string
	Timeout  time.Duration
}

// AlphaVantageSupplier 通过 Alpha Vantage REST 接口拉取 CSV 格式的行情。
type AlphaVantageSupplier struct {
	client   *resty.Client
	apiKey   string
	exchange string
	logger   *zap.Logger
}

// NewAlphaVantageSupplier 创建 AlphaVantageSupplier，APIKey 为必填项。
func NewAlphaVantageSupplier(opts AlphaVantageOptions, logger *zap.Logger) (Supplier, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("market: alphavantage 需要配置 api_key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultAlphaVantageURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultAlphaVantageTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "text/csv")

	return &AlphaVantageSupplier{
		client:   client,
		apiKey:   opts.APIKey,
		exchange: strings.ToUpper(strings.TrimSpace(opts.Exchange)),
		logger:   logger,
	}, nil
}

func (s *AlphaVantageSupplier) Name() string { return "alphavantage" }

// Series 获取日线（1d）或分钟线（如 5m、15m）收盘价。
func (s *AlphaVantageSupplier) Series(ctx context.Context, ticker, interval string) (Series, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Series{}, fmt.Errorf("%w: 标的为空", ErrInvalidInput)
	}

	params := s.queryParams(ticker, interval)

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/query")
	if err != nil {
		return Series{}, fmt.Errorf("market: 请求 Alpha Vantage 失败: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return Series{}, fmt.Errorf("market: Alpha Vantage 返回状态码 %d", resp.StatusCode())
	}

	body := resp.Body()
	// 限流或参数错误时接口仍返回 200，正文为 JSON 提示
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		return Series{}, fmt.Errorf("market: Alpha Vantage 拒绝请求: %s", string(trimmed))
	}

	series, err := ParseCSV(bytes.NewReader(body), ticker, interval)
	if err != nil {
		return Series{}, fmt.Errorf("market: 解析 Alpha Vantage 响应失败: %w", err)
	}

	s.logger.Debug("Alpha Vantage 数据获取完成",
		zap.String("ticker", ticker),
		zap.String("function", params["function"]),
		zap.Int("bars", series.Len()),
	)
	return series, nil
}

func (s *AlphaVantageSupplier) queryParams(ticker, interval string) map[string]string {
	symbol := ticker
	if s.exchange != "" {
		symbol = s.exchange + ":" + ticker
	}

	params := map[string]string{
		"symbol":     symbol,
		"apikey":     s.apiKey,
		"outputsize": "full",
		"datatype":   "csv",
	}

	switch iv := strings.ToLower(strings.TrimSpace(interval)); iv {
	case "", "1d", "daily":
		params["function"] = "TIME_SERIES_DAILY_ADJUSTED"
	default:
		params["function"] = "TIME_SERIES_INTRADAY"
		params["interval"] = strings.TrimSuffix(strings.TrimSuffix(iv, "min"), "m") + "min"
	}
	return params
}
