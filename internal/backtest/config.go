package backtest

// Config 定义回测参数。
type Config struct {
	Ticker         string  // 标的名称
	InitialCash    float64 // 初始现金
	PeriodsPerYear float64 // 每年的K线数量，用于年化夏普比率
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = 10000
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 252
	}
	return cfg
}

// PeriodsPerYear 根据K线周期估算每年的K线数量，未知周期按日线处理。
func PeriodsPerYear(interval string) float64 {
	switch interval {
	case "1m", "1min":
		return 252 * 390
	case "5m", "5min":
		return 252 * 78
	case "15m", "15min":
		return 252 * 26
	case "30m", "30min":
		return 252 * 13
	case "1h", "60min", "60m":
		return 24 * 365
	case "4h":
		return 6 * 365
	case "1w", "1wk", "weekly":
		return 52
	default:
		return 252
	}
}
