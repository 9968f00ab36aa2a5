package backtest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trades-rl/internal/agent"
	"trades-rl/internal/market"
)

// Result 汇总回测结果。
type Result struct {
	Ticker         string    `json:"ticker"`
	Metrics        Metrics   `json:"metrics"`
	EquityCurve    []float64 `json:"equity_curve"`
	ReturnSeries   []float64 `json:"return_series"`
	Buys           int       `json:"buys"`
	Sells          int       `json:"sells"`
	Holds          int       `json:"holds"`
	FinalCash      float64   `json:"final_cash"`
	FinalEquity    float64   `json:"final_equity"`
	RealizedProfit float64   `json:"realized_profit"`
	ProfitPct      float64   `json:"profit_pct"`
}

// Trades 返回实际成交次数。
func (r Result) Trades() int {
	return r.Buys + r.Sells
}

// Engine 以贪心策略回放训练好的智能体并计算绩效。
type Engine struct {
	cfg    Config
	trader Trader
	logger *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, trader Trader, logger *zap.Logger) (*Engine, error) {
	if trader == nil {
		return nil, fmt.Errorf("backtest: trader 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg.normalize(),
		trader: trader,
		logger: logger,
	}, nil
}

// Run 在 series 上执行一次完整回测。
func (e *Engine) Run(ctx context.Context, series market.Series) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	closes := series.Closes()
	sim, err := e.trader.Simulate(closes, e.cfg.InitialCash)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: 回放 %s 失败: %w", e.cfg.Ticker, err)
	}

	result := Result{
		Ticker:         e.cfg.Ticker,
		EquityCurve:    make([]float64, 0, len(sim.Steps)+1),
		FinalCash:      sim.FinalCash,
		FinalEquity:    sim.FinalEquity,
		RealizedProfit: sim.RealizedProfit,
		ProfitPct:      sim.ProfitPct,
	}
	result.EquityCurve = append(result.EquityCurve, sim.InitialCash)

	prevCash := sim.InitialCash
	for _, step := range sim.Steps {
		result.EquityCurve = append(result.EquityCurve, step.Equity)
		// 现金未变化说明动作被账本忽略
		switch {
		case step.Action == agent.ActionBuy && step.Cash < prevCash:
			result.Buys++
		case step.Action == agent.ActionSell && step.Cash > prevCash:
			result.Sells++
		default:
			result.Holds++
		}
		prevCash = step.Cash
	}

	result.ReturnSeries = computeReturns(result.EquityCurve)
	result.Metrics = calculateMetrics(result.EquityCurve, result.ReturnSeries, e.cfg.PeriodsPerYear)
	if len(sim.Steps) > 0 {
		first := sim.Steps[0].Price
		last := sim.Steps[len(sim.Steps)-1].Price
		if first > 0 {
			result.Metrics.BuyAndHoldReturn = last/first - 1
		}
	}
	result.Metrics.ExcessReturn = result.Metrics.TotalReturn - result.Metrics.BuyAndHoldReturn

	e.logger.Info("回测完成",
		zap.String("ticker", e.cfg.Ticker),
		zap.Int("steps", len(sim.Steps)),
		zap.Int("trades", result.Trades()),
		zap.Float64("total_return", result.Metrics.TotalReturn),
		zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
		zap.Float64("sharpe", result.Metrics.SharpeRatio),
	)

	return result, nil
}
