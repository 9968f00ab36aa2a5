package backtest

import "trades-rl/internal/agent"

// Trader 以贪心策略回放价格序列，*agent.Agent 实现了该接口。
type Trader interface {
	Simulate(series []float64, initialCash float64) (agent.Simulation, error)
}
