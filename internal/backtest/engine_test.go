package backtest

import (
	"context"
	"errors"
	"math"
	"testing"

	"trades-rl/internal/agent"
	"trades-rl/internal/market"
)

type fakeTrader struct {
	sim      agent.Simulation
	err      error
	gotCash  float64
	gotClose []float64
}

func (f *fakeTrader) Simulate(series []float64, initialCash float64) (agent.Simulation, error) {
	f.gotClose = series
	f.gotCash = initialCash
	return f.sim, f.err
}

func TestEngineRun_ComputesCurveAndCounts(t *testing.T) {
	trader := &fakeTrader{sim: agent.Simulation{
		InitialCash: 100,
		Steps: []agent.SimulationStep{
			{Index: 2, Price: 10, Action: agent.ActionBuy, Cash: 90, Equity: 100},
			{Index: 3, Price: 8, Action: agent.ActionHold, Cash: 90, Equity: 98},
			{Index: 4, Price: 12, Action: agent.ActionSell, Cash: 102, Equity: 102},
			{Index: 5, Price: 11, Action: agent.ActionSell, Cash: 102, Equity: 102},
		},
		FinalCash:      102,
		FinalEquity:    102,
		RealizedProfit: 2,
		ProfitPct:      2,
	}}

	engine, err := NewEngine(Config{Ticker: "ABC", InitialCash: 100}, trader, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	result, err := engine.Run(context.Background(), market.FromCloses("ABC", []float64{1, 2, 10, 8, 12, 11, 13}))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if trader.gotCash != 100 || len(trader.gotClose) != 7 {
		t.Errorf("unexpected simulate call cash=%f len=%d", trader.gotCash, len(trader.gotClose))
	}
	wantCurve := []float64{100, 100, 98, 102, 102}
	if len(result.EquityCurve) != len(wantCurve) {
		t.Fatalf("expected curve %v, got %v", wantCurve, result.EquityCurve)
	}
	for i := range wantCurve {
		if result.EquityCurve[i] != wantCurve[i] {
			t.Errorf("curve[%d]=%f, want %f", i, result.EquityCurve[i], wantCurve[i])
		}
	}
	// 空仓卖出不计为成交
	if result.Buys != 1 || result.Sells != 1 || result.Holds != 2 {
		t.Errorf("unexpected counts buys=%d sells=%d holds=%d", result.Buys, result.Sells, result.Holds)
	}
	if math.Abs(result.Metrics.TotalReturn-0.02) > 1e-12 {
		t.Errorf("expected total return 0.02, got %f", result.Metrics.TotalReturn)
	}
	if math.Abs(result.Metrics.MaxDrawdown-0.02) > 1e-12 {
		t.Errorf("expected max drawdown 0.02, got %f", result.Metrics.MaxDrawdown)
	}
	if math.Abs(result.Metrics.BuyAndHoldReturn-0.1) > 1e-12 {
		t.Errorf("expected buy-and-hold 0.1, got %f", result.Metrics.BuyAndHoldReturn)
	}
	if math.Abs(result.Metrics.ExcessReturn-(0.02-0.1)) > 1e-12 {
		t.Errorf("unexpected excess return %f", result.Metrics.ExcessReturn)
	}
}

func TestEngineRun_PropagatesSimulateError(t *testing.T) {
	boom := errors.New("bad series")
	engine, _ := NewEngine(Config{}, &fakeTrader{err: boom}, nil)
	if _, err := engine.Run(context.Background(), market.FromCloses("X", []float64{1, 2, 3})); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped simulate error, got %v", err)
	}
}

func TestNewEngine_RequiresTrader(t *testing.T) {
	if _, err := NewEngine(Config{}, nil, nil); err == nil {
		t.Fatalf("expected error for nil trader")
	}
}

func TestComputeSharpe(t *testing.T) {
	if got := computeSharpe([]float64{0.01, 0.01}, 252); got != 0 {
		t.Errorf("zero variance should yield 0, got %f", got)
	}
	returns := []float64{0.01, -0.01, 0.02}
	mean := 0.02 / 3
	variance := (math.Pow(0.01-mean, 2) + math.Pow(-0.01-mean, 2) + math.Pow(0.02-mean, 2)) / 2
	want := mean / math.Sqrt(variance) * math.Sqrt(252)
	if got := computeSharpe(returns, 252); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected sharpe %f, got %f", want, got)
	}
}

func TestPeriodsPerYear(t *testing.T) {
	if PeriodsPerYear("1d") != 252 || PeriodsPerYear("1h") != 24*365 || PeriodsPerYear("weird") != 252 {
		t.Errorf("unexpected periods per year mapping")
	}
}
