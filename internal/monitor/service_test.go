package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"trades-rl/internal/agent"
	"trades-rl/internal/backtest"
	"trades-rl/internal/config"
	"trades-rl/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(st, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestService_RecordsAndFiltersEvents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.RecordEpoch(ctx, "AAA", agent.EpochSummary{Epoch: 0, TotalProfit: 1, FinalCash: 101})
	svc.RecordEpoch(ctx, "BBB", agent.EpochSummary{Epoch: 0, TotalProfit: 2, FinalCash: 102})
	svc.RecordBacktest(ctx, backtest.Result{Ticker: "AAA", Buys: 3, Sells: 2})
	svc.RecordCheckpoint(ctx, "AAA", "save", []string{"epsilon", "ledger"})
	svc.RecordError(ctx, "AAA", "训练失败", errors.New("boom"), map[string]interface{}{"epoch": 3})

	all, err := svc.ListEvents(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}
	if all[0].Type != EventError {
		t.Errorf("expected newest event first, got %s", all[0].Type)
	}

	aaa, err := svc.ListEvents(ctx, Filter{Ticker: "AAA"})
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(aaa) != 4 {
		t.Errorf("expected 4 AAA events, got %d", len(aaa))
	}

	backtests, err := svc.ListEvents(ctx, Filter{Type: EventBacktest})
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(backtests) != 1 {
		t.Fatalf("expected 1 backtest event, got %d", len(backtests))
	}
	var payload BacktestPayload
	if err := json.Unmarshal(backtests[0].Payload.(json.RawMessage), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Buys != 3 || payload.Sells != 2 {
		t.Errorf("unexpected backtest payload %+v", payload)
	}

	limited, _ := svc.ListEvents(ctx, Filter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestService_HistoryIsChronological(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.RecordEpoch(ctx, "AAA", agent.EpochSummary{Epoch: i * 2, TotalProfit: float64(i), FinalCash: 100 + float64(i)})
	}
	svc.RecordEpoch(ctx, "BBB", agent.EpochSummary{Epoch: 9})

	hist, err := svc.History(ctx, "AAA", 0)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if hist.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", hist.Len())
	}
	for i, epoch := range hist.Epochs {
		if epoch != i*2 {
			t.Errorf("epochs[%d]=%d, want %d", i, epoch, i*2)
		}
		if hist.TotalMoney[i] != 100+float64(i) {
			t.Errorf("total_money[%d]=%f", i, hist.TotalMoney[i])
		}
	}
}

func TestNewService_RequiresStore(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
