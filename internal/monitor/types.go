package monitor

import (
	"time"

	"trades-rl/internal/agent"
	"trades-rl/internal/backtest"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventEpochSummary EventType = "epoch_summary"
	EventTrainingRun  EventType = "training_run"
	EventBacktest     EventType = "backtest"
	EventCheckpoint   EventType = "checkpoint"
	EventError        EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Ticker    string      `json:"ticker,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Filter 为事件查询条件，零值表示不过滤。
type Filter struct {
	Type   EventType
	Ticker string
	Limit  int
}

// TrainingRunPayload 记录一次完整训练。
type TrainingRunPayload struct {
	Model    string        `json:"model"`
	Epochs   int           `json:"epochs"`
	Bars     int           `json:"bars"`
	Epsilon  float64       `json:"epsilon"`
	Memory   int           `json:"memory"`
	Duration time.Duration `json:"duration"`
	History  agent.History `json:"history"`
}

// BacktestPayload 记录贪心回测结果，省略逐步权益曲线。
type BacktestPayload struct {
	Metrics        backtest.Metrics `json:"metrics"`
	Buys           int              `json:"buys"`
	Sells          int              `json:"sells"`
	FinalEquity    float64          `json:"final_equity"`
	RealizedProfit float64          `json:"realized_profit"`
	ProfitPct      float64          `json:"profit_pct"`
}

// CheckpointPayload 记录检查点的保存或恢复。
type CheckpointPayload struct {
	Action string   `json:"action"`
	Fields []string `json:"fields"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
