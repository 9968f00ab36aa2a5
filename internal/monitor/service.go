package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trades-rl/internal/agent"
	"trades-rl/internal/backtest"
	"trades-rl/internal/store"
)

// Service 负责持久化监控事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	ticker TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
CREATE INDEX IF NOT EXISTS idx_monitor_events_ticker ON monitor_events(ticker);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, ticker, payload, created_at) VALUES (?, ?, ?, ?)`,
		string(event.Type), event.Ticker, string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordEpoch 记录单轮训练汇总。
func (s *Service) RecordEpoch(ctx context.Context, ticker string, summary agent.EpochSummary) {
	s.recordOrWarn(ctx, Event{Type: EventEpochSummary, Ticker: ticker, Payload: summary}, "记录训练轮次事件失败")
}

// RecordTrainingRun 记录一次训练的整体结果。
func (s *Service) RecordTrainingRun(ctx context.Context, ticker string, payload TrainingRunPayload) {
	s.recordOrWarn(ctx, Event{Type: EventTrainingRun, Ticker: ticker, Payload: payload}, "记录训练事件失败")
}

// RecordBacktest 记录回测结果。
func (s *Service) RecordBacktest(ctx context.Context, result backtest.Result) {
	payload := BacktestPayload{
		Metrics:        result.Metrics,
		Buys:           result.Buys,
		Sells:          result.Sells,
		FinalEquity:    result.FinalEquity,
		RealizedProfit: result.RealizedProfit,
		ProfitPct:      result.ProfitPct,
	}
	s.recordOrWarn(ctx, Event{Type: EventBacktest, Ticker: result.Ticker, Payload: payload}, "记录回测事件失败")
}

// RecordCheckpoint 记录检查点的保存或恢复。
func (s *Service) RecordCheckpoint(ctx context.Context, ticker, action string, fields []string) {
	s.recordOrWarn(ctx, Event{
		Type:    EventCheckpoint,
		Ticker:  ticker,
		Payload: CheckpointPayload{Action: action, Fields: fields},
	}, "记录检查点事件失败")
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, ticker, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Context: ctxMap,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	s.recordOrWarn(ctx, Event{Type: EventError, Ticker: ticker, Payload: payload}, "记录异常事件失败")
}

func (s *Service) recordOrWarn(ctx context.Context, event Event, msg string) {
	event.Timestamp = time.Now().UTC()
	if err := s.Record(ctx, event); err != nil {
		s.logger.Warn(msg, zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// ListEvents 按条件检索最近事件，按写入顺序倒序返回。
func (s *Service) ListEvents(ctx context.Context, filter Filter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, ticker, payload, created_at FROM monitor_events WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if filter.Type != "" {
		query += ` AND event_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			ticker  string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &ticker, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Ticker:    ticker,
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}

// History 按时间顺序汇总某标的已记录的训练轮次。
func (s *Service) History(ctx context.Context, ticker string, limit int) (agent.History, error) {
	events, err := s.ListEvents(ctx, Filter{Type: EventEpochSummary, Ticker: ticker, Limit: limit})
	if err != nil {
		return agent.History{}, err
	}

	var hist agent.History
	for i := len(events) - 1; i >= 0; i-- {
		raw, ok := events[i].Payload.(json.RawMessage)
		if !ok {
			continue
		}
		var summary agent.EpochSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			return agent.History{}, fmt.Errorf("monitor: 解析训练轮次失败: %w", err)
		}
		hist.Epochs = append(hist.Epochs, summary.Epoch)
		hist.Profit = append(hist.Profit, summary.TotalProfit)
		hist.TotalMoney = append(hist.TotalMoney, summary.FinalCash)
	}
	return hist, nil
}
