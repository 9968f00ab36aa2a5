package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"trades-rl/internal/agent"
	"trades-rl/internal/backtest"
	"trades-rl/internal/config"
	"trades-rl/internal/feature"
	"trades-rl/internal/log"
	"trades-rl/internal/market"
	"trades-rl/internal/monitor"
	"trades-rl/internal/qnet"
	"trades-rl/internal/store"
)

// 检查点字段名。
const (
	fieldEpsilon = "epsilon"
	fieldLedger  = "ledger"
	fieldMemory  = "memory"
	fieldHistory = "history"
	fieldNetwork = "network"
)

// pipeline 负责单个标的的 拉取数据 -> 训练 -> 检查点 -> 回测 流程。
type pipeline struct {
	ticker   string
	interval string
	owner    string

	training    config.TrainingConfig
	initialCash float64
	modelName   string
	spec        qnet.Spec

	supplier market.Supplier
	models   *qnet.Registry
	model    qnet.Model
	agent    *agent.Agent
	store    *store.Store
	monitor  *monitor.Service
	logger   *zap.Logger

	resumed bool
}

type pipelineDeps struct {
	supplier market.Supplier
	models   *qnet.Registry
	store    *store.Store
	monitor  *monitor.Service
	logger   *zap.Logger
}

func newPipeline(cfg *config.Config, ticker string, seed uint64, deps pipelineDeps) (*pipeline, error) {
	encoder, err := feature.NewEncoder(cfg.Agent.StateMode, cfg.Agent.LookBack)
	if err != nil {
		return nil, err
	}

	agentCfg, err := agent.ConfigFrom(cfg.Agent)
	if err != nil {
		return nil, err
	}
	agentCfg.Seed = seed

	spec := qnet.SpecFrom(cfg.Model, cfg.Agent.LookBack, agent.ActionSize, seed)
	model, err := deps.models.New(cfg.Model.Name, spec)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		ticker:      ticker,
		interval:    cfg.DataSource.Interval,
		owner:       checkpointOwner(ticker, cfg.DataSource.Interval, model.Name()),
		training:    cfg.Training,
		initialCash: cfg.Agent.InitialCash,
		modelName:   model.Name(),
		spec:        spec,
		supplier:    deps.supplier,
		models:      deps.models,
		model:       model,
		store:       deps.store,
		monitor:     deps.monitor,
		logger:      log.ForTicker(deps.logger, ticker),
	}

	p.agent, err = agent.New(agentCfg, encoder, model,
		agent.WithLogger(p.logger),
		agent.WithObserver(p.observe),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func checkpointOwner(ticker, interval, model string) string {
	return fmt.Sprintf("%s:%s:%s", ticker, interval, model)
}

func (p *pipeline) observe(ctx context.Context, summary agent.EpochSummary) {
	p.monitor.RecordEpoch(ctx, p.ticker, summary)
}

func (p *pipeline) run(ctx context.Context) error {
	series, err := p.supplier.Series(ctx, p.ticker, p.interval)
	if err != nil {
		p.monitor.RecordError(ctx, p.ticker, "获取价格数据失败", err, map[string]interface{}{"source": p.supplier.Name()})
		return fmt.Errorf("%s: %w", p.ticker, err)
	}
	if err := series.Validate(p.agent.LookBack() + 2); err != nil {
		p.monitor.RecordError(ctx, p.ticker, "价格数据不足", err, map[string]interface{}{"bars": series.Len()})
		return fmt.Errorf("%s: %w", p.ticker, err)
	}

	if p.training.Resume && !p.resumed {
		if err := p.resume(ctx); err != nil {
			p.monitor.RecordError(ctx, p.ticker, "恢复检查点失败", err, nil)
			return fmt.Errorf("%s: %w", p.ticker, err)
		}
		p.resumed = true
	}

	start := time.Now()
	history, err := p.agent.Train(ctx, series.Closes(), p.training.Epochs, p.training.LogFrequency)
	if err != nil {
		p.monitor.RecordError(ctx, p.ticker, "训练失败", err, map[string]interface{}{"epochs": p.training.Epochs})
		return fmt.Errorf("%s: %w", p.ticker, err)
	}
	p.monitor.RecordTrainingRun(ctx, p.ticker, monitor.TrainingRunPayload{
		Model:    p.modelName,
		Epochs:   p.training.Epochs,
		Bars:     series.Len(),
		Epsilon:  p.agent.Epsilon(),
		Memory:   p.agent.Memory().Len(),
		Duration: time.Since(start),
		History:  history,
	})

	if p.training.Checkpoint {
		if err := p.checkpoint(ctx); err != nil {
			p.monitor.RecordError(ctx, p.ticker, "保存检查点失败", err, nil)
			return fmt.Errorf("%s: %w", p.ticker, err)
		}
	}

	if p.training.Evaluate {
		if err := p.evaluate(ctx, series); err != nil {
			p.monitor.RecordError(ctx, p.ticker, "回测失败", err, nil)
			return fmt.Errorf("%s: %w", p.ticker, err)
		}
	}
	return nil
}

// resume 读取检查点；不存在时从头训练。权重先载入临时模型校验维度。
func (p *pipeline) resume(ctx context.Context) error {
	var (
		snap    agent.Snapshot
		network json.RawMessage
	)
	err := p.store.LoadFields(ctx, p.owner, map[string]any{
		fieldEpsilon: &snap.Exploration.Epsilon,
		fieldLedger:  &snap.Ledger,
		fieldMemory:  &snap.Memory,
		fieldHistory: &snap.History,
		fieldNetwork: &network,
	})
	if errors.Is(err, store.ErrNotFound) {
		p.logger.Info("未找到检查点，从头训练", zap.String("owner", p.owner))
		return nil
	}
	if err != nil {
		return err
	}

	if len(network) > 0 {
		scratch, err := p.models.New(p.modelName, p.spec)
		if err != nil {
			return err
		}
		if err := qnet.Restore(scratch, network); err != nil {
			return err
		}
		if err := qnet.Restore(p.model, network); err != nil {
			return err
		}
	}
	p.agent.Restore(snap)

	p.monitor.RecordCheckpoint(ctx, p.ticker, "restore", checkpointFields(len(network) > 0))
	p.logger.Info("已从检查点恢复",
		zap.String("owner", p.owner),
		zap.Float64("epsilon", p.agent.Epsilon()),
		zap.Int("memory", p.agent.Memory().Len()),
		zap.Int("history", snap.History.Len()),
	)
	return nil
}

func (p *pipeline) checkpoint(ctx context.Context) error {
	snap := p.agent.Snapshot()
	fields := map[string]any{
		fieldEpsilon: snap.Exploration.Epsilon,
		fieldLedger:  snap.Ledger,
		fieldMemory:  snap.Memory,
		fieldHistory: snap.History,
		fieldNetwork: p.model,
	}
	if err := p.store.SaveFields(ctx, p.owner, fields); err != nil {
		return err
	}
	p.monitor.RecordCheckpoint(ctx, p.ticker, "save", checkpointFields(true))
	p.logger.Debug("检查点已保存", zap.String("owner", p.owner))
	return nil
}

func checkpointFields(withNetwork bool) []string {
	fields := []string{fieldEpsilon, fieldLedger, fieldMemory, fieldHistory}
	if withNetwork {
		fields = append(fields, fieldNetwork)
	}
	sort.Strings(fields)
	return fields
}

func (p *pipeline) evaluate(ctx context.Context, series market.Series) error {
	engine, err := backtest.NewEngine(backtest.Config{
		Ticker:         p.ticker,
		InitialCash:    p.initialCash,
		PeriodsPerYear: backtest.PeriodsPerYear(p.interval),
	}, p.agent, p.logger)
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx, series)
	if err != nil {
		return err
	}
	p.monitor.RecordBacktest(ctx, result)
	p.logger.Info("回测完成",
		zap.Float64("total_return", result.Metrics.TotalReturn),
		zap.Float64("buy_and_hold", result.Metrics.BuyAndHoldReturn),
		zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
		zap.Int("trades", result.Trades()),
	)
	return nil
}
