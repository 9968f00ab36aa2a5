package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trades-rl/internal/config"
	"trades-rl/internal/exchange"
	"trades-rl/internal/market"
	"trades-rl/internal/monitor"
	"trades-rl/internal/qnet"
	"trades-rl/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store

	sources *market.Registry
	models  *qnet.Registry
}

// New 创建 App 实例，注册全部内置数据源与模型。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	sources := market.DefaultRegistry()
	exchange.Register(sources)

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		sources: sources,
		models:  qnet.DefaultRegistry(),
	}
}

// Run 执行一轮训练；配置了 scheduler.retrain_interval 时按间隔持续重训直到 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("训练系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("source", a.cfg.DataSource.Kind),
		zap.Strings("tickers", a.cfg.DataSource.Tickers),
	)

	monitorSvc, err := monitor.NewService(a.store, a.logger.Named("monitor"))
	if err != nil {
		return err
	}
	if a.cfg.Monitor.Enabled {
		if err := startMonitorServer(ctx, monitorSvc, a.cfg.Monitor.Port, a.logger.Named("monitor")); err != nil {
			return err
		}
	}

	orch, err := newOrchestrator(a.cfg, orchestratorDeps{
		sources: a.sources,
		models:  a.models,
		store:   a.store,
		monitor: monitorSvc,
	}, a.logger)
	if err != nil {
		return err
	}

	interval := a.cfg.Scheduler.RetrainInterval
	if interval <= 0 {
		return orch.Tick(ctx)
	}

	if err = orch.Tick(ctx); err != nil {
		a.logger.Error("首次训练失败", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("系统异常退出: %w", err)
			}
			a.logger.Info("系统收到退出信号，正在停止")
			return nil
		case <-ticker.C:
			if err = orch.Tick(ctx); err != nil {
				a.logger.Error("重训失败", zap.Error(err))
			}
		}
	}
}
