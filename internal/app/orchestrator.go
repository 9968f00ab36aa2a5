package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trades-rl/internal/config"
	"trades-rl/internal/market"
	"trades-rl/internal/monitor"
	"trades-rl/internal/qnet"
	"trades-rl/internal/store"
)

// 同时训练的标的数量上限。
const maxConcurrentPipelines = 4

type orchestrator struct {
	pipelines []*pipeline
	monitor   *monitor.Service
	logger    *zap.Logger
}

type orchestratorDeps struct {
	sources *market.Registry
	models  *qnet.Registry
	store   *store.Store
	monitor *monitor.Service
}

func newOrchestrator(cfg *config.Config, deps orchestratorDeps, logger *zap.Logger) (*orchestrator, error) {
	if deps.store == nil || deps.monitor == nil {
		return nil, errors.New("orchestrator 依赖不完整")
	}

	supplier, err := deps.sources.New(cfg.DataSource.Kind, market.Deps{
		Source:   cfg.DataSource,
		Exchange: cfg.Exchange,
		Logger:   logger.Named("market"),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化数据源失败: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.DataSource.Tickers))
	pipelines := make([]*pipeline, 0, len(cfg.DataSource.Tickers))
	for _, raw := range cfg.DataSource.Tickers {
		ticker := strings.TrimSpace(raw)
		if ticker == "" {
			continue
		}
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}

		// 每个标的使用不同的种子，避免权重与探索序列完全一致
		seed := cfg.Agent.Seed + uint64(len(pipelines))
		p, err := newPipeline(cfg, ticker, seed, pipelineDeps{
			supplier: supplier,
			models:   deps.models,
			store:    deps.store,
			monitor:  deps.monitor,
			logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化标的 %s 失败: %w", ticker, err)
		}
		pipelines = append(pipelines, p)
	}
	if len(pipelines) == 0 {
		return nil, errors.New("未配置任何有效标的")
	}

	logger.Info("训练流水线已就绪",
		zap.String("source", supplier.Name()),
		zap.String("model", cfg.Model.Name),
		zap.Int("tickers", len(pipelines)),
	)

	return &orchestrator{
		pipelines: pipelines,
		monitor:   deps.monitor,
		logger:    logger,
	}, nil
}

// Tick 并发执行所有标的的一轮训练，单个标的失败不影响其余标的。
func (o *orchestrator) Tick(ctx context.Context) error {
	errs := make([]error, len(o.pipelines))

	var g errgroup.Group
	g.SetLimit(maxConcurrentPipelines)
	for i, p := range o.pipelines {
		g.Go(func() error {
			if err := p.run(ctx); err != nil {
				o.logger.Error("标的训练失败", zap.String("ticker", p.ticker), zap.Error(err))
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}
