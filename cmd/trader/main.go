package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"trades-rl/internal/app"
	"trades-rl/internal/config"
	"trades-rl/internal/log"
	"trades-rl/internal/store"
)

func main() {
	var (
		configPath string
		tickers    string
		epochs     int
		source     string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&tickers, "tickers", "", "逗号分隔的标的列表，覆盖 data_source.tickers")
	flag.IntVar(&epochs, "epochs", 0, "训练轮次，覆盖 training.epochs")
	flag.StringVar(&source, "source", "", "数据源 csv|yahoo|alphavantage|exchange，覆盖 data_source.kind")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if applyOverrides(cfg, tickers, epochs, source) {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "命令行参数非法: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	trainer := app.New(cfg, logger, sqliteStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := trainer.Run(ctx); err != nil {
		logger.Error("系统运行异常", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("系统已安全退出")
}

// applyOverrides 用命令行参数覆盖配置，返回是否有改动。
func applyOverrides(cfg *config.Config, tickers string, epochs int, source string) bool {
	changed := false
	if tickers != "" {
		var list []string
		for _, t := range strings.Split(tickers, ",") {
			if t = strings.TrimSpace(t); t != "" {
				list = append(list, t)
			}
		}
		cfg.DataSource.Tickers = list
		changed = true
	}
	if epochs > 0 {
		cfg.Training.Epochs = epochs
		changed = true
	}
	if source != "" {
		cfg.DataSource.Kind = strings.ToLower(source)
		changed = true
	}
	return changed
}
