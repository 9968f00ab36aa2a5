package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Model      ModelConfig      `mapstructure:"model"`
	Training   TrainingConfig   `mapstructure:"training"`
	DataSource DataSourceConfig `mapstructure:"data_source"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// AgentConfig 描述 Q-learning 智能体的超参数。
type AgentConfig struct {
	InitialCash    float64 `mapstructure:"initial_cash"`
	LookBack       int     `mapstructure:"look_back"`
	StateMode      string  `mapstructure:"state_mode"`
	Gamma          float64 `mapstructure:"gamma"`
	Epsilon        float64 `mapstructure:"epsilon"`
	EpsilonMin     float64 `mapstructure:"epsilon_min"`
	EpsilonDecay   float64 `mapstructure:"epsilon_decay"`
	BatchSize      int     `mapstructure:"batch_size"`
	MemoryCapacity int     `mapstructure:"memory_capacity"`
	TargetPolicy   string  `mapstructure:"target_policy"`
	Seed           uint64  `mapstructure:"seed"`
}

// ModelConfig 描述价值函数近似器。
type ModelConfig struct {
	Name         string  `mapstructure:"name"`
	HiddenUnits  int     `mapstructure:"hidden_units"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Rho          float64 `mapstructure:"rho"`
	Epsilon      float64 `mapstructure:"epsilon"`
}

// TrainingConfig 控制训练轮次与检查点。
type TrainingConfig struct {
	Epochs       int  `mapstructure:"epochs"`
	LogFrequency int  `mapstructure:"log_frequency"`
	Resume       bool `mapstructure:"resume"`
	Checkpoint   bool `mapstructure:"checkpoint"`
	Evaluate     bool `mapstructure:"evaluate"`
}

// DataSourceConfig 描述价格数据来源。
type DataSourceConfig struct {
	Kind     string        `mapstructure:"kind"`
	Tickers  []string      `mapstructure:"tickers"`
	Interval string        `mapstructure:"interval"`
	Dir      string        `mapstructure:"dir"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Exchange string        `mapstructure:"exchange"`
	Lookback time.Duration `mapstructure:"lookback"`
	Limit    int           `mapstructure:"limit"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	APIPass    string      `mapstructure:"api_password"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MonitorConfig 控制监控接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SchedulerConfig 控制重复训练节奏，RetrainInterval 为0时只运行一次。
type SchedulerConfig struct {
	RetrainInterval time.Duration `mapstructure:"retrain_interval"`
}

var (
	validStateModes   = map[string]struct{}{"raw": {}, "diff": {}, "roc": {}}
	validTargetPolicy = map[string]struct{}{"unconditional": {}, "profitable": {}}
	validSourceKinds  = map[string]struct{}{"csv": {}, "yahoo": {}, "alphavantage": {}, "exchange": {}}
	validLogEncodings = map[string]struct{}{"console": {}, "json": {}}
	validEnvironments = map[string]struct{}{"development": {}, "production": {}, "test": {}}
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if _, ok := validEnvironments[c.App.Environment]; !ok {
		err = multierr.Append(err, fmt.Errorf("app.environment 取值非法: %q", c.App.Environment))
	}

	if c.Agent.InitialCash <= 0 {
		err = multierr.Append(err, errors.New("agent.initial_cash 必须大于0"))
	}
	if c.Agent.LookBack <= 0 {
		err = multierr.Append(err, errors.New("agent.look_back 必须大于0"))
	}
	if _, ok := validStateModes[strings.ToLower(c.Agent.StateMode)]; !ok {
		err = multierr.Append(err, fmt.Errorf("agent.state_mode 取值非法: %q", c.Agent.StateMode))
	}
	if c.Agent.Gamma < 0 || c.Agent.Gamma > 1 {
		err = multierr.Append(err, errors.New("agent.gamma 必须位于[0,1]"))
	}
	if c.Agent.Epsilon < 0 || c.Agent.Epsilon > 1 {
		err = multierr.Append(err, errors.New("agent.epsilon 必须位于[0,1]"))
	}
	if c.Agent.EpsilonMin < 0 || c.Agent.EpsilonMin > c.Agent.Epsilon {
		err = multierr.Append(err, errors.New("agent.epsilon_min 必须位于[0,epsilon]"))
	}
	if c.Agent.EpsilonDecay <= 0 || c.Agent.EpsilonDecay > 1 {
		err = multierr.Append(err, errors.New("agent.epsilon_decay 必须位于(0,1]"))
	}
	if c.Agent.BatchSize <= 0 {
		err = multierr.Append(err, errors.New("agent.batch_size 必须大于0"))
	}
	if c.Agent.MemoryCapacity < 0 {
		err = multierr.Append(err, errors.New("agent.memory_capacity 不能为负"))
	}
	if c.Agent.MemoryCapacity > 0 && c.Agent.MemoryCapacity < c.Agent.BatchSize {
		err = multierr.Append(err, errors.New("agent.memory_capacity 不能小于 batch_size"))
	}
	if _, ok := validTargetPolicy[strings.ToLower(c.Agent.TargetPolicy)]; !ok {
		err = multierr.Append(err, fmt.Errorf("agent.target_policy 取值非法: %q", c.Agent.TargetPolicy))
	}

	if c.Model.Name == "" {
		err = multierr.Append(err, errors.New("model.name 不能为空"))
	}
	if c.Model.HiddenUnits < 0 {
		err = multierr.Append(err, errors.New("model.hidden_units 不能为负"))
	}
	if c.Model.LearningRate <= 0 {
		err = multierr.Append(err, errors.New("model.learning_rate 必须大于0"))
	}
	if c.Model.Rho <= 0 || c.Model.Rho >= 1 {
		err = multierr.Append(err, errors.New("model.rho 必须位于(0,1)"))
	}
	if c.Model.Epsilon <= 0 {
		err = multierr.Append(err, errors.New("model.epsilon 必须大于0"))
	}

	if c.Training.Epochs <= 0 {
		err = multierr.Append(err, errors.New("training.epochs 必须大于0"))
	}
	if c.Training.LogFrequency <= 0 {
		err = multierr.Append(err, errors.New("training.log_frequency 必须大于0"))
	}

	kind := strings.ToLower(c.DataSource.Kind)
	if _, ok := validSourceKinds[kind]; !ok {
		err = multierr.Append(err, fmt.Errorf("data_source.kind 取值非法: %q", c.DataSource.Kind))
	}
	if len(c.DataSource.Tickers) == 0 {
		err = multierr.Append(err, errors.New("data_source.tickers 至少包含一个标的"))
	}
	if c.DataSource.Interval == "" {
		err = multierr.Append(err, errors.New("data_source.interval 不能为空"))
	}
	if kind == "csv" && c.DataSource.Dir == "" {
		err = multierr.Append(err, errors.New("csv 数据源需要配置 data_source.dir"))
	}
	if kind == "alphavantage" && c.DataSource.APIKey == "" {
		err = multierr.Append(err, errors.New("alphavantage 数据源需要配置 data_source.api_key"))
	}
	if kind == "exchange" {
		if c.Exchange.Name == "" {
			err = multierr.Append(err, errors.New("exchange.name 不能为空"))
		}
		if c.Exchange.Retry.MaxAttempts <= 0 {
			err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
		}
		if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
			err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
		}
		if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
			err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
		}
	}
	if c.DataSource.Timeout < 0 {
		err = multierr.Append(err, errors.New("data_source.timeout 不能为负"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if _, ok := validLogEncodings[c.Logging.Encoding]; !ok {
		err = multierr.Append(err, fmt.Errorf("logging.encoding 取值非法: %q", c.Logging.Encoding))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于[1,65535]"))
	}
	if c.Scheduler.RetrainInterval < 0 {
		err = multierr.Append(err, errors.New("scheduler.retrain_interval 不能为负"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
