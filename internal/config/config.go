package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "trades"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := newViper()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return decode(v)
}

// Default 返回仅由默认值与环境变量组成的配置，便于测试与无配置文件运行。
func Default() (*Config, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("agent.initial_cash", 10000.0)
	v.SetDefault("agent.look_back", 30)
	v.SetDefault("agent.state_mode", "diff")
	v.SetDefault("agent.gamma", 0.95)
	v.SetDefault("agent.epsilon", 0.5)
	v.SetDefault("agent.epsilon_min", 0.01)
	v.SetDefault("agent.epsilon_decay", 0.99)
	v.SetDefault("agent.batch_size", 32)
	v.SetDefault("agent.memory_capacity", 0)
	v.SetDefault("agent.target_policy", "unconditional")
	v.SetDefault("agent.seed", 42)

	v.SetDefault("model.name", "dense")
	v.SetDefault("model.hidden_units", 256)
	v.SetDefault("model.learning_rate", 0.001)
	v.SetDefault("model.rho", 0.99)
	v.SetDefault("model.epsilon", 0.1)

	v.SetDefault("training.epochs", 200)
	v.SetDefault("training.log_frequency", 1)
	v.SetDefault("training.resume", true)
	v.SetDefault("training.checkpoint", true)
	v.SetDefault("training.evaluate", true)

	v.SetDefault("data_source.kind", "csv")
	v.SetDefault("data_source.tickers", []string{"INDUSINDBK"})
	v.SetDefault("data_source.interval", "1d")
	v.SetDefault("data_source.dir", "data/stock")
	v.SetDefault("data_source.api_key", "")
	v.SetDefault("data_source.base_url", "https://www.alphavantage.co")
	v.SetDefault("data_source.exchange", "NSE")
	v.SetDefault("data_source.lookback", "17520h")
	v.SetDefault("data_source.limit", 1000)
	v.SetDefault("data_source.timeout", "30s")

	v.SetDefault("exchange.name", "binanceusdm")
	v.SetDefault("exchange.use_sandbox", false)
	v.SetDefault("exchange.retry.max_attempts", 5)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("database.path", "data/trades_rl.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 8090)

	v.SetDefault("scheduler.retrain_interval", "0s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
