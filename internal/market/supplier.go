package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"trades-rl/internal/config"
)

// Supplier 按标的与周期提供收盘价序列。
type Supplier interface {
	Series(ctx context.Context, ticker, interval string) (Series, error)
	Name() string
}

// Deps 为构造数据源所需的依赖。
type Deps struct {
	Source   config.DataSourceConfig
	Exchange config.ExchangeConfig
	Logger   *zap.Logger
}

// Factory 根据依赖构造 Supplier。
type Factory func(deps Deps) (Supplier, error)

// Registry 维护数据源名称到构造函数的映射，在启动时填充。
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry 创建空的 Registry。
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry 返回注册了 csv、yahoo、alphavantage 的 Registry。
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("csv", func(deps Deps) (Supplier, error) {
		return NewCSVSupplier(deps.Source.Dir), nil
	})
	r.Register("yahoo", func(deps Deps) (Supplier, error) {
		return NewYahooSupplier(deps.Source.Lookback, deps.Logger), nil
	})
	r.Register("alphavantage", func(deps Deps) (Supplier, error) {
		return NewAlphaVantageSupplier(AlphaVantageOptions{
			APIKey:   deps.Source.APIKey,
			BaseURL:  deps.Source.BaseURL,
			Exchange: deps.Source.Exchange,
			Timeout:  deps.Source.Timeout,
		}, deps.Logger)
	})
	return r
}

// Register 注册数据源，重复注册时覆盖。
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// New 构造指定名称的数据源。
func (r *Registry) New(name string, deps Deps) (Supplier, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("market: 未注册的数据源 %q (可用: %s)", name, strings.Join(r.Names(), ", "))
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return f(deps)
}

// Names 返回已注册的数据源名称。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
