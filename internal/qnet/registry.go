package qnet

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"trades-rl/internal/config"
)

// Factory 根据 Spec 构造模型。
type Factory func(spec Spec) (Model, error)

// Registry 维护模型名称到构造函数的映射。
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry 创建空的 Registry。
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry 返回注册了 dense 与 linear 的 Registry。
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("dense", func(spec Spec) (Model, error) { return NewDense(spec) })
	r.Register("linear", func(spec Spec) (Model, error) { return NewLinear(spec) })
	return r
}

// Register 注册模型，重复注册时覆盖。
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// New 构造指定名称的模型。
func (r *Registry) New(name string, spec Spec) (Model, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("qnet: 未注册的模型 %q (可用: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(spec)
}

// Names 返回已注册的模型名称。
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

// SpecFrom 由模型配置、输入输出维度与随机种子生成 Spec。
func SpecFrom(cfg config.ModelConfig, inputs, outputs int, seed uint64) Spec {
	return Spec{
		Inputs:       inputs,
		Outputs:      outputs,
		HiddenUnits:  cfg.HiddenUnits,
		LearningRate: cfg.LearningRate,
		Rho:          cfg.Rho,
		Epsilon:      cfg.Epsilon,
		Seed:         seed,
	}
}

// Restore 将 JSON 权重载入已构造的模型，维度不一致时报错。
func Restore(model Model, payload []byte) error {
	before := shapeOf(model)
	if err := json.Unmarshal(payload, model); err != nil {
		return fmt.Errorf("qnet: 解析 %s 权重失败: %w", model.Name(), err)
	}
	if after := shapeOf(model); after != before {
		return fmt.Errorf("%w: 权重维度 %v 与模型 %v 不一致", ErrShape, after, before)
	}
	return nil
}

func shapeOf(model Model) [3]int {
	switch m := model.(type) {
	case *Dense:
		return [3]int{m.Inputs, m.Hidden, m.Outputs}
	case *Linear:
		return [3]int{m.Inputs, 0, m.Outputs}
	default:
		return [3]int{}
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
