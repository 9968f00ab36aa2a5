package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"trades-rl/internal/config"
	"trades-rl/internal/feature"
	"trades-rl/internal/market"
)

// StateEncoder 将价格序列编码为状态窗口。
type StateEncoder interface {
	Encode(series []float64) (feature.Windows, error)
	LookBack() int
}

// Config 为智能体超参数。
type Config struct {
	InitialCash    float64
	LookBack       int
	Gamma          float64
	Epsilon        float64
	EpsilonMin     float64
	EpsilonDecay   float64
	BatchSize      int
	MemoryCapacity int
	TargetPolicy   TargetPolicy
	Seed           uint64
}

// ConfigFrom 将配置文件中的 agent 段转换为 Config。
func ConfigFrom(cfg config.AgentConfig) (Config, error) {
	policy, err := ParseTargetPolicy(cfg.TargetPolicy)
	if err != nil {
		return Config{}, err
	}
	c := Config{
		InitialCash:    cfg.InitialCash,
		LookBack:       cfg.LookBack,
		Gamma:          cfg.Gamma,
		Epsilon:        cfg.Epsilon,
		EpsilonMin:     cfg.EpsilonMin,
		EpsilonDecay:   cfg.EpsilonDecay,
		BatchSize:      cfg.BatchSize,
		MemoryCapacity: cfg.MemoryCapacity,
		TargetPolicy:   policy,
		Seed:           cfg.Seed,
	}
	return c, c.Validate()
}

// Validate 校验超参数。
func (c Config) Validate() error {
	var err error
	if c.InitialCash <= 0 {
		err = multierr.Append(err, errors.New("initial cash 必须大于0"))
	}
	if c.LookBack <= 0 {
		err = multierr.Append(err, errors.New("lookBack 必须大于0"))
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		err = multierr.Append(err, errors.New("gamma 必须位于[0,1]"))
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		err = multierr.Append(err, errors.New("epsilon 必须位于[0,1]"))
	}
	if c.EpsilonMin < 0 || c.EpsilonMin > 1 {
		err = multierr.Append(err, errors.New("epsilonMin 必须位于[0,1]"))
	}
	if c.EpsilonDecay <= 0 || c.EpsilonDecay > 1 {
		err = multierr.Append(err, errors.New("epsilonDecay 必须位于(0,1]"))
	}
	if c.BatchSize <= 0 {
		err = multierr.Append(err, errors.New("batchSize 必须大于0"))
	}
	if c.MemoryCapacity < 0 || (c.MemoryCapacity > 0 && c.MemoryCapacity < c.BatchSize) {
		err = multierr.Append(err, errors.New("memoryCapacity 须为0或不小于 batchSize"))
	}
	if _, perr := ParseTargetPolicy(string(c.TargetPolicy)); perr != nil {
		err = multierr.Append(err, perr)
	}
	if err != nil {
		return fmt.Errorf("agent: 配置非法: %w", err)
	}
	return nil
}

// EpochSummary 为单轮训练的汇总。
type EpochSummary struct {
	Epoch       int     `json:"epoch"`
	TotalProfit float64 `json:"total_profit"`
	FinalCash   float64 `json:"final_cash"`
	Epsilon     float64 `json:"epsilon"`
	Steps       int     `json:"steps"`
	Fits        int     `json:"fits"`
}

// History 累积按日志频率采样的训练结果。
type History struct {
	Epochs     []int     `json:"epochs"`
	Profit     []float64 `json:"profit"`
	TotalMoney []float64 `json:"total_money"`
}

func (h *History) add(s EpochSummary) {
	h.Epochs = append(h.Epochs, s.Epoch)
	h.Profit = append(h.Profit, s.TotalProfit)
	h.TotalMoney = append(h.TotalMoney, s.FinalCash)
}

// Len 返回记录条数。
func (h History) Len() int {
	return len(h.Epochs)
}

func (h History) clone() History {
	return History{
		Epochs:     append([]int(nil), h.Epochs...),
		Profit:     append([]float64(nil), h.Profit...),
		TotalMoney: append([]float64(nil), h.TotalMoney...),
	}
}

// EpochObserver 在每个被记录的训练轮次结束后调用，ctx 为 Train 的 ctx。
type EpochObserver func(ctx context.Context, summary EpochSummary)

// Option 定制 Agent。
type Option func(*Agent)

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver 设置轮次回调。
func WithObserver(observer EpochObserver) Option {
	return func(a *Agent) {
		a.observer = observer
	}
}

// WithRand 替换探索使用的随机源。
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) {
		if rng != nil {
			a.rng = rng
		}
	}
}

// Agent 为单个标的的 Q-learning 交易智能体，非并发安全。
type Agent struct {
	cfg         Config
	encoder     StateEncoder
	approx      ValueApproximator
	ledger      *Ledger
	memory      *Memory
	exploration *Exploration
	policy      *Policy
	learner     *Learner
	rng         *rand.Rand
	logger      *zap.Logger
	observer    EpochObserver
	history     History
}

// New 创建 Agent。
func New(cfg Config, encoder StateEncoder, approx ValueApproximator, opts ...Option) (*Agent, error) {
	if cfg.TargetPolicy == "" {
		cfg.TargetPolicy = TargetUnconditional
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if encoder == nil {
		return nil, errors.New("agent: 状态编码器不能为空")
	}
	if approx == nil {
		return nil, errors.New("agent: 价值近似器不能为空")
	}
	if encoder.LookBack() != cfg.LookBack {
		return nil, fmt.Errorf("agent: 编码器窗口 %d 与 lookBack %d 不一致", encoder.LookBack(), cfg.LookBack)
	}

	a := &Agent{
		cfg:     cfg,
		encoder: encoder,
		approx:  approx,
		ledger:  NewLedger(cfg.InitialCash),
		memory:  NewMemory(cfg.MemoryCapacity),
		exploration: &Exploration{
			Epsilon: cfg.Epsilon,
			Min:     cfg.EpsilonMin,
			Decay:   cfg.EpsilonDecay,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = NewRand(cfg.Seed)
	}

	a.policy = NewPolicy(approx, a.rng)
	a.learner = NewLearner(a.memory, approx, a.exploration, cfg.Gamma, cfg.BatchSize, cfg.TargetPolicy)
	return a, nil
}

// Train 在价格序列上训练 epochs 轮，每 logFrequency 轮记录一次结果。
// ctx 只在轮次之间检查，取消时返回已记录的部分结果。
func (a *Agent) Train(ctx context.Context, series []float64, epochs, logFrequency int) (History, error) {
	if epochs <= 0 {
		return History{}, fmt.Errorf("agent: epochs 必须大于0，当前 %d", epochs)
	}
	if logFrequency <= 0 {
		logFrequency = 1
	}
	if err := market.FromCloses("", series).Validate(a.cfg.LookBack + 2); err != nil {
		return History{}, err
	}

	windows, err := a.encoder.Encode(series)
	if err != nil {
		return History{}, fmt.Errorf("agent: 编码状态失败: %w", err)
	}

	var hist History
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}

		summary, err := a.runEpoch(series, windows, epoch)
		if err != nil {
			return hist, fmt.Errorf("agent: 第 %d 轮训练失败: %w", epoch, err)
		}

		if epoch%logFrequency != 0 {
			continue
		}
		hist.add(summary)
		a.history.add(summary)
		a.logger.Info("训练轮次完成",
			zap.Int("epoch", epoch),
			zap.Int("epochs", epochs),
			zap.Float64("profit", summary.TotalProfit),
			zap.Float64("cash", summary.FinalCash),
			zap.Float64("epsilon", summary.Epsilon),
			zap.Int("fits", summary.Fits),
		)
		if a.observer != nil {
			a.observer(ctx, summary)
		}
	}

	return hist, nil
}

func (a *Agent) runEpoch(series []float64, windows feature.Windows, epoch int) (EpochSummary, error) {
	a.ledger.Reset()

	lookBack := a.cfg.LookBack
	summary := EpochSummary{Epoch: epoch}
	for t := lookBack; t < len(series)-1; t++ {
		state := windows.At(t - lookBack)
		next := windows.At(t - lookBack + 1)

		action, err := a.policy.SelectAction(state, a.exploration.Epsilon)
		if err != nil {
			return summary, err
		}
		reward := a.ledger.Reward(action, series[t])
		a.memory.Append(Transition{
			State:      state,
			Action:     action,
			Reward:     reward,
			NextState:  next,
			Profitable: a.ledger.Profitable(),
		})

		fitted, err := a.learner.Step()
		if err != nil {
			return summary, err
		}
		if fitted {
			summary.Fits++
		}
		summary.Steps++
	}

	summary.TotalProfit = a.ledger.RealizedProfit()
	summary.FinalCash = a.ledger.Cash()
	summary.Epsilon = a.exploration.Epsilon
	return summary, nil
}

// SelectAction 贪心选择动作，用于推理。
func (a *Agent) SelectAction(state feature.State) (Action, error) {
	return a.policy.Greedy(state)
}

// SelectActionWithEpsilon 按给定探索率选择动作。
func (a *Agent) SelectActionWithEpsilon(state feature.State, epsilon float64) (Action, error) {
	return a.policy.SelectAction(state, epsilon)
}

// History 返回累计的训练记录副本。
func (a *Agent) History() History {
	return a.history.clone()
}

func (a *Agent) Epsilon() float64 { return a.exploration.Epsilon }
func (a *Agent) Config() Config   { return a.cfg }
func (a *Agent) Ledger() *Ledger  { return a.ledger }
func (a *Agent) Memory() *Memory  { return a.memory }
func (a *Agent) LookBack() int    { return a.cfg.LookBack }

// SimulationStep 为贪心回放中的单步记录。
type SimulationStep struct {
	Index  int     `json:"index"`
	Price  float64 `json:"price"`
	Action Action  `json:"action"`
	Cash   float64 `json:"cash"`
	Equity float64 `json:"equity"`
}

// Simulation 为一次贪心回放的结果。
type Simulation struct {
	InitialCash    float64          `json:"initial_cash"`
	FinalCash      float64          `json:"final_cash"`
	FinalEquity    float64          `json:"final_equity"`
	RealizedProfit float64          `json:"realized_profit"`
	ProfitPct      float64          `json:"profit_pct"`
	Steps          []SimulationStep `json:"steps"`
}

// Simulate 用独立账本按贪心策略回放序列，不写入经验也不训练。
// initialCash 不大于0时使用配置中的初始现金。
func (a *Agent) Simulate(series []float64, initialCash float64) (Simulation, error) {
	if initialCash <= 0 {
		initialCash = a.cfg.InitialCash
	}
	if err := market.FromCloses("", series).Validate(a.cfg.LookBack + 2); err != nil {
		return Simulation{}, err
	}
	windows, err := a.encoder.Encode(series)
	if err != nil {
		return Simulation{}, fmt.Errorf("agent: 编码状态失败: %w", err)
	}

	ledger := NewLedger(initialCash)
	lookBack := a.cfg.LookBack
	sim := Simulation{
		InitialCash: initialCash,
		Steps:       make([]SimulationStep, 0, len(series)-lookBack-1),
	}
	for t := lookBack; t < len(series)-1; t++ {
		action, err := a.policy.Greedy(windows.At(t - lookBack))
		if err != nil {
			return Simulation{}, err
		}
		price := series[t]
		ledger.Apply(action, price)
		sim.Steps = append(sim.Steps, SimulationStep{
			Index:  t,
			Price:  price,
			Action: action,
			Cash:   ledger.Cash(),
			Equity: ledger.Equity(price),
		})
	}

	last := series[len(series)-2]
	sim.FinalCash = ledger.Cash()
	sim.FinalEquity = ledger.Equity(last)
	sim.RealizedProfit = ledger.RealizedProfit()
	sim.ProfitPct = (sim.FinalEquity - initialCash) / initialCash * 100
	return sim, nil
}

// Snapshot 为可持久化的训练状态。
type Snapshot struct {
	Exploration Exploration  `json:"exploration"`
	Ledger      LedgerState  `json:"ledger"`
	Memory      []Transition `json:"memory"`
	History     History      `json:"history"`
}

// Snapshot 导出当前训练状态。
func (a *Agent) Snapshot() Snapshot {
	return Snapshot{
		Exploration: *a.exploration,
		Ledger:      a.ledger.State(),
		Memory:      a.memory.All(),
		History:     a.history.clone(),
	}
}

// Restore 从快照恢复训练状态，探索率衰减参数以当前配置为准。
func (a *Agent) Restore(s Snapshot) {
	a.exploration.Epsilon = s.Exploration.Epsilon
	a.ledger.Restore(s.Ledger)
	a.memory.Restore(s.Memory)
	a.history = s.History.clone()
}
