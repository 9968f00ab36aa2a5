package agent

import (
	"fmt"
	"math"
	"strings"
)

// TargetPolicy 决定 Bellman 目标中何时加入折扣后的未来价值。
type TargetPolicy string

const (
	// TargetUnconditional 总是加入 gamma*max(Q')。
	TargetUnconditional TargetPolicy = "unconditional"
	// TargetProfitable 仅在经验记录时处于盈利状态才加入 gamma*max(Q')。
	TargetProfitable TargetPolicy = "profitable"
)

// ParseTargetPolicy 解析目标策略，空字符串视为 unconditional。
func ParseTargetPolicy(s string) (TargetPolicy, error) {
	switch p := TargetPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", TargetUnconditional:
		return TargetUnconditional, nil
	case TargetProfitable:
		return TargetProfitable, nil
	default:
		return "", fmt.Errorf("agent: 未知的目标策略 %q", s)
	}
}

// Exploration 保存探索率及其衰减参数。
type Exploration struct {
	Epsilon float64 `json:"epsilon"`
	Min     float64 `json:"epsilon_min"`
	Decay   float64 `json:"epsilon_decay"`
}

// decay 衰减一次探索率，不低于 Min。
func (e *Exploration) decay() {
	e.Epsilon = math.Max(e.Min, e.Epsilon*e.Decay)
}

// Learner 从经验中构造训练目标并更新近似器。
//
// 批次取经验库中最近的 batchSize 条，而不是随机采样。
type Learner struct {
	memory      *Memory
	approx      ValueApproximator
	exploration *Exploration
	gamma       float64
	batchSize   int
	policy      TargetPolicy
}

// NewLearner 创建 Learner。
func NewLearner(memory *Memory, approx ValueApproximator, exploration *Exploration, gamma float64, batchSize int, policy TargetPolicy) *Learner {
	if policy == "" {
		policy = TargetUnconditional
	}
	return &Learner{
		memory:      memory,
		approx:      approx,
		exploration: exploration,
		gamma:       gamma,
		batchSize:   batchSize,
		policy:      policy,
	}
}

// Step 在经验数量达到 batchSize 时执行一次训练，返回是否实际训练。
// 训练成功后探索率衰减一次，失败时保持不变。
func (l *Learner) Step() (bool, error) {
	if l.memory.Len() < l.batchSize {
		return false, nil
	}

	batch := l.memory.Recent(l.batchSize)
	states := make([][]float64, len(batch))
	nextStates := make([][]float64, len(batch))
	for i, t := range batch {
		states[i] = t.State
		nextStates[i] = t.NextState
	}

	q, err := l.approx.Predict(states)
	if err != nil {
		return false, fmt.Errorf("agent: 预测当前状态价值失败: %w", err)
	}
	qNext, err := l.approx.Predict(nextStates)
	if err != nil {
		return false, fmt.Errorf("agent: 预测下一状态价值失败: %w", err)
	}
	if len(q) != len(batch) || len(qNext) != len(batch) {
		return false, fmt.Errorf("agent: 近似器输出行数 %d/%d 与批次大小 %d 不一致", len(q), len(qNext), len(batch))
	}

	targets := BuildTargets(batch, q, qNext, l.gamma, l.policy)

	if err := l.approx.Fit(states, targets); err != nil {
		return false, fmt.Errorf("agent: 拟合近似器失败: %w", err)
	}

	l.exploration.decay()
	return true, nil
}

// BuildTargets 构造 Bellman 目标：除动作列外沿用 Q，动作列为 r + gamma*max(Q')。
func BuildTargets(batch []Transition, q, qNext [][]float64, gamma float64, policy TargetPolicy) [][]float64 {
	targets := make([][]float64, len(batch))
	for i, t := range batch {
		row := append([]float64(nil), q[i]...)
		value := t.Reward
		if policy != TargetProfitable || t.Profitable {
			value += gamma * maxOf(qNext[i])
		}
		if t.Action.Valid() && int(t.Action) < len(row) {
			row[t.Action] = value
		}
		targets[i] = row
	}
	return targets
}
