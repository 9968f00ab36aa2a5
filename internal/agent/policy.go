package agent

import (
	"fmt"
	"math/rand/v2"

	"trades-rl/internal/feature"
)

// ValueApproximator 为动作价值函数的近似器，每行输入对应一行 ActionSize 列的输出。
type ValueApproximator interface {
	Predict(states [][]float64) ([][]float64, error)
	Fit(states, targets [][]float64) error
}

// Policy 实现 epsilon-greedy 动作选择。
type Policy struct {
	approx ValueApproximator
	rng    *rand.Rand
}

// NewPolicy 创建 Policy，rng 为空时使用固定种子0。
func NewPolicy(approx ValueApproximator, rng *rand.Rand) *Policy {
	if rng == nil {
		rng = NewRand(0)
	}
	return &Policy{approx: approx, rng: rng}
}

// NewRand 返回可复现的随机源。
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// SelectAction 以 epsilon 概率随机选择动作，否则选择近似器输出最大的动作。
// epsilon 为0时完全贪心。
func (p *Policy) SelectAction(state feature.State, epsilon float64) (Action, error) {
	if p.rng.Float64() < epsilon {
		return Action(p.rng.IntN(ActionSize)), nil
	}
	return p.Greedy(state)
}

// Greedy 返回近似器输出最大的动作，并列时取下标最小者。
func (p *Policy) Greedy(state feature.State) (Action, error) {
	q, err := p.approx.Predict([][]float64{state})
	if err != nil {
		return ActionHold, fmt.Errorf("agent: 预测动作价值失败: %w", err)
	}
	if len(q) != 1 || len(q[0]) != ActionSize {
		return ActionHold, fmt.Errorf("agent: 近似器输出形状非法: %d 行", len(q))
	}
	return Action(argmax(q[0])), nil
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func maxOf(values []float64) float64 {
	return values[argmax(values)]
}
