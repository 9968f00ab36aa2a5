package qnet

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrShape 表示输入或目标的维度与网络不匹配。
var ErrShape = errors.New("qnet: shape mismatch")

// Model 为可训练的动作价值近似器。
type Model interface {
	Predict(states [][]float64) ([][]float64, error)
	Fit(states, targets [][]float64) error
	Name() string
}

// Spec 描述构造模型所需的参数。
type Spec struct {
	Inputs       int
	Outputs      int
	HiddenUnits  int
	LearningRate float64
	Rho          float64
	Epsilon      float64
	Seed         uint64
}

func (s Spec) validate() error {
	if s.Inputs <= 0 || s.Outputs <= 0 {
		return fmt.Errorf("qnet: 输入输出维度必须大于0 (inputs=%d outputs=%d)", s.Inputs, s.Outputs)
	}
	if s.LearningRate <= 0 {
		return fmt.Errorf("qnet: 学习率必须大于0，当前 %f", s.LearningRate)
	}
	if s.Rho <= 0 || s.Rho >= 1 {
		return fmt.Errorf("qnet: rho 必须位于(0,1)，当前 %f", s.Rho)
	}
	if s.Epsilon <= 0 {
		return fmt.Errorf("qnet: epsilon 必须大于0，当前 %f", s.Epsilon)
	}
	return nil
}

func (s Spec) optimizer() RMSprop {
	return RMSprop{LearningRate: s.LearningRate, Rho: s.Rho, Epsilon: s.Epsilon}
}

// glorot 按 Glorot 均匀分布初始化 fanIn*fanOut 个权重。
func glorot(rng *rand.Rand, fanIn, fanOut int) []float64 {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	w := make([]float64, fanIn*fanOut)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return w
}

func checkBatch(states, targets [][]float64, inputs, outputs int) error {
	if len(states) == 0 {
		return fmt.Errorf("%w: 空批次", ErrShape)
	}
	if targets != nil && len(targets) != len(states) {
		return fmt.Errorf("%w: 状态 %d 行，目标 %d 行", ErrShape, len(states), len(targets))
	}
	for i, s := range states {
		if len(s) != inputs {
			return fmt.Errorf("%w: 第 %d 行输入长度 %d，期望 %d", ErrShape, i, len(s), inputs)
		}
		if targets != nil && len(targets[i]) != outputs {
			return fmt.Errorf("%w: 第 %d 行目标长度 %d，期望 %d", ErrShape, i, len(targets[i]), outputs)
		}
	}
	return nil
}

// MSE 返回预测与目标的均方误差。
func MSE(pred, targets [][]float64) float64 {
	var sum float64
	var n int
	for i := range pred {
		for j := range pred[i] {
			d := pred[i][j] - targets[i][j]
			sum += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
