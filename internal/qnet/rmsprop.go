package qnet

import "math"

// RMSprop 为逐参数自适应学习率的优化器。
type RMSprop struct {
	LearningRate float64 `json:"learning_rate"`
	Rho          float64 `json:"rho"`
	Epsilon      float64 `json:"epsilon"`
}

// update 用梯度 grad 更新 params，cache 保存梯度平方的滑动平均。
func (o RMSprop) update(params, grad, cache []float64) {
	for i := range params {
		cache[i] = o.Rho*cache[i] + (1-o.Rho)*grad[i]*grad[i]
		params[i] -= o.LearningRate * grad[i] / (math.Sqrt(cache[i]) + o.Epsilon)
	}
}
