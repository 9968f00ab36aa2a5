package qnet

// Dense 为单隐藏层 ReLU + 线性输出的全连接网络，以 MSE 为损失、RMSprop 优化。
// 权重按行优先展平保存，可直接序列化为 JSON。
type Dense struct {
	Inputs  int       `json:"inputs"`
	Hidden  int       `json:"hidden"`
	Outputs int       `json:"outputs"`
	W1      []float64 `json:"w1"`
	B1      []float64 `json:"b1"`
	W2      []float64 `json:"w2"`
	B2      []float64 `json:"b2"`

	Optimizer RMSprop   `json:"optimizer"`
	CacheW1   []float64 `json:"cache_w1"`
	CacheB1   []float64 `json:"cache_b1"`
	CacheW2   []float64 `json:"cache_w2"`
	CacheB2   []float64 `json:"cache_b2"`

	Steps    int     `json:"steps"`
	LastLoss float64 `json:"last_loss"`
}

const defaultHiddenUnits = 256

// NewDense 创建 Dense 网络，HiddenUnits 为0时使用256。
func NewDense(spec Spec) (*Dense, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	hidden := spec.HiddenUnits
	if hidden <= 0 {
		hidden = defaultHiddenUnits
	}

	rng := newRand(spec.Seed)
	return &Dense{
		Inputs:    spec.Inputs,
		Hidden:    hidden,
		Outputs:   spec.Outputs,
		W1:        glorot(rng, spec.Inputs, hidden),
		B1:        make([]float64, hidden),
		W2:        glorot(rng, hidden, spec.Outputs),
		B2:        make([]float64, spec.Outputs),
		Optimizer: spec.optimizer(),
		CacheW1:   make([]float64, spec.Inputs*hidden),
		CacheB1:   make([]float64, hidden),
		CacheW2:   make([]float64, hidden*spec.Outputs),
		CacheB2:   make([]float64, spec.Outputs),
	}, nil
}

func (d *Dense) Name() string { return "dense" }

// Predict 对每行输入做前向计算。
func (d *Dense) Predict(states [][]float64) ([][]float64, error) {
	if err := checkBatch(states, nil, d.Inputs, d.Outputs); err != nil {
		return nil, err
	}
	out := make([][]float64, len(states))
	hidden := make([]float64, d.Hidden)
	for i, x := range states {
		out[i] = d.forward(x, hidden)
	}
	return out, nil
}

// forward 计算单个样本，hidden 写入 ReLU 之后的隐藏层输出。
func (d *Dense) forward(x, hidden []float64) []float64 {
	for j := 0; j < d.Hidden; j++ {
		sum := d.B1[j]
		for i, v := range x {
			sum += v * d.W1[i*d.Hidden+j]
		}
		if sum < 0 {
			sum = 0
		}
		hidden[j] = sum
	}

	y := make([]float64, d.Outputs)
	for k := 0; k < d.Outputs; k++ {
		sum := d.B2[k]
		for j, h := range hidden {
			sum += h * d.W2[j*d.Outputs+k]
		}
		y[k] = sum
	}
	return y
}

// Fit 在整个批次上计算一次梯度并更新一次参数。
func (d *Dense) Fit(states, targets [][]float64) error {
	if err := checkBatch(states, targets, d.Inputs, d.Outputs); err != nil {
		return err
	}

	gW1 := make([]float64, len(d.W1))
	gB1 := make([]float64, len(d.B1))
	gW2 := make([]float64, len(d.W2))
	gB2 := make([]float64, len(d.B2))

	hidden := make([]float64, d.Hidden)
	dh := make([]float64, d.Hidden)
	scale := 2 / float64(len(states)*d.Outputs)
	var loss float64

	for n, x := range states {
		y := d.forward(x, hidden)

		for j := range dh {
			dh[j] = 0
		}
		for k := 0; k < d.Outputs; k++ {
			diff := y[k] - targets[n][k]
			loss += diff * diff
			dy := scale * diff
			gB2[k] += dy
			for j, h := range hidden {
				gW2[j*d.Outputs+k] += h * dy
				dh[j] += dy * d.W2[j*d.Outputs+k]
			}
		}

		for j, h := range hidden {
			// ReLU 在非正区间梯度为0
			if h <= 0 {
				continue
			}
			gB1[j] += dh[j]
			for i, v := range x {
				gW1[i*d.Hidden+j] += v * dh[j]
			}
		}
	}

	d.Optimizer.update(d.W1, gW1, d.CacheW1)
	d.Optimizer.update(d.B1, gB1, d.CacheB1)
	d.Optimizer.update(d.W2, gW2, d.CacheW2)
	d.Optimizer.update(d.B2, gB2, d.CacheB2)

	d.Steps++
	d.LastLoss = loss / float64(len(states)*d.Outputs)
	return nil
}
