package qnet

// Linear 为无隐藏层的线性近似器，用于基线对比。
type Linear struct {
	Inputs  int       `json:"inputs"`
	Outputs int       `json:"outputs"`
	W       []float64 `json:"w"`
	B       []float64 `json:"b"`

	Optimizer RMSprop   `json:"optimizer"`
	CacheW    []float64 `json:"cache_w"`
	CacheB    []float64 `json:"cache_b"`

	Steps    int     `json:"steps"`
	LastLoss float64 `json:"last_loss"`
}

// NewLinear 创建 Linear 模型，忽略 HiddenUnits。
func NewLinear(spec Spec) (*Linear, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	rng := newRand(spec.Seed)
	return &Linear{
		Inputs:    spec.Inputs,
		Outputs:   spec.Outputs,
		W:         glorot(rng, spec.Inputs, spec.Outputs),
		B:         make([]float64, spec.Outputs),
		Optimizer: spec.optimizer(),
		CacheW:    make([]float64, spec.Inputs*spec.Outputs),
		CacheB:    make([]float64, spec.Outputs),
	}, nil
}

func (l *Linear) Name() string { return "linear" }

func (l *Linear) Predict(states [][]float64) ([][]float64, error) {
	if err := checkBatch(states, nil, l.Inputs, l.Outputs); err != nil {
		return nil, err
	}
	out := make([][]float64, len(states))
	for i, x := range states {
		out[i] = l.forward(x)
	}
	return out, nil
}

func (l *Linear) forward(x []float64) []float64 {
	y := append([]float64(nil), l.B...)
	for i, v := range x {
		for k := range y {
			y[k] += v * l.W[i*l.Outputs+k]
		}
	}
	return y
}

// Fit 在整个批次上更新一次参数。
func (l *Linear) Fit(states, targets [][]float64) error {
	if err := checkBatch(states, targets, l.Inputs, l.Outputs); err != nil {
		return err
	}

	gW := make([]float64, len(l.W))
	gB := make([]float64, len(l.B))
	scale := 2 / float64(len(states)*l.Outputs)
	var loss float64

	for n, x := range states {
		y := l.forward(x)
		for k := range y {
			diff := y[k] - targets[n][k]
			loss += diff * diff
			dy := scale * diff
			gB[k] += dy
			for i, v := range x {
				gW[i*l.Outputs+k] += v * dy
			}
		}
	}

	l.Optimizer.update(l.W, gW, l.CacheW)
	l.Optimizer.update(l.B, gB, l.CacheB)

	l.Steps++
	l.LastLoss = loss / float64(len(states)*l.Outputs)
	return nil
}
