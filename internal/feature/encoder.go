package feature

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	talib "github.com/markcheno/go-talib"
)

// Mode 决定状态窗口基于哪种价格变换。
type Mode string

const (
	// ModeRaw 直接使用收盘价。
	ModeRaw Mode = "raw"
	// ModeDiff 使用相邻收盘价之差。
	ModeDiff Mode = "diff"
	// ModeROC 使用相邻收盘价的百分比变化。
	ModeROC Mode = "roc"
)

// ErrInvalidMode 表示未知的编码模式。
var ErrInvalidMode = errors.New("feature: unknown state mode")

// State 为长度等于 lookBack 的观测窗口。
type State []float64

// Encoder 将价格序列切分为固定长度的状态窗口。
type Encoder struct {
	mode     Mode
	lookBack int
}

// NewEncoder 创建 Encoder，mode 取 raw、diff 或 roc。
func NewEncoder(mode string, lookBack int) (*Encoder, error) {
	if lookBack <= 0 {
		return nil, fmt.Errorf("feature: lookBack 必须大于0，当前 %d", lookBack)
	}
	m := Mode(strings.ToLower(strings.TrimSpace(mode)))
	switch m {
	case ModeRaw, ModeDiff, ModeROC:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return &Encoder{mode: m, lookBack: lookBack}, nil
}

func (e *Encoder) Mode() Mode    { return e.mode }
func (e *Encoder) LookBack() int { return e.lookBack }

// Encode 生成 len(series)-lookBack 个窗口，序列不足时返回空 Windows。
func (e *Encoder) Encode(series []float64) (Windows, error) {
	if len(series) <= e.lookBack {
		return Windows{lookBack: e.lookBack}, nil
	}

	var base []float64
	switch e.mode {
	case ModeRaw:
		base = append([]float64(nil), series...)
	case ModeDiff:
		base = talib.Mom(series, 1)[1:]
	case ModeROC:
		base = talib.Roc(series, 1)[1:]
	default:
		return Windows{}, fmt.Errorf("%w: %q", ErrInvalidMode, e.mode)
	}

	return Windows{
		base:     base,
		lookBack: e.lookBack,
		count:    len(series) - e.lookBack,
	}, nil
}

// Windows 为惰性的窗口集合，按需切片，可重复遍历。
type Windows struct {
	base     []float64
	lookBack int
	count    int
}

// Len 返回窗口数量。
func (w Windows) Len() int {
	return w.count
}

// LookBack 返回窗口长度。
func (w Windows) LookBack() int {
	return w.lookBack
}

// At 返回第 i 个窗口的副本，越界时 panic。
func (w Windows) At(i int) State {
	if i < 0 || i >= w.count {
		panic(fmt.Sprintf("feature: 窗口下标越界 %d (共 %d)", i, w.count))
	}
	out := make(State, w.lookBack)
	copy(out, w.base[i:i+w.lookBack])
	return out
}

// All 返回按顺序遍历全部窗口的迭代器，每次调用都从头开始。
func (w Windows) All() iter.Seq2[int, State] {
	return func(yield func(int, State) bool) {
		for i := 0; i < w.count; i++ {
			if !yield(i, w.At(i)) {
				return
			}
		}
	}
}
