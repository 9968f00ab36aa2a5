package market

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidInput 表示价格序列缺失或不合法，训练无法继续。
var ErrInvalidInput = errors.New("market: invalid price series")

// Point 为单个收盘价数据点。
type Point struct {
	Timestamp time.Time
	Close     float64
}

// Series 为单个标的在某一周期上的收盘价序列，创建后不可修改。
type Series struct {
	ticker     string
	interval   string
	timestamps []time.Time
	closes     []float64
}

// NewSeries 从数据点创建 Series，按时间升序排列。
func NewSeries(ticker, interval string, points []Point) Series {
	sorted := append([]Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	series := Series{
		ticker:     ticker,
		interval:   interval,
		timestamps: make([]time.Time, len(sorted)),
		closes:     make([]float64, len(sorted)),
	}
	for i, p := range sorted {
		series.timestamps[i] = p.Timestamp.UTC()
		series.closes[i] = p.Close
	}
	return series
}

// FromCloses 用不带时间戳的收盘价创建 Series，顺序即为时间顺序。
func FromCloses(ticker string, closes []float64) Series {
	return Series{
		ticker: ticker,
		closes: append([]float64(nil), closes...),
	}
}

func (s Series) Ticker() string   { return s.ticker }
func (s Series) Interval() string { return s.interval }

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.closes)
}

// At 返回第 i 个收盘价。
func (s Series) At(i int) float64 {
	return s.closes[i]
}

// Closes 返回收盘价副本。
func (s Series) Closes() []float64 {
	return append([]float64(nil), s.closes...)
}

// Timestamps 返回时间戳副本，FromCloses 创建的序列返回 nil。
func (s Series) Timestamps() []time.Time {
	if s.timestamps == nil {
		return nil
	}
	return append([]time.Time(nil), s.timestamps...)
}

// Validate 校验序列至少包含 minLen 个有效价格。
func (s Series) Validate(minLen int) error {
	if len(s.closes) < minLen {
		return fmt.Errorf("%w: %s 需要至少 %d 个价格，当前 %d", ErrInvalidInput, s.ticker, minLen, len(s.closes))
	}
	for i, v := range s.closes {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s 第 %d 个价格非数值", ErrInvalidInput, s.ticker, i)
		}
		if v <= 0 {
			return fmt.Errorf("%w: %s 第 %d 个价格非正 (%f)", ErrInvalidInput, s.ticker, i, v)
		}
	}
	return nil
}

// Last 返回序列最后一个值，若为空则返回 NaN。
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}
