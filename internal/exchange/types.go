package exchange

import (
	"time"

	"trades-rl/internal/market"
)

const defaultCandleLimit = 1000

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ToSeries 将K线收盘价转换为 market.Series。
func ToSeries(symbol, timeframe string, candles []Candle) market.Series {
	points := make([]market.Point, 0, len(candles))
	for _, c := range candles {
		points = append(points, market.Point{Timestamp: c.Timestamp, Close: c.Close})
	}
	return market.NewSeries(symbol, timeframe, points)
}
