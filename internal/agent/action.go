package agent

import "fmt"

// Action 为智能体在单个时间步上的决策。
type Action int

const (
	ActionBuy Action = iota
	ActionSell
	ActionHold
)

// ActionSize 为动作空间大小，也是近似器输出的列数。
const ActionSize = 3

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	case ActionHold:
		return "hold"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Valid 判断动作是否位于动作空间内。
func (a Action) Valid() bool {
	return a >= 0 && a < ActionSize
}
