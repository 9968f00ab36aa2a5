package agent

// LedgerState 为账本的可序列化快照。
type LedgerState struct {
	Cash           float64   `json:"cash"`
	Positions      []float64 `json:"positions"`
	RealizedProfit float64   `json:"realized_profit"`
}

// Ledger 记录单个回合内的现金、后进先出的持仓与已实现盈亏。
type Ledger struct {
	initialCash    float64
	cash           float64
	positions      []float64
	realizedProfit float64
}

// NewLedger 创建初始现金为 initialCash 的账本。
func NewLedger(initialCash float64) *Ledger {
	l := &Ledger{initialCash: initialCash}
	l.Reset()
	return l
}

// Reset 恢复到回合开始时的状态。
func (l *Ledger) Reset() {
	l.cash = l.initialCash
	l.positions = l.positions[:0]
	l.realizedProfit = 0
}

// Apply 执行动作。现金不足的买入与空仓卖出均静默忽略，返回 false。
func (l *Ledger) Apply(action Action, price float64) bool {
	switch action {
	case ActionBuy:
		if l.cash < price {
			return false
		}
		l.positions = append(l.positions, price)
		l.cash -= price
		return true
	case ActionSell:
		n := len(l.positions)
		if n == 0 {
			return false
		}
		bought := l.positions[n-1]
		l.positions = l.positions[:n-1]
		l.realizedProfit += price - bought
		l.cash += price
		return true
	default:
		return false
	}
}

// Reward 执行动作后返回相对初始现金的累计现金变化率。
// 持有的仓位不计入，因此买入会得到负奖励。
func (l *Ledger) Reward(action Action, price float64) float64 {
	l.Apply(action, price)
	return (l.cash - l.initialCash) / l.initialCash
}

func (l *Ledger) InitialCash() float64    { return l.initialCash }
func (l *Ledger) Cash() float64           { return l.cash }
func (l *Ledger) RealizedProfit() float64 { return l.realizedProfit }
func (l *Ledger) OpenPositions() int      { return len(l.positions) }

// Positions 返回持仓买入价副本，最后一个为最新买入。
func (l *Ledger) Positions() []float64 {
	return append([]float64(nil), l.positions...)
}

// Profitable 判断当前现金是否高于初始现金。
func (l *Ledger) Profitable() bool {
	return l.cash > l.initialCash
}

// Equity 按给定价格估算现金加持仓市值。
func (l *Ledger) Equity(price float64) float64 {
	return l.cash + float64(len(l.positions))*price
}

// State 导出账本快照。
func (l *Ledger) State() LedgerState {
	return LedgerState{
		Cash:           l.cash,
		Positions:      l.Positions(),
		RealizedProfit: l.realizedProfit,
	}
}

// Restore 从快照恢复账本。
func (l *Ledger) Restore(state LedgerState) {
	l.cash = state.Cash
	l.positions = append(l.positions[:0], state.Positions...)
	l.realizedProfit = state.RealizedProfit
}
