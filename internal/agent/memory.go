package agent

import "trades-rl/internal/feature"

// Transition 为一次交互的经验。
type Transition struct {
	State     feature.State `json:"state"`
	Action    Action        `json:"action"`
	Reward    float64       `json:"reward"`
	NextState feature.State `json:"next_state"`
	// Profitable 记录动作执行后现金是否高于初始现金，仅供 profitable 目标策略使用。
	Profitable bool `json:"profitable"`
}

// Memory 按写入顺序保存经验，从不重排。
// capacity 为0时不限容量，否则超出后丢弃最早的经验。
type Memory struct {
	capacity int
	items    []Transition
}

// NewMemory 创建 Memory。
func NewMemory(capacity int) *Memory {
	if capacity < 0 {
		capacity = 0
	}
	return &Memory{capacity: capacity}
}

// Append 追加一条经验。
func (m *Memory) Append(t Transition) {
	m.items = append(m.items, t)
	if m.capacity > 0 && len(m.items) > m.capacity {
		drop := len(m.items) - m.capacity
		m.items = append(m.items[:0], m.items[drop:]...)
	}
}

// Len 返回经验条数。
func (m *Memory) Len() int {
	return len(m.items)
}

func (m *Memory) Capacity() int { return m.capacity }

// Recent 按写入顺序返回最近 n 条经验的副本。
func (m *Memory) Recent(n int) []Transition {
	if n <= 0 {
		return nil
	}
	if n > len(m.items) {
		n = len(m.items)
	}
	out := make([]Transition, n)
	copy(out, m.items[len(m.items)-n:])
	return out
}

// All 返回全部经验的副本。
func (m *Memory) All() []Transition {
	return append([]Transition(nil), m.items...)
}

// Restore 用给定经验替换当前内容，超出容量时保留最近的部分。
func (m *Memory) Restore(items []Transition) {
	m.items = m.items[:0]
	for _, t := range items {
		m.Append(t)
	}
}
