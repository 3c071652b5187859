package domain

import "strconv"

// Slot 表示排班周期中的一周
type Slot struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// NewSlots 生成从 0 开始编号的 n 个周
func NewSlots(n int) []Slot {
	slots := make([]Slot, 0, max(n, 0))
	for i := 0; i < n; i++ {
		slots = append(slots, Slot{
			Index: i,
			Label: strconv.Itoa(i + 1),
		})
	}
	return slots
}

// HorizonWeeks 计算排班周期的长度
// Start 是从第 0 周算起的绝对周下标，周期覆盖到最晚结束的实习，再多留一周余量
func HorizonWeeks(placements []*Placement) int {
	if len(placements) == 0 {
		return 0
	}

	latestEnd := placements[0].End()
	for _, p := range placements[1:] {
		latestEnd = max(latestEnd, p.End())
	}

	return latestEnd + 2
}
