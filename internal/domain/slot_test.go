package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHorizonWeeksCoversLatestEnd(t *testing.T) {
	tests := []struct {
		name       string
		placements []*Placement
		want       int
	}{
		{"empty", nil, 0},
		{"from week zero", []*Placement{{Start: 0, Duration: 2}, {Start: 1, Duration: 3}}, 5},
		{"late start", []*Placement{{Start: 10, Duration: 2}, {Start: 12, Duration: 4}}, 17},
		{"longest starts first", []*Placement{{Start: 3, Duration: 10}, {Start: 8, Duration: 1}}, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HorizonWeeks(tt.placements))
			for _, p := range tt.placements {
				assert.Less(t, p.End(), HorizonWeeks(tt.placements))
			}
		})
	}
}

func TestNewSlotsLabelsFromOne(t *testing.T) {
	slots := NewSlots(3)
	assert.Equal(t, []Slot{{0, "1"}, {1, "2"}, {2, "3"}}, slots)
	assert.Empty(t, NewSlots(0))
}
