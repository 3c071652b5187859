package utils

import (
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

// ValidateWeekWindow 检查排班起止周是否合法
func ValidateWeekWindow(startWeek int32, endWeek int32) error {
	if startWeek < 0 {
		return fmt.Errorf("开始周不能为负数")
	}
	if startWeek >= endWeek {
		return fmt.Errorf("开始周必须早于结束周")
	}
	return nil
}

// FilterPlacementsByWindow 只保留开始周落在 [startWeek, endWeek) 的实习
func FilterPlacementsByWindow(placements []*domain.Placement, startWeek int32, endWeek int32) []*domain.Placement {
	filtered := make([]*domain.Placement, 0, len(placements))
	for _, p := range placements {
		if p.Start >= startWeek && p.Start < endWeek {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// ValidateScheduleAssignments 检查排班结果中的实习和病房是否都存在，且每个实习只出现一次
func ValidateScheduleAssignments(result *domain.ScheduleResult, wards []*domain.Ward, placements []*domain.Placement) error {
	wardIDs := make([]int64, 0, len(wards))
	for _, w := range wards {
		wardIDs = append(wardIDs, w.ID)
	}
	placementIDs := make([]int64, 0, len(placements))
	for _, p := range placements {
		placementIDs = append(placementIDs, p.ID)
	}

	seen := make(map[int64]struct{}, len(result.Assignments))
	for _, a := range result.Assignments {
		if !slices.Contains(placementIDs, a.PlacementID) {
			return fmt.Errorf("实习 %d 不存在", a.PlacementID)
		}
		if _, exists := seen[a.PlacementID]; exists {
			return fmt.Errorf("实习 %d 被分配了多次", a.PlacementID)
		}
		seen[a.PlacementID] = struct{}{}

		if a.WardID != nil && !slices.Contains(wardIDs, *a.WardID) {
			return fmt.Errorf("病房 %d 不存在", *a.WardID)
		}
	}

	return nil
}
