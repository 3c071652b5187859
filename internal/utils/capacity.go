package utils

import (
	"slices"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

type YearGroupCapacity struct {
	YearGroup    domain.YearGroup `json:"yearGroup"`
	WardCapacity int64            `json:"wardCapacity"`
	StudentCount int64            `json:"studentCount"`
	Sufficient   bool             `json:"sufficient"`
}

type CapacityReport struct {
	Total              YearGroupCapacity   `json:"total"`
	YearGroups         []YearGroupCapacity `json:"yearGroups"`
	ExpiredWards       []string            `json:"expiredWards"`       // 审核在开始周之前（含）过期
	ExpiringWards      []string            `json:"expiringWards"`      // 审核在排班期间过期
	CohortsWithoutPlan []string            `json:"cohortsWithoutPlan"` // 没有任何实习记录的学生课程
}

// CheckCapacity 在运行优化之前汇总学生人数与病房容量，并列出审核即将过期的病房
func CheckCapacity(wards []*domain.Ward, placements []*domain.Placement, studentCohorts map[string]string, startWeek int32, endWeek int32) CapacityReport {
	report := CapacityReport{
		ExpiredWards:       []string{},
		ExpiringWards:      []string{},
		CohortsWithoutPlan: []string{},
	}

	students := make(map[domain.YearGroup]map[string]struct{})
	for _, p := range placements {
		group := p.CapacityGroup()
		if _, exists := students[group]; !exists {
			students[group] = make(map[string]struct{})
		}
		students[group][p.StudentID] = struct{}{}
	}

	for _, year := range domain.YearGroups {
		yc := YearGroupCapacity{
			YearGroup:    year,
			StudentCount: int64(len(students[year])),
		}
		for _, w := range wards {
			yc.WardCapacity += int64(w.CapacityFor(year))
		}
		yc.Sufficient = yc.StudentCount <= yc.WardCapacity
		report.YearGroups = append(report.YearGroups, yc)

		report.Total.StudentCount += yc.StudentCount
	}
	for _, w := range wards {
		report.Total.WardCapacity += int64(w.Capacity)
	}
	report.Total.Sufficient = report.Total.StudentCount <= report.Total.WardCapacity

	for _, w := range wards {
		if w.AuditExpiryWeek == nil {
			continue
		}
		switch expiry := *w.AuditExpiryWeek; {
		case expiry <= startWeek:
			report.ExpiredWards = append(report.ExpiredWards, w.Name)
		case expiry <= endWeek:
			report.ExpiringWards = append(report.ExpiringWards, w.Name)
		}
	}

	planned := make(map[string]struct{})
	for _, p := range placements {
		planned[p.StudentID] = struct{}{}
	}
	for studentID, cohort := range studentCohorts {
		if _, exists := planned[studentID]; !exists && !slices.Contains(report.CohortsWithoutPlan, cohort) {
			report.CohortsWithoutPlan = append(report.CohortsWithoutPlan, cohort)
		}
	}
	slices.Sort(report.CohortsWithoutPlan)

	return report
}
