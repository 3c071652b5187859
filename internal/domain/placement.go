package domain

import (
	"slices"
	"time"
)

type Placement struct {
	ID                   int64     `json:"id"`
	StudentID            string    `json:"studentID" validate:"required"`
	StudentName          string    `json:"studentName"`
	Name                 string    `json:"name"`
	Cohort               string    `json:"cohort"`
	Duration             int32     `json:"duration"`
	Start                int32     `json:"start" validate:"gte=0"`
	StartDate            time.Time `json:"startDate"`
	Year                 YearGroup `json:"year" validate:"required,oneof='Year 1' 'Year 2' 'Year 3' 'Nurse Associate'"`
	NurseAssociate       bool      `json:"nurseAssociate"`
	IsDriver             bool      `json:"isDriver"`
	PreviousWards        []string  `json:"previousWards"`
	PreviousDepartments  []string  `json:"previousDepartments"`
	AllowedCovidStatuses []string  `json:"allowedCovidStatuses"` // 为空时表示不限制
}

// CapacityGroup 返回实习占用的容量分组，助理护士优先于年级
func (p *Placement) CapacityGroup() YearGroup {
	if p.NurseAssociate {
		return YearGroupNurseAssociate
	}
	return p.Year
}

// End 返回实习最后一周（包含）
func (p *Placement) End() int {
	return int(p.Start) + int(p.Duration) - 1
}

func (p *Placement) Overlaps(other *Placement) bool {
	return int(p.Start) <= other.End() && int(other.Start) <= p.End()
}

func (p *Placement) AcceptsCovidStatus(status string) bool {
	return len(p.AllowedCovidStatuses) == 0 || slices.Contains(p.AllowedCovidStatuses, status)
}
