package domain

// YearGroup 学生所在的年级分组，决定占用病房的哪一部分容量
type YearGroup string

const (
	YearGroup1              YearGroup = "Year 1"
	YearGroup2              YearGroup = "Year 2"
	YearGroup3              YearGroup = "Year 3"
	YearGroupNurseAssociate YearGroup = "Nurse Associate"
)

var YearGroups = []YearGroup{YearGroup1, YearGroup2, YearGroup3, YearGroupNurseAssociate}

type Ward struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"name" validate:"required"`
	Department             string `json:"department"`
	AuditExpiryWeek        *int32 `json:"auditExpiryWeek"` // 为 nil 时表示审核永不过期
	CovidStatus            string `json:"covidStatus"`
	Capacity               int32  `json:"capacity" validate:"gte=0"`
	Year1Capacity          int32  `json:"year1Capacity" validate:"gte=0"`
	Year2Capacity          int32  `json:"year2Capacity" validate:"gte=0"`
	Year3Capacity          int32  `json:"year3Capacity" validate:"gte=0"`
	NurseAssociateCapacity int32  `json:"nurseAssociateCapacity" validate:"gte=0"`
	NeedsDriver            bool   `json:"needsDriver"`
	DYAD                   bool   `json:"dyad"`
}

// CapacityFor 返回病房为某个年级保留的容量
func (w *Ward) CapacityFor(year YearGroup) int32 {
	switch year {
	case YearGroup1:
		return w.Year1Capacity
	case YearGroup2:
		return w.Year2Capacity
	case YearGroup3:
		return w.Year3Capacity
	case YearGroupNurseAssociate:
		return w.NurseAssociateCapacity
	default:
		return 0
	}
}

// UsableAt 病房的教学审核在 week 之后才过期时，该周可用
func (w *Ward) UsableAt(week int) bool {
	return w.AuditExpiryWeek == nil || week <= int(*w.AuditExpiryWeek)
}
