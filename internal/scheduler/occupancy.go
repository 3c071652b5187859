package scheduler

import (
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

const numYearGroups = 4

// yearGroupIndex 把容量分组映射到 occupancy.counts 中的列
var yearGroupIndex = map[domain.YearGroup]int{
	domain.YearGroup1:              0,
	domain.YearGroup2:              1,
	domain.YearGroup3:              2,
	domain.YearGroupNurseAssociate: 3,
}

// occupancy 记录一份排班表中每个病房每周的占用情况
// 只属于构造它的那一次播种、变异或评估，不会在排班表之间共享
type occupancy struct {
	counts [][][numYearGroups]int32 // [ward][week][yearGroup]
	totals [][]int32                // [ward][week]
	visits map[string][]int         // studentID -> 已分配的病房下标
}

func newOccupancy(numWards int, numSlots int) *occupancy {
	occ := &occupancy{
		counts: make([][][numYearGroups]int32, numWards),
		totals: make([][]int32, numWards),
		visits: make(map[string][]int),
	}
	for w := 0; w < numWards; w++ {
		occ.counts[w] = make([][numYearGroups]int32, numSlots)
		occ.totals[w] = make([]int32, numSlots)
	}
	return occ
}

// weeks 返回实习占用的周区间 [first, last]，New 已保证它落在排班周期内
func (occ *occupancy) weeks(p *domain.Placement) (int, int) {
	return int(p.Start), p.End()
}

func (occ *occupancy) add(p *domain.Placement, ward int) {
	group := yearGroupIndex[p.CapacityGroup()]
	first, last := occ.weeks(p)
	for week := first; week <= last; week++ {
		occ.counts[ward][week][group]++
		occ.totals[ward][week]++
	}
	occ.visits[p.StudentID] = append(occ.visits[p.StudentID], ward)
}

func (occ *occupancy) remove(p *domain.Placement, ward int) {
	group := yearGroupIndex[p.CapacityGroup()]
	first, last := occ.weeks(p)
	for week := first; week <= last; week++ {
		occ.counts[ward][week][group]--
		occ.totals[ward][week]--
	}

	visits := occ.visits[p.StudentID]
	for i, w := range visits {
		if w == ward {
			occ.visits[p.StudentID] = append(visits[:i:i], visits[i+1:]...)
			break
		}
	}
}

// hasRoom 判断病房在实习的每一周是否还有该年级的剩余容量
func (occ *occupancy) hasRoom(w *domain.Ward, ward int, p *domain.Placement) bool {
	limit := w.CapacityFor(p.CapacityGroup())
	group := yearGroupIndex[p.CapacityGroup()]
	first, last := occ.weeks(p)
	for week := first; week <= last; week++ {
		if occ.counts[ward][week][group] >= limit {
			return false
		}
	}
	return true
}

// load 返回病房在实习期间的平均利用率
func (occ *occupancy) load(w *domain.Ward, ward int, p *domain.Placement) float64 {
	if w.Capacity <= 0 {
		return 1
	}

	first, last := occ.weeks(p)
	if last < first {
		return 0
	}

	sum := 0.0
	for week := first; week <= last; week++ {
		sum += float64(occ.totals[ward][week]) / float64(w.Capacity)
	}
	return sum / float64(last-first+1)
}
