package scheduler

import (
	"math/rand"
	"slices"
	"sort"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

/**
 * 按优先级对实习排序：
 * 		1. 不会开车的学生优先（需要开车的病房只能给会开车的学生）
 * 		2. 按年级排序，所有病房该年级总容量越小的年级越优先
 * 相同优先级保持输入顺序，保证同一个随机种子下结果可复现
 */
func prioritise(placements []*domain.Placement, wards []*domain.Ward) []*domain.Placement {
	totalCapacity := make(map[domain.YearGroup]int64)
	for _, w := range wards {
		for _, year := range domain.YearGroups {
			totalCapacity[year] += int64(w.CapacityFor(year))
		}
	}

	sorted := slices.Clone(placements)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsDriver != sorted[j].IsDriver {
			return !sorted[i].IsDriver
		}
		return totalCapacity[sorted[i].CapacityGroup()] < totalCapacity[sorted[j].CapacityGroup()]
	})
	return sorted
}

// eligibleStatic 检查与其他分配无关的硬约束
func eligibleStatic(p *domain.Placement, w *domain.Ward) bool {
	if w.CapacityFor(p.CapacityGroup()) <= 0 {
		return false
	}
	if w.NeedsDriver && !p.IsDriver {
		return false
	}
	if !p.AcceptsCovidStatus(w.CovidStatus) {
		return false
	}
	// 实习的最后一周审核仍然有效，则整个实习期间都有效
	return w.UsableAt(p.End())
}

// repetition 返回学生重复到同一病房（2）、同一科室（1）或都不重复（0）
func (s *Scheduler) repetition(p *domain.Placement, ward int, occ *occupancy) int {
	w := s.wards[ward]

	if slices.Contains(p.PreviousWards, w.Name) || slices.Contains(occ.visits[p.StudentID], ward) {
		return 2
	}
	if slices.Contains(p.PreviousDepartments, w.Department) {
		return 1
	}
	for _, visited := range occ.visits[p.StudentID] {
		if s.wards[visited].Department == w.Department {
			return 1
		}
	}
	return 0
}

// candidateWards 找出第 i 个实习当前可以分配的病房，exclude 为 -1 表示不排除任何病房
func (s *Scheduler) candidateWards(i int, occ *occupancy, exclude int) []int {
	p := s.placements[i]

	candidates := make([]int, 0, len(s.eligible[i]))
	reps := make([]int, 0, len(s.eligible[i]))
	minRep := 2
	for _, ward := range s.eligible[i] {
		if ward == exclude || !occ.hasRoom(s.wards[ward], ward, p) {
			continue
		}
		rep := s.repetition(p, ward, occ)
		candidates = append(candidates, ward)
		reps = append(reps, rep)
		minRep = min(minRep, rep)
	}

	// 在容忍度范围内尽量避免重复
	filtered := candidates[:0]
	for j, ward := range candidates {
		if reps[j] <= minRep+int(s.parameters.RepeatTolerance) {
			filtered = append(filtered, ward)
		}
	}
	return filtered
}

// pickWard 加权随机选择病房，已经越满的病房权重越低，用于分散负载
func (s *Scheduler) pickWard(rng *rand.Rand, candidates []int, p *domain.Placement, occ *occupancy) int {
	weights := make([]float64, len(candidates))
	sum := 0.0
	for j, ward := range candidates {
		weights[j] = 1 / (1 + occ.load(s.wards[ward], ward, p))
		sum += weights[j]
	}

	pick := rng.Float64() * sum
	partial := 0.0
	for j, ward := range candidates {
		partial += weights[j]
		if partial >= pick {
			return ward
		}
	}

	// 浮点误差
	return candidates[len(candidates)-1]
}

// seedChromosome 按优先级贪心地构造一个染色体
func (s *Scheduler) seedChromosome(rng *rand.Rand) *Chromosome {
	ch := newChromosome(len(s.placements))
	occ := newOccupancy(len(s.wards), len(s.slots))

	for i, p := range s.placements {
		candidates := s.candidateWards(i, occ, -1)
		if len(candidates) == 0 {
			ch.genes[i] = Unassigned
			continue
		}

		ward := s.pickWard(rng, candidates, p, occ)
		ch.genes[i] = Assigned(ward)
		occ.add(p, ward)
	}

	return ch
}
