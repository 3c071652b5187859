package scheduler

import (
	"fmt"
	"strings"
)

/**
 * 计算染色体的各项指标和适应度
 * 所有占用数据都根据基因重新计算，不依赖播种或变异过程中的计数
 * 只读取 Scheduler 中不可变的病房和实习数据，可以并发调用
 */
func (s *Scheduler) evaluate(ch *Chromosome) {
	occ := newOccupancy(len(s.wards), len(s.slots))
	unassigned := 0
	for i, gene := range ch.genes {
		ward, ok := gene.Ward()
		if !ok {
			unassigned++
			continue
		}
		occ.add(s.placements[i], ward)
	}

	ch.unassigned = unassigned
	ch.scores = ScheduleScores{
		MeanWardUtil: s.meanWardUtil(ch, occ),
	}
	ch.scores.MeanUniqDeps, ch.scores.MeanUniqWards = s.meanUniqueness(ch)
	ch.quality = QualityMetrics{
		NumIncorrNumPlac:    s.numIncorrectPlacementCount(ch),
		NumIncorrectLength:  s.numIncorrectLength(ch),
		NumCapacityExceeded: s.numCapacityExceeded(occ),
		NumDoubleBooked:     s.numDoubleBooked(ch),
	}
	ch.fitness = Fitness(ch.scores, ch.quality, s.parameters)
	ch.nonViableReason = nonViableReason(ch.unassigned, ch.quality)
	ch.evaluated = true
}

// fitnessFloor 让目标值为 0 的排班表也保留一点适应度，违反次数之间仍然可以比较
const fitnessFloor = 1e-6

/**
 * 适应度 = (objective + fitnessFloor) / ((1 + fitnessFloor) * (1 + PenaltyWeight * violations))
 * 其中:
 * 		1. objective 为三项正向目标的加权平均，取值 [0, 1]
 * 		2. violations 为四项约束违反计数之和
 * 结果在 (0, 1] 之间，PenaltyWeight 大于 0 时违反次数每增加一次适应度都严格下降
 */
func Fitness(scores ScheduleScores, quality QualityMetrics, p *Parameters) float64 {
	weightSum := p.UtilWeight + p.DepsWeight + p.WardsWeight
	if weightSum <= 0 {
		return 0
	}

	objective := (p.UtilWeight*clamp01(scores.MeanWardUtil) +
		p.DepsWeight*clamp01(scores.MeanUniqDeps) +
		p.WardsWeight*clamp01(scores.MeanUniqWards)) / weightSum

	penalty := 1 + p.PenaltyWeight*float64(quality.Total())
	return clamp01((objective + fitnessFloor) / ((1 + fitnessFloor) * penalty))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// meanWardUtil 对每个已分配实习的每一周，计算所在病房当周的占用率并取平均
func (s *Scheduler) meanWardUtil(ch *Chromosome, occ *occupancy) float64 {
	sum := 0.0
	n := 0
	for i, gene := range ch.genes {
		ward, ok := gene.Ward()
		if !ok {
			continue
		}
		w := s.wards[ward]
		if w.Capacity <= 0 {
			continue
		}

		first, last := occ.weeks(s.placements[i])
		for week := first; week <= last; week++ {
			sum += min(1, float64(occ.totals[ward][week])/float64(w.Capacity))
			n++
		}
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// meanUniqueness 计算每个学生（包含历史实习）去过的不同科室数和不同病房数占实习总数的比例，再对所有学生取平均
func (s *Scheduler) meanUniqueness(ch *Chromosome) (float64, float64) {
	depsSum, wardsSum := 0.0, 0.0
	students := 0

	for _, studentID := range s.students {
		indexes := s.studentPlacements[studentID]
		history := s.placements[indexes[0]]

		wards := make(map[string]struct{})
		deps := make(map[string]struct{})
		historyLen := 0
		for _, name := range history.PreviousWards {
			if name = strings.TrimSpace(name); name != "" {
				wards[name] = struct{}{}
				historyLen++
			}
		}
		for _, dep := range history.PreviousDepartments {
			if dep = strings.TrimSpace(dep); dep != "" {
				deps[dep] = struct{}{}
			}
		}

		for _, i := range indexes {
			ward, ok := ch.genes[i].Ward()
			if !ok {
				continue
			}
			wards[s.wards[ward].Name] = struct{}{}
			deps[s.wards[ward].Department] = struct{}{}
		}

		total := historyLen + len(indexes)
		depsSum += float64(len(deps)) / float64(total)
		wardsSum += float64(len(wards)) / float64(total)
		students++
	}

	if students == 0 {
		return 0, 0
	}
	return depsSum / float64(students), wardsSum / float64(students)
}

// numIncorrectPlacementCount 统计实际分配的实习数量和课程模板要求的数量不一致的学生数
func (s *Scheduler) numIncorrectPlacementCount(ch *Chromosome) int {
	count := 0
	for _, studentID := range s.students {
		indexes := s.studentPlacements[studentID]
		assigned := 0
		for _, i := range indexes {
			if _, ok := ch.genes[i].Ward(); ok {
				assigned++
			}
		}
		if assigned != len(indexes) {
			count++
		}
	}
	return count
}

// numIncorrectLength 统计实际可用周数与要求时长不一致的实习数（超出排班周期或病房审核过期的周不计入）
func (s *Scheduler) numIncorrectLength(ch *Chromosome) int {
	count := 0
	for i, gene := range ch.genes {
		ward, ok := gene.Ward()
		if !ok {
			continue
		}

		p := s.placements[i]
		w := s.wards[ward]
		weeks := 0
		for week := int(p.Start); week <= p.End(); week++ {
			if week >= 0 && week < len(s.slots) && w.UsableAt(week) {
				weeks++
			}
		}
		if weeks != int(p.Duration) {
			count++
		}
	}
	return count
}

// numCapacityExceeded 统计占用人数超过该年级容量的 (病房, 周, 年级) 单元格数量
func (s *Scheduler) numCapacityExceeded(occ *occupancy) int {
	count := 0
	for ward, w := range s.wards {
		for week := range occ.counts[ward] {
			for year, group := range yearGroupIndex {
				if occ.counts[ward][week][group] > w.CapacityFor(year) {
					count++
				}
			}
		}
	}
	return count
}

// numDoubleBooked 统计存在时间重叠的已分配实习的学生数
func (s *Scheduler) numDoubleBooked(ch *Chromosome) int {
	count := 0
	for _, studentID := range s.students {
		indexes := s.studentPlacements[studentID]
		booked := false
		for a := 0; a < len(indexes) && !booked; a++ {
			if _, ok := ch.genes[indexes[a]].Ward(); !ok {
				continue
			}
			for b := a + 1; b < len(indexes); b++ {
				if _, ok := ch.genes[indexes[b]].Ward(); !ok {
					continue
				}
				if s.placements[indexes[a]].Overlaps(s.placements[indexes[b]]) {
					booked = true
					break
				}
			}
		}
		if booked {
			count++
		}
	}
	return count
}

// nonViableReason 按固定优先级返回第一个不为零的违反类别，可行时返回空字符串
func nonViableReason(unassigned int, q QualityMetrics) string {
	switch {
	case unassigned > 0:
		return fmt.Sprintf("病房容量不足：%d 个实习未能分配病房", unassigned)
	case q.NumIncorrNumPlac > 0:
		return fmt.Sprintf("%d 名学生的实习数量不正确", q.NumIncorrNumPlac)
	case q.NumIncorrectLength > 0:
		return fmt.Sprintf("%d 个实习的时长不正确", q.NumIncorrectLength)
	case q.NumCapacityExceeded > 0:
		return fmt.Sprintf("%d 个病房周超出了容量", q.NumCapacityExceeded)
	case q.NumDoubleBooked > 0:
		return fmt.Sprintf("%d 名学生的实习时间重叠", q.NumDoubleBooked)
	default:
		return ""
	}
}
