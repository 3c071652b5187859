package scheduler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

// randomChromosome 完全随机地分配病房，不考虑任何约束
func randomChromosome(s *Scheduler, rng *rand.Rand) *Chromosome {
	ch := newChromosome(len(s.placements))
	for i := range ch.genes {
		if rng.Intn(8) == 0 {
			ch.genes[i] = Unassigned
			continue
		}
		ch.genes[i] = Assigned(rng.Intn(len(s.wards)))
	}
	return ch
}

func TestCapacityExceededMatchesDirectRecount(t *testing.T) {
	wards, placements := mixedScenario()
	s := newTestScheduler(t, testParameters(), wards, placements, 1)
	rng := rand.New(rand.NewSource(99))

	for n := 0; n < 200; n++ {
		ch := randomChromosome(s, rng)
		s.evaluate(ch)

		// 直接按 (病房, 周, 年级) 重新计数
		type cell struct {
			ward int
			week int
			year domain.YearGroup
		}
		counts := make(map[cell]int32)
		for i, gene := range ch.genes {
			ward, ok := gene.Ward()
			if !ok {
				continue
			}
			p := s.placements[i]
			for week := int(p.Start); week <= p.End(); week++ {
				if week < len(s.slots) {
					counts[cell{ward, week, p.CapacityGroup()}]++
				}
			}
		}

		exceeded := 0
		for c, count := range counts {
			if count > s.wards[c.ward].CapacityFor(c.year) {
				exceeded++
			}
		}

		assert.Equal(t, exceeded, ch.quality.NumCapacityExceeded)
		assert.Equal(t, exceeded == 0, ch.quality.NumCapacityExceeded == 0)
	}
}

func TestDoubleBookedIffOverlap(t *testing.T) {
	wards, placements := mixedScenario()
	// 让 S0 的第二个实习与第一个重叠
	placements[1].Start = placements[0].Start + 1
	s := newTestScheduler(t, testParameters(), wards, placements, 1)
	rng := rand.New(rand.NewSource(5))

	for n := 0; n < 200; n++ {
		ch := randomChromosome(s, rng)
		s.evaluate(ch)

		expected := 0
		for _, studentID := range s.students {
			indexes := s.studentPlacements[studentID]
			overlap := false
			for a := range indexes {
				for b := range indexes {
					if a >= b {
						continue
					}
					_, okA := ch.genes[indexes[a]].Ward()
					_, okB := ch.genes[indexes[b]].Ward()
					pa, pb := s.placements[indexes[a]], s.placements[indexes[b]]
					if okA && okB && int(pa.Start) <= pb.End() && int(pb.Start) <= pa.End() {
						overlap = true
					}
				}
			}
			if overlap {
				expected++
			}
		}

		assert.Equal(t, expected, ch.quality.NumDoubleBooked)
	}
}

func TestFitnessMonotonicity(t *testing.T) {
	params := DefaultParameters()
	scores := ScheduleScores{MeanWardUtil: 0.6, MeanUniqDeps: 0.7, MeanUniqWards: 0.8}
	base := QualityMetrics{NumIncorrNumPlac: 1, NumDoubleBooked: 2}

	withViolation := base
	withViolation.NumCapacityExceeded++
	assert.Less(t, Fitness(scores, withViolation, &params), Fitness(scores, base, &params))

	for _, mutate := range []func(q *QualityMetrics){
		func(q *QualityMetrics) { q.NumIncorrNumPlac++ },
		func(q *QualityMetrics) { q.NumIncorrectLength++ },
		func(q *QualityMetrics) { q.NumDoubleBooked++ },
	} {
		q := base
		mutate(&q)
		assert.Less(t, Fitness(scores, q, &params), Fitness(scores, base, &params))
	}

	better := scores
	better.MeanWardUtil = 0.9
	assert.Greater(t, Fitness(better, base, &params), Fitness(scores, base, &params))
	better = scores
	better.MeanUniqDeps = 0.9
	assert.Greater(t, Fitness(better, base, &params), Fitness(scores, base, &params))

	perfect := Fitness(ScheduleScores{MeanWardUtil: 1, MeanUniqDeps: 1, MeanUniqWards: 1}, QualityMetrics{}, &params)
	assert.InDelta(t, 1.0, perfect, 1e-12)
	assert.GreaterOrEqual(t, Fitness(ScheduleScores{}, QualityMetrics{NumDoubleBooked: 1000}, &params), 0.0)
}

func TestFitnessStrictWithZeroObjective(t *testing.T) {
	params := DefaultParameters()

	// 所有实习都未分配且学生没有历史实习时，目标值为 0
	empty := ScheduleScores{}
	previous := Fitness(empty, QualityMetrics{}, &params)
	assert.Greater(t, previous, 0.0)

	for n := 1; n <= 5; n++ {
		current := Fitness(empty, QualityMetrics{NumIncorrNumPlac: n}, &params)
		assert.Less(t, current, previous, "违反次数 %d", n)
		previous = current
	}

	assert.Less(t, Fitness(empty, QualityMetrics{}, &params), Fitness(ScheduleScores{MeanWardUtil: 0.01}, QualityMetrics{}, &params))
}

func TestEvaluateMetrics(t *testing.T) {
	w1 := testWard(1, 2, 2)
	w2 := testWard(2, 2, 2)
	w2.Department = w1.Department
	expiry := int32(1)
	w2.AuditExpiryWeek = &expiry

	a1 := testPlacement(1, "A", 0, 2)
	a1.PreviousWards = []string{"Ward 1"}
	a1.PreviousDepartments = []string{"Dep 1"}
	a2 := testPlacement(2, "A", 2, 2)
	a2.PreviousWards = a1.PreviousWards
	a2.PreviousDepartments = a1.PreviousDepartments
	b1 := testPlacement(3, "B", 0, 2)

	s := newTestScheduler(t, testParameters(), []*domain.Ward{w1, w2}, []*domain.Placement{a1, a2, b1}, 1)
	index := make(map[int64]int)
	for i, p := range s.placements {
		index[p.ID] = i
	}

	ch := newChromosome(3)
	ch.genes[index[1]] = Assigned(0)
	ch.genes[index[2]] = Assigned(1) // 第 3 周时审核已经过期
	ch.genes[index[3]] = Assigned(0)
	s.evaluate(ch)

	assert.Equal(t, 0, ch.unassigned)
	assert.Equal(t, 0, ch.quality.NumIncorrNumPlac)
	assert.Equal(t, 1, ch.quality.NumIncorrectLength)
	assert.Equal(t, 0, ch.quality.NumCapacityExceeded)
	assert.Equal(t, 0, ch.quality.NumDoubleBooked)
	// A: 病房 {Ward 1, Ward 2} / (1 + 2)，科室 {Dep 1} / 3；B: 1/1
	assert.InDelta(t, (2.0/3+1)/2, ch.scores.MeanUniqWards, 1e-9)
	assert.InDelta(t, (1.0/3+1)/2, ch.scores.MeanUniqDeps, 1e-9)
	// Ward 1 第 0、1 周各 2 人（满），Ward 2 第 2、3 周各 1 人
	assert.InDelta(t, (1+1+1+1+0.5+0.5)/6.0, ch.scores.MeanWardUtil, 1e-9)
	assert.False(t, ch.Viable())
	assert.Equal(t, "1 个实习的时长不正确", ch.nonViableReason)

	ch.genes[index[3]] = Unassigned
	s.evaluate(ch)
	assert.Equal(t, 1, ch.unassigned)
	assert.Equal(t, 1, ch.quality.NumIncorrNumPlac)
	assert.Contains(t, ch.nonViableReason, "病房容量不足")
}

func TestNonViableReasonPriority(t *testing.T) {
	tests := []struct {
		name       string
		unassigned int
		quality    QualityMetrics
		want       string
	}{
		{name: "viable", want: ""},
		{name: "unassigned first", unassigned: 2, quality: QualityMetrics{NumDoubleBooked: 5}, want: "病房容量不足：2 个实习未能分配病房"},
		{name: "placement count", quality: QualityMetrics{NumIncorrNumPlac: 1, NumCapacityExceeded: 9}, want: "1 名学生的实习数量不正确"},
		{name: "length", quality: QualityMetrics{NumIncorrectLength: 3, NumDoubleBooked: 1}, want: "3 个实习的时长不正确"},
		{name: "capacity", quality: QualityMetrics{NumCapacityExceeded: 4, NumDoubleBooked: 1}, want: "4 个病房周超出了容量"},
		{name: "double booked", quality: QualityMetrics{NumDoubleBooked: 1}, want: "1 名学生的实习时间重叠"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, nonViableReason(tt.unassigned, tt.quality))
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	wards, placements := mixedScenario()
	s := newTestScheduler(t, testParameters(), wards, placements, 1)
	ch := randomChromosome(s, rand.New(rand.NewSource(3)))

	s.evaluate(ch)
	first := *ch
	s.evaluate(ch)
	assert.Equal(t, first.fitness, ch.fitness)
	assert.Equal(t, first.scores, ch.scores)
	assert.Equal(t, first.quality, ch.quality)
}
